package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sandboxrunner/sandboxrunner/pkg/analysis"
	"github.com/sandboxrunner/sandboxrunner/pkg/session"
)

// upgrader consults the Server's allowedOrigins for the WS handshake,
// matching the CORS policy applied to plain HTTP requests.
func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // same-origin or non-browser client, no Origin header to check
			}
			return originAllowed(origin, s.allowedOrigins)
		},
	}
}

// inboundFrame is the wire shape of a client-sent WebSocket message.
type inboundFrame struct {
	Message string `json:"message"`
}

// outboundFrame is the wire shape of a server-sent WebSocket message.
type outboundFrame struct {
	Type      string    `json:"type"` // "message" or "error"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// wsHandler upgrades the connection and runs one request/run/respond loop
// per inbound frame, keyed by the session id in the URL. Errors emit an
// "error" frame without closing the channel; a peer-initiated close ends
// the loop gracefully.
func (s *Server) wsHandler(c *gin.Context) {
	sessionID := c.Param("sessionId")

	conn, err := s.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "sessionId", sessionID, "error", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.writeFrame(conn, outboundFrame{Type: "error", Content: "malformed frame", Timestamp: time.Now()})
			continue
		}

		sid, _ := s.sessions.Append(sessionID, session.RoleUser, frame.Message)
		sessionID = sid

		result, err := s.runner.Analyze(c.Request.Context(), frame.Message, nil, "")
		if err != nil {
			s.writeFrame(conn, outboundFrame{Type: "error", Content: err.Error(), Timestamp: time.Now()})
			continue
		}

		responseText := analysis.FormatForChat(result)
		_, assistantMsg := s.sessions.Append(sessionID, session.RoleAssistant, responseText)

		s.writeFrame(conn, outboundFrame{Type: "message", Content: responseText, Timestamp: assistantMsg.Timestamp})
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, frame outboundFrame) {
	if err := conn.WriteJSON(frame); err != nil {
		slog.Warn("websocket write failed", "error", err)
	}
}
