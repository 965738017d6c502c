// Package api exposes the Session Store & Transport surface: a
// synchronous chat endpoint, session listing/inspection/deletion, and a
// bidirectional streaming channel, all backed by the in-process session
// store and the analysis orchestrator.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sandboxrunner/sandboxrunner/pkg/analysis"
	"github.com/sandboxrunner/sandboxrunner/pkg/session"
	"github.com/sandboxrunner/sandboxrunner/pkg/version"
)

// Runner is the capability the transport layer needs from the analysis
// pipeline: run one query to completion.
type Runner interface {
	Analyze(ctx context.Context, query string, data any, hint string) (analysis.AnalysisResult, error)
}

// Server wires the gin router to the session store and orchestrator.
type Server struct {
	router         *gin.Engine
	httpServer     *http.Server
	sessions       *session.Manager
	runner         Runner
	allowedOrigins []string
}

// NewServer builds a Server with all routes registered. allowedOrigins
// governs both the CORS middleware and the WebSocket upgrade's origin
// check; a nil/empty list allows any origin (matching the corpus's
// development-friendly default rather than failing closed).
func NewServer(sessions *session.Manager, runner Runner, allowedOrigins []string) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), securityHeaders(), corsMiddleware(allowedOrigins))

	s := &Server{router: router, sessions: sessions, runner: runner, allowedOrigins: allowedOrigins}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.rootHandler)
	s.router.GET("/health", s.healthHandler)

	api := s.router.Group("/api")
	api.POST("/chat", s.chatHandler)
	api.GET("/sessions", s.listSessionsHandler)
	api.GET("/sessions/:id", s.getSessionHandler)
	api.DELETE("/sessions/:id", s.deleteSessionHandler)

	s.router.GET("/ws/chat/:sessionId", s.wsHandler)
}

// Handler exposes the underlying gin engine, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Start runs the HTTP server on addr, blocking until it exits.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) rootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"app":     version.AppName,
		"version": version.Full(),
		"status":  "running",
	})
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": version.Full()})
}

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"sessionId"`
}

// chatResponse is the POST /api/chat body.
type chatResponse struct {
	SessionID string    `json:"sessionId"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) chatHandler(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	sid, _ := s.sessions.Append(req.SessionID, session.RoleUser, req.Message)

	result, err := s.runner.Analyze(c.Request.Context(), req.Message, nil, "")
	if err != nil {
		writeError(c, err)
		return
	}

	responseText := analysis.FormatForChat(result)
	_, assistantMsg := s.sessions.Append(sid, session.RoleAssistant, responseText)

	c.JSON(http.StatusOK, chatResponse{
		SessionID: sid,
		Response:  responseText,
		Timestamp: assistantMsg.Timestamp,
	})
}

// sessionSummaryResponse is one entry of GET /api/sessions.
type sessionSummaryResponse struct {
	SessionID    string    `json:"sessionId"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

func (s *Server) listSessionsHandler(c *gin.Context) {
	summaries := s.sessions.Summarize()
	out := make([]sessionSummaryResponse, len(summaries))
	for i, sm := range summaries {
		out[i] = sessionSummaryResponse{
			SessionID:    sm.ID,
			MessageCount: sm.Count,
			CreatedAt:    sm.CreatedAt,
			LastUpdated:  sm.LastUpdated,
		}
	}
	c.JSON(http.StatusOK, out)
}

// sessionDetailResponse is the GET /api/sessions/{id} body.
type sessionDetailResponse struct {
	SessionID string            `json:"sessionId"`
	Messages  []session.Message `json:"messages"`
}

func (s *Server) getSessionHandler(c *gin.Context) {
	id := c.Param("id")
	messages, err := s.sessions.List(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionDetailResponse{SessionID: id, Messages: messages})
}

func (s *Server) deleteSessionHandler(c *gin.Context) {
	id := c.Param("id")
	if err := s.sessions.Delete(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
}
