package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandboxrunner/sandboxrunner/pkg/analysis"
	"github.com/sandboxrunner/sandboxrunner/pkg/apperrors"
	"github.com/sandboxrunner/sandboxrunner/pkg/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	result analysis.AnalysisResult
	err    error
}

func (f *fakeRunner) Analyze(ctx context.Context, query string, data any, hint string) (analysis.AnalysisResult, error) {
	return f.result, f.err
}

func newTestServer(r Runner) *Server {
	return NewServer(session.NewManager(), r, nil)
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(&fakeRunner{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestChatHandler_CreatesSessionAndAppendsMessages(t *testing.T) {
	s := newTestServer(&fakeRunner{result: analysis.AnalysisResult{
		Success:  true,
		Query:    "count rows",
		Insights: "there are 3 rows",
		Elapsed:  1500 * time.Millisecond,
	}})

	body := strings.NewReader(`{"message":"count rows"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Contains(t, resp.Response, "there are 3 rows")

	messages, err := s.sessions.List(resp.SessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, session.RoleUser, messages[0].Role)
	assert.Equal(t, session.RoleAssistant, messages[1].Role)
}

func TestChatHandler_RejectsMissingMessage(t *testing.T) {
	s := newTestServer(&fakeRunner{})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandler_MapsPipelineErrorToStatus(t *testing.T) {
	s := newTestServer(&fakeRunner{err: apperrors.New(apperrors.KindValidation, "exec-1", errors.New("unsafe program"))})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"do something"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSessionLifecycle_ListGetDelete(t *testing.T) {
	s := newTestServer(&fakeRunner{result: analysis.AnalysisResult{Success: true, Insights: "ok"}})

	chatReq := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi"}`))
	chatReq.Header.Set("Content-Type", "application/json")
	chatRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(chatRec, chatReq)
	var chatResp chatResponse
	require.NoError(t, json.Unmarshal(chatRec.Body.Bytes(), &chatResp))
	sid := chatResp.SessionID

	listRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(listRec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	assert.Equal(t, http.StatusOK, listRec.Code)
	var summaries []sessionSummaryResponse
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, sid, summaries[0].SessionID)
	assert.Equal(t, 2, summaries[0].MessageCount)

	getRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sid, nil))
	assert.Equal(t, http.StatusOK, getRec.Code)

	deleteRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(deleteRec, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+sid, nil))
	assert.Equal(t, http.StatusOK, deleteRec.Code)

	getAfterDeleteRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(getAfterDeleteRec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sid, nil))
	assert.Equal(t, http.StatusNotFound, getAfterDeleteRec.Code)
}

func TestGetSessionHandler_UnknownReturnsNotFound(t *testing.T) {
	s := newTestServer(&fakeRunner{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWSHandler_RoundTripsOneMessage(t *testing.T) {
	s := newTestServer(&fakeRunner{result: analysis.AnalysisResult{Success: true, Insights: "streamed insight"}})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/stream-session"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(inboundFrame{Message: "what's in here"}))

	var frame outboundFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "message", frame.Type)
	assert.Contains(t, frame.Content, "streamed insight")
}

func TestWSHandler_MalformedFrameEmitsErrorWithoutClosing(t *testing.T) {
	s := newTestServer(&fakeRunner{result: analysis.AnalysisResult{Success: true, Insights: "fine"}})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/stream-session"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	var frame outboundFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "error", frame.Type)

	require.NoError(t, conn.WriteJSON(inboundFrame{Message: "after the error"}))
	var second outboundFrame
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "message", second.Type)
}
