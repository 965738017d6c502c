package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sandboxrunner/sandboxrunner/pkg/apperrors"
)

// statusForError maps a pipeline error to an HTTP status, following the
// error handling design's taxonomy: validation/generation failures are
// client-facing 4xx, sandbox infra and unmapped errors are 5xx, not-found
// is 404, timeout/cancellation get distinct 4xx/5xx codes a client can
// branch on.
func statusForError(err error) (int, string) {
	if errors.Is(err, apperrors.ErrNotFound) {
		return http.StatusNotFound, "resource not found"
	}

	kind, ok := apperrors.KindOf(err)
	if !ok {
		slog.Error("unmapped error reached transport", "error", err)
		return http.StatusInternalServerError, "internal server error"
	}

	switch kind {
	case apperrors.KindValidation:
		return http.StatusUnprocessableEntity, err.Error()
	case apperrors.KindGeneration:
		return http.StatusBadGateway, "failed to generate analysis program"
	case apperrors.KindSandboxInfra:
		return http.StatusInternalServerError, "sandbox unavailable"
	case apperrors.KindProgramRuntime:
		return http.StatusOK, err.Error() // surfaced as a failed AnalysisResult, not a transport error
	case apperrors.KindTimeout:
		return http.StatusGatewayTimeout, "execution timed out"
	case apperrors.KindCancelled:
		return http.StatusRequestTimeout, "execution cancelled"
	case apperrors.KindTransport:
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// writeError writes a structured error response, logging the full error
// (with its execution id if any) while the client only ever sees the
// short message and category.
func writeError(c *gin.Context, err error) {
	status, message := statusForError(err)
	c.JSON(status, gin.H{"error": message})
}
