// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lm7452/UniEats/internal/http/middleware"
	"github.com/Lm7452/UniEats/internal/shared/errs"
	"github.com/Lm7452/UniEats/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts the uuid-ish ids issued by the stores.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps the shared sentinels onto status codes.
func writeDomainError(c *gin.Context, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrNoDriversAvailable):
		writeError(c, http.StatusServiceUnavailable, "no drivers are available right now, try again later")
	case errors.Is(err, errs.ErrAlreadyClaimed):
		log.Debug("claim lost", "path", c.Request.URL.Path)
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrNotAssigned):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, errs.ErrInvalidTransition):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, errs.ErrStoreUnavailable):
		log.Error("store unavailable", "path", c.Request.URL.Path, "err", err)
		writeError(c, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		log.Error("unhandled error", "path", c.Request.URL.Path, "err", err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func actorOrAbort(c *gin.Context) (types.Actor, bool) {
	a, ok := middleware.Actor(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "unauthenticated")
	}
	return a, ok
}

func pathID(c *gin.Context) (types.ID, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return types.ID(id), true
}

func orLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
