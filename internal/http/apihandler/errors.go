package apihandler

import (
	"errors"
	"net/http"

	"lotmarket/internal/apperr"
	"lotmarket/internal/http/middleware"
	"lotmarket/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// writeError maps err onto a status and body. Internal failures are logged
// and their cause is not sent to the client.
func writeError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("http.request_failed",
			zap.String("route", c.FullPath()),
			zap.String("request_id", middleware.RequestIDFrom(c)),
			zap.Error(err))
		c.AbortWithStatusJSON(status, ErrorResponse{Error: apperr.ErrInternal.Error()})
		return
	}

	resp := ErrorResponse{Error: err.Error()}
	if e, ok := apperr.As(err); ok {
		resp.Error = e.Message()
		if e.Field != "" || e.Resource != "" || e.Retriable {
			resp.Details = &ErrorDetails{Resource: e.Resource, Field: e.Field, Retriable: e.Retriable}
		}
	}
	c.AbortWithStatusJSON(status, resp)
}
