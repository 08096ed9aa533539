// Package middleware holds the gin middleware shared by every API route.
package middleware

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	"lotmarket/internal/apperr"
	"lotmarket/internal/auth"
	"lotmarket/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "lotmarket.request_id"
	sessionKey   = "lotmarket.session"
)

// RequestID keeps a caller supplied X-Request-ID or assigns a fresh one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func RequestIDFrom(c *gin.Context) string { return c.GetString(requestIDKey) }

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Session, error)
}

// Session rejects requests without a valid bearer token and stores the
// caller's session for the handlers.
func Session(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractToken(c.GetHeader("Authorization"))
		if err != nil {
			abortUnauthorized(c, apperr.Unauthorized(err.Error()))
			return
		}
		s, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, err error) {
	status := http.StatusUnauthorized
	if !errors.Is(err, apperr.ErrUnauthorized) {
		status = http.StatusInternalServerError
		err = apperr.ErrInternal
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// SessionFrom returns the session stored by Session.
func SessionFrom(c *gin.Context) (domain.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return domain.Session{}, false
	}
	s, ok := v.(domain.Session)
	return s, ok
}

// AuthDelay holds the request back by a random duration up to maxDelay, so
// login timing says nothing about which check failed.
func AuthDelay(maxDelay time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxDelay > 0 {
			t := time.NewTimer(rand.N(maxDelay))
			select {
			case <-t.C:
			case <-c.Request.Context().Done():
				t.Stop()
			}
		}
		c.Next()
	}
}
