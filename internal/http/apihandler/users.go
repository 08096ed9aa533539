package apihandler

import (
	"context"
	"net/http"

	"lotmarket/internal/domain"
	"lotmarket/internal/services/session"

	"github.com/gin-gonic/gin"
)

func (h *Handler) login(c *gin.Context) {
	var in session.LoginInput
	if err := bindJSON(c, &in); err != nil {
		writeError(c, err)
		return
	}
	token, err := h.svc.Sessions.Login(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, TokenResponse{Token: token})
}

func (h *Handler) register(c *gin.Context) {
	var in domain.RegisterInput
	if err := bindJSON(c, &in); err != nil {
		writeError(c, err)
		return
	}
	u, err := h.svc.Users.Register(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// favoriteLot handles the /users/:id/favoritelots/:lotId routes.
func favoriteLot(fn func(context.Context, domain.Session, int64, int64) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := sessionOf(c)
		if err != nil {
			writeError(c, err)
			return
		}
		userID, err := pathID(c, "id")
		if err != nil {
			writeError(c, err)
			return
		}
		lotID, err := pathID(c, "lotId")
		if err != nil {
			writeError(c, err)
			return
		}
		if err := fn(c.Request.Context(), s, userID, lotID); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
