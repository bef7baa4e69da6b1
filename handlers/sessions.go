package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/internal/sessions"
	"github.com/uchkunrakhimow/auth-kit/pkg/middleware"
)

// SessionsHandler lists and revokes the caller's own sessions.
type SessionsHandler struct {
	sessions *sessions.Service
}

func NewSessionsHandler(s *sessions.Service) *SessionsHandler {
	return &SessionsHandler{sessions: s}
}

func (h *SessionsHandler) Register(rg *gin.RouterGroup, authn gin.HandlerFunc) {
	g := rg.Group("/sessions", authn)
	g.GET("", h.List)
	g.DELETE("/:sessionId", h.Revoke)
}

// List returns the caller's sessions, most recently active first. The
// response marks which entry belongs to the current request; tokens
// are never included.
func (h *SessionsHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	current := c.GetString(middleware.ContextSessionID)

	list, err := h.sessions.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": "session listing failed"})
		return
	}
	type entry struct {
		sessions.Session
		Current bool `json:"current"`
	}
	out := make([]entry, 0, len(list))
	for _, s := range list {
		out = append(out, entry{Session: s, Current: s.ID == current})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// Revoke destroys one of the caller's sessions by id. Revoking another
// user's session is forbidden, not silently ignored.
func (h *SessionsHandler) Revoke(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	err := h.sessions.DestroyForUser(c.Request.Context(), c.Param("sessionId"), userID)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session revoked"})
}
