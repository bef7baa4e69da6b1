package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uchkunrakhimow/auth-kit/internal/sessions"
)

// Context keys set by SessionAuth for downstream handlers.
const (
	ContextUserID    = "userID"
	ContextSessionID = "sessionID"
)

// SessionValidator is the slice of the session service the middleware
// depends on.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*sessions.Session, error)
}

// sessionToken pulls the bearer credential from the session cookie,
// falling back to an Authorization: Bearer header for non-browser
// clients.
func sessionToken(c *gin.Context, cookieName string) string {
	if v, err := c.Cookie(cookieName); err == nil && v != "" {
		return v
	}
	auth := c.GetHeader("Authorization")
	if tok, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(tok)
	}
	return ""
}

// SessionAuth returns a Gin middleware that resolves the request's
// session. An invalid, expired, or missing token aborts with 401; a
// valid one also renews or touches the session as a side effect of
// validation.
func SessionAuth(v SessionValidator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c, cookieName)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		s, err := v.Validate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session check failed"})
			return
		}
		if s == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}
		c.Set(ContextUserID, s.UserID)
		c.Set(ContextSessionID, s.ID)
		c.Next()
	}
}
