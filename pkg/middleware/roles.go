package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/internal/models"
)

// Authorizer is the slice of the authorization gate this middleware
// depends on.
type Authorizer interface {
	Authorize(ctx context.Context, userID string, allowed ...models.Role) (*models.User, error)
}

// RequireRole returns a middleware that admits only users whose
// current role is in the allowed set. Must run after SessionAuth. The
// role is read from the directory at request time, so a demotion takes
// effect on the next request, not the next login.
func RequireRole(gate Authorizer, allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(ContextUserID)
		u, err := gate.Authorize(c.Request.Context(), userID, allowed...)
		if err != nil {
			c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.Set(ContextUserID, u.ID)
		c.Next()
	}
}
