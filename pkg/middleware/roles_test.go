package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/internal/models"
)

type fakeGate map[string]models.Role

func (f fakeGate) Authorize(ctx context.Context, userID string, allowed ...models.Role) (*models.User, error) {
	if userID == "" {
		return nil, apperr.Unauthenticated("authentication required")
	}
	role, ok := f[userID]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	for _, r := range allowed {
		if r == role {
			return &models.User{ID: userID, Role: role}, nil
		}
	}
	return nil, apperr.Forbidden("insufficient role")
}

func TestRequireRole(t *testing.T) {
	gate := fakeGate{"u-admin": models.RoleAdmin, "u-viewer": models.RoleViewer}

	newRouter := func(user string) *gin.Engine {
		r := gin.New()
		if user != "" {
			r.Use(asUser(user))
		}
		r.Use(RequireRole(gate, models.RoleAdmin))
		r.GET("/admin", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
		return r
	}

	cases := []struct {
		name string
		user string
		want int
	}{
		{"admin passes", "u-admin", http.StatusOK},
		{"viewer forbidden", "u-viewer", http.StatusForbidden},
		{"unknown user", "u-gone", http.StatusNotFound},
		{"unauthenticated", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(tc.user).ServeHTTP(w, httptest.NewRequest("GET", "/admin", nil))
			require.Equal(t, tc.want, w.Code)
		})
	}
}
