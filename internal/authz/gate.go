package authz

import (
	"context"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/internal/models"
)

// userFinder is the slice of the user directory the gate needs.
type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Gate answers "may this user act here?" by resolving the user's
// current role at check time. Roles are compared by exact membership;
// there is no hierarchy, so an admin is denied where only EDITOR is
// allowed.
type Gate struct {
	users userFinder
}

func NewGate(users userFinder) *Gate {
	return &Gate{users: users}
}

// Authorize resolves userID and checks its role against the allowed
// set. An empty userID means the request never authenticated; an
// empty allowed set admits nobody, since no role is a member of it.
// The resolved user is returned on success so handlers don't have to
// look it up again.
func (g *Gate) Authorize(ctx context.Context, userID string, allowed ...models.Role) (*models.User, error) {
	if userID == "" {
		return nil, apperr.Unauthenticated("authentication required")
	}
	u, err := g.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		// a session can outlive its user's directory entry
		return nil, apperr.NotFound("user not found")
	}
	for _, r := range allowed {
		if u.Role == r {
			return u, nil
		}
	}
	return nil, apperr.Forbidden("insufficient role")
}
