package users

import (
	"context"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/internal/models"
)

// ExternalClaim is the identity claim delivered by the OAuth boundary
// after a successful third-party handshake. This service never
// performs the handshake itself.
type ExternalClaim struct {
	ExternalID string
	Email      string
	Name       string
	AvatarURL  string
}

// ProfilePatch applies only the fields that are set.
type ProfilePatch struct {
	Name      *string
	AvatarURL *string
}

// Service encapsulates user-directory business logic
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

// CreateParams describes a new directory entry. PasswordHash is an
// already-derived digest; this service never sees raw secrets.
type CreateParams struct {
	Email        string
	PasswordHash string
	Name         string
	AvatarURL    string
	Role         models.Role
}

// Create registers a new user. The email uniqueness check is the
// store's unique index, not a read-then-write pre-check, so two
// concurrent registrations with the same email produce exactly one
// user and one conflict.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.User, error) {
	if p.Email == "" {
		return nil, apperr.InvalidArgument("email is required")
	}
	role := p.Role
	if role == "" {
		role = models.RoleUser
	}
	u := &models.User{
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		Name:         p.Name,
		AvatarURL:    p.AvatarURL,
		Role:         role,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// FindByEmail returns the user or (nil, nil) when absent.
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

// FindByID returns the user or (nil, nil) when absent.
func (s *Service) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

// FindByExternalID returns the user or (nil, nil) when absent.
func (s *Service) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return s.repo.GetByExternalID(ctx, externalID)
}

// UpdateProfile applies the provided profile fields to the user.
func (s *Service) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (*models.User, error) {
	updated, err := s.repo.Update(ctx, id, UpdateData{Name: patch.Name, AvatarURL: patch.AvatarURL})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.NotFound("user %s not found", id)
	}
	return updated, nil
}

// UpdateRole changes the user's role. The value must belong to the
// closed enumeration; handlers validate at the boundary but the
// directory defends its own invariant.
func (s *Service) UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	if _, err := models.ParseRole(string(role)); err != nil {
		return nil, apperr.InvalidArgument("invalid role %q", role)
	}
	updated, err := s.repo.Update(ctx, id, UpdateData{Role: &role})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.NotFound("user %s not found", id)
	}
	return updated, nil
}

// ListAll returns every user, newest first, without password digests.
func (s *Service) ListAll(ctx context.Context) ([]models.PublicUser, error) {
	return s.repo.List(ctx)
}

// Reconcile merges an external identity claim into the directory:
// create when the email is new, link when the user has no external
// identity yet, otherwise refresh profile fields only. The
// first-linked external identity is sticky and never overwritten.
func (s *Service) Reconcile(ctx context.Context, claim ExternalClaim) (*models.User, error) {
	if claim.Email == "" {
		return nil, apperr.InvalidArgument("external claim has no email")
	}

	existing, err := s.repo.GetByEmail(ctx, claim.Email)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		u := &models.User{
			Email:      claim.Email,
			ExternalID: claim.ExternalID,
			Name:       claim.Name,
			AvatarURL:  claim.AvatarURL,
			Role:       models.RoleUser,
		}
		err := s.repo.Create(ctx, u)
		if err == nil {
			return u, nil
		}
		if !apperr.IsKind(err, apperr.KindConflict) {
			return nil, err
		}
		// Lost a create race against a concurrent first sign-in for
		// the same email. The row exists now, so link instead.
		existing, err = s.repo.GetByEmail(ctx, claim.Email)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, apperr.NotFound("user with email %s not found", claim.Email)
		}
	}

	data := UpdateData{Name: &claim.Name, AvatarURL: &claim.AvatarURL}
	if existing.ExternalID == "" && claim.ExternalID != "" {
		data.ExternalID = &claim.ExternalID
	}
	updated, err := s.repo.UpdateByEmail(ctx, claim.Email, data)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// The user vanished between lookup and update.
		return nil, apperr.NotFound("user with email %s not found", claim.Email)
	}
	return updated, nil
}
