package passkeys

import (
	"context"
	"time"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/internal/models"
	"github.com/uchkunrakhimow/auth-kit/pkg/logger"
)

// userResolver is the slice of the user directory this service needs
// to attach owner projections during verification lookups.
type userResolver interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CredentialWithOwner pairs a credential with its owner's public
// projection, saving the WebAuthn collaborator a second lookup.
type CredentialWithOwner struct {
	Passkey
	User models.PublicUser `json:"user"`
}

// Service wraps credential persistence with ownership and uniqueness
// rules.
type Service struct {
	repo  Repository
	users userResolver
}

func NewService(r Repository, users userResolver) *Service {
	return &Service{repo: r, users: users}
}

// EnrollParams describes a new credential to bind to a user.
type EnrollParams struct {
	UserID       string
	CredentialID string
	PublicKey    string
	DeviceName   string
}

// Enroll binds a credential to a user. The credential id is globally
// unique across all users; reusing one from another account fails
// with a conflict regardless of who asks.
func (s *Service) Enroll(ctx context.Context, p EnrollParams) (*Passkey, error) {
	if p.UserID == "" {
		return nil, apperr.InvalidArgument("user id is required")
	}
	if p.CredentialID == "" || p.PublicKey == "" {
		return nil, apperr.InvalidArgument("credential id and public key are required")
	}
	pk := &Passkey{
		UserID:       p.UserID,
		CredentialID: p.CredentialID,
		PublicKey:    p.PublicKey,
		DeviceName:   p.DeviceName,
		Counter:      0,
	}
	if err := s.repo.Create(ctx, pk); err != nil {
		return nil, err
	}
	return pk, nil
}

// ListByUser returns a user's credentials, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Passkey, error) {
	return s.repo.ListByUser(ctx, userID)
}

// FindByCredentialID resolves a credential and its owner for
// verification. Returns (nil, nil) when the credential is unknown.
func (s *Service) FindByCredentialID(ctx context.Context, credentialID string) (*CredentialWithOwner, error) {
	pk, err := s.repo.GetByCredentialID(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if pk == nil {
		return nil, nil
	}
	owner, err := s.users.FindByID(ctx, pk.UserID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, apperr.NotFound("owner of credential %s not found", credentialID)
	}
	return &CredentialWithOwner{Passkey: *pk, User: owner.Public()}, nil
}

// RecordUse stores the authenticator counter after a successful
// verification. The caller is responsible for the cloned-authenticator
// check (newCounter > stored); a non-increasing counter is logged but
// stored as given, since the policy decision belongs to the verifier.
func (s *Service) RecordUse(ctx context.Context, credentialID string, newCounter int64) (*Passkey, error) {
	pk, err := s.repo.GetByCredentialID(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if pk == nil {
		return nil, apperr.NotFound("passkey %s not found", credentialID)
	}
	if newCounter <= pk.Counter && pk.Counter > 0 {
		logger.Warnf("passkey counter did not increase (credential=%s stored=%d new=%d)", credentialID, pk.Counter, newCounter)
	}
	updated, err := s.repo.UpdateUsage(ctx, pk.ID, newCounter, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.NotFound("passkey %s not found", credentialID)
	}
	return updated, nil
}

// Remove deletes a credential after verifying the requester owns it.
// The key may be either the record id or the authenticator-issued
// credential id.
func (s *Service) Remove(ctx context.Context, key, requestingUserID string) error {
	pk, err := s.repo.GetByID(ctx, key)
	if err != nil {
		return err
	}
	if pk == nil {
		pk, err = s.repo.GetByCredentialID(ctx, key)
		if err != nil {
			return err
		}
	}
	if pk == nil {
		return apperr.NotFound("passkey %s not found", key)
	}
	if pk.UserID != requestingUserID {
		return apperr.Forbidden("passkey is owned by another user")
	}
	return s.repo.Delete(ctx, pk.ID)
}
