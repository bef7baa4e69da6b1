package sessions

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/pkg/device"
	"github.com/uchkunrakhimow/auth-kit/pkg/metrics"
)

func newSessionID() string { return uuid.NewString() }

func sortByLastActivityDesc(list []Session) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].LastActivity.After(list[j].LastActivity)
	})
}

// Service wraps repository operations with the rolling-expiry session
// protocol.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(r Repository) *Service {
	return &Service{repo: r, now: func() time.Time { return time.Now().UTC() }}
}

// Create stores a new session for the user. The token must already be
// generated by the caller with credential-grade randomness; this
// service never generates tokens. A zero ttl means the default
// SessionTTL.
func (s *Service) Create(ctx context.Context, userID, token string, info device.Info, ttl time.Duration) (*Session, error) {
	if userID == "" || token == "" {
		return nil, apperr.InvalidArgument("user id and token are required")
	}
	if ttl == 0 {
		ttl = SessionTTL
	}
	now := s.now()
	sess := &Session{
		Token:        token,
		UserID:       userID,
		DeviceName:   info.DeviceName,
		DeviceType:   info.DeviceType,
		UserAgent:    info.UserAgent,
		IPAddress:    info.IPAddress,
		LastActivity: now,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Validate runs the per-request session state machine:
//
//  1. unknown token          -> nil (invalid)
//  2. now >= expiresAt       -> delete, nil (lazy expiry)
//  3. remaining < threshold  -> renew to now+TTL, touch lastActivity
//  4. otherwise              -> touch lastActivity only
//
// The renewal write sets only lastActivity/expiresAt, so two requests
// racing on the same token can at worst last-write those two fields,
// both with values no earlier than either computed individually.
func (s *Service) Validate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		metrics.SessionValidations.WithLabelValues("invalid").Inc()
		return nil, nil
	}
	sess, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		metrics.SessionValidations.WithLabelValues("invalid").Inc()
		return nil, nil
	}

	now := s.now()
	if !sess.Usable(now) {
		if err := s.repo.Delete(ctx, sess.ID); err != nil {
			return nil, err
		}
		metrics.SessionValidations.WithLabelValues("expired").Inc()
		return nil, nil
	}

	if sess.ExpiresAt.Sub(now) < RenewalThreshold {
		renewed := now.Add(SessionTTL)
		if err := s.repo.UpdateActivity(ctx, sess.ID, now, &renewed); err != nil {
			return nil, err
		}
		sess.LastActivity = now
		sess.ExpiresAt = renewed
		metrics.SessionValidations.WithLabelValues("renewed").Inc()
		return sess, nil
	}

	if err := s.repo.UpdateActivity(ctx, sess.ID, now, nil); err != nil {
		return nil, err
	}
	sess.LastActivity = now
	metrics.SessionValidations.WithLabelValues("valid").Inc()
	return sess, nil
}

// Destroy removes the session with the given token. Absence is not an
// error: logout is idempotent.
func (s *Service) Destroy(ctx context.Context, token string) error {
	return s.repo.DeleteByToken(ctx, token)
}

// DestroyAllForUser removes every session the user owns and returns
// how many were deleted.
func (s *Service) DestroyAllForUser(ctx context.Context, userID string) (int64, error) {
	return s.repo.DeleteByUser(ctx, userID)
}

// ListForUser returns the user's sessions, most recently active first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Session, error) {
	return s.repo.ListByUser(ctx, userID)
}

// DestroyForUser removes a single session by id after checking the
// requester owns it (per-device logout).
func (s *Service) DestroyForUser(ctx context.Context, sessionID, requestingUserID string) error {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return apperr.NotFound("session %s not found", sessionID)
	}
	if sess.UserID != requestingUserID {
		return apperr.Forbidden("session is owned by another user")
	}
	return s.repo.Delete(ctx, sessionID)
}

// SweepExpired removes sessions that have already lapsed. This is a
// storage-reclamation optimization only; Validate performs the same
// check lazily and correctness never depends on the sweep running.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}
