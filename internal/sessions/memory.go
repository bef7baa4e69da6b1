package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
)

// MemoryRepository keeps sessions in process memory. Used for local
// development when neither Mongo nor Redis is configured; everything
// is lost on restart.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*Session
	byToken map[string]string // token -> id
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*Session),
		byToken: make(map[string]string),
	}
}

func (m *MemoryRepository) Create(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byToken[s.Token]; exists {
		return apperr.Conflict("session token already exists")
	}
	now := time.Now().UTC()
	if s.ID == "" {
		s.ID = newSessionID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.LastActivity.IsZero() {
		s.LastActivity = now
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = now.Add(SessionTTL)
	}
	cp := *s
	m.byID[s.ID] = &cp
	m.byToken[s.Token] = s.ID
	return nil
}

func (m *MemoryRepository) GetByToken(ctx context.Context, token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byToken[token]
	if !ok {
		return nil, nil
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Session
	for _, s := range m.byID {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sortByLastActivityDesc(out)
	return out, nil
}

func (m *MemoryRepository) UpdateActivity(ctx context.Context, id string, lastActivity time.Time, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil
	}
	s.LastActivity = lastActivity
	if expiresAt != nil {
		s.ExpiresAt = *expiresAt
	}
	return nil
}

func (m *MemoryRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(id)
	return nil
}

func (m *MemoryRepository) DeleteByToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byToken[token]; ok {
		m.deleteLocked(id)
	}
	return nil
}

func (m *MemoryRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.byID {
		if s.UserID == userID {
			m.deleteLocked(id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.byID {
		if !now.Before(s.ExpiresAt) {
			m.deleteLocked(id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) deleteLocked(id string) {
	if s, ok := m.byID[id]; ok {
		delete(m.byToken, s.Token)
		delete(m.byID, id)
	}
}
