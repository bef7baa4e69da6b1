package passkeys

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
)

// MemoryRepository is an in-memory Repository for unit tests and the
// no-Mongo fallback. Uniqueness checks run under the write lock so it
// matches the Mongo index guarantees.
type MemoryRepository struct {
	mu    sync.RWMutex
	store map[string]*Passkey
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: make(map[string]*Passkey)}
}

func (m *MemoryRepository) Create(ctx context.Context, p *Passkey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.store {
		if existing.CredentialID == p.CredentialID {
			return apperr.Conflict("passkey with credential id %s already exists", p.CredentialID)
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (*Passkey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.store[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryRepository) GetByCredentialID(ctx context.Context, credentialID string) (*Passkey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.CredentialID == credentialID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]Passkey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Passkey
	for _, p := range m.store {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryRepository) UpdateUsage(ctx context.Context, id string, counter int64, lastUsedAt time.Time) (*Passkey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, nil
	}
	p.Counter = counter
	t := lastUsedAt
	p.LastUsedAt = &t
	cp := *p
	return &cp, nil
}

func (m *MemoryRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, id)
	return nil
}
