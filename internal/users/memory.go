package users

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/internal/models"
)

// MemoryRepository is an in-memory Repository used for unit tests and
// as a degraded-mode fallback when MongoDB is not configured. The
// mutex gives it the same uniqueness guarantees the Mongo indexes
// provide.
type MemoryRepository struct {
	mu    sync.RWMutex
	store map[string]*models.User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: make(map[string]*models.User)}
}

func (m *MemoryRepository) Create(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.store {
		if existing.Email == u.Email {
			return apperr.Conflict("user with email %s already exists", u.Email)
		}
		if u.ExternalID != "" && existing.ExternalID == u.ExternalID {
			return apperr.Conflict("external identity already linked to another user")
		}
	}
	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.store[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.store {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.store {
		if u.ExternalID != "" && u.ExternalID == externalID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) Update(ctx context.Context, id string, data UpdateData) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return nil, nil
	}
	return m.applyLocked(u, data)
}

func (m *MemoryRepository) UpdateByEmail(ctx context.Context, email string, data UpdateData) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.store {
		if u.Email == email {
			return m.applyLocked(u, data)
		}
	}
	return nil, nil
}

// applyLocked mutates u in place; caller holds the write lock.
func (m *MemoryRepository) applyLocked(u *models.User, data UpdateData) (*models.User, error) {
	if data.ExternalID != nil && *data.ExternalID != "" {
		for _, other := range m.store {
			if other.ID != u.ID && other.ExternalID == *data.ExternalID {
				return nil, apperr.Conflict("external identity already linked to another user")
			}
		}
	}
	if data.Name != nil {
		u.Name = *data.Name
	}
	if data.AvatarURL != nil {
		u.AvatarURL = *data.AvatarURL
	}
	if data.ExternalID != nil {
		u.ExternalID = *data.ExternalID
	}
	if data.PasswordHash != nil {
		u.PasswordHash = *data.PasswordHash
	}
	if data.Role != nil {
		u.Role = *data.Role
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (m *MemoryRepository) List(ctx context.Context) ([]models.PublicUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.PublicUser, 0, len(m.store))
	for _, u := range m.store {
		out = append(out, u.Public())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
