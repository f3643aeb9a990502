package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skumar/authdemo/internal/models"
)

// MemoryStore is an in-process user store with the same contract as
// PostgresStore. It backs tests and single-process deployments where a
// database is not wanted; reads are concurrent, writes serialize on the
// mutex.
type MemoryStore struct {
	mu     sync.RWMutex
	byName map[string]*models.User
	byID   map[string]*models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byName: make(map[string]*models.User),
		byID:   make(map[string]*models.User),
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, username, hashedPassword string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[username]; ok {
		return nil, ErrDuplicateUsername
	}
	u := &models.User{
		ID:        uuid.New().String(),
		Username:  username,
		Password:  hashedPassword,
		CreatedAt: time.Now(),
	}
	s.byName[username] = u
	s.byID[u.ID] = u
	return copyUser(u), nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byName[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

// copyUser keeps callers from mutating the stored record.
func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}
