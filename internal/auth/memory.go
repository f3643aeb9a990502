package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skumar/authdemo/internal/models"
)

// MemorySessions is an in-process SessionStore. Expiry is checked lazily
// on Get; there is no background sweeper.
type MemorySessions struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]*models.Session)}
}

func (s *MemorySessions) Create(ctx context.Context, sess *models.Session) (string, error) {
	token := uuid.New().String()
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *sess
	s.sessions[token] = &c
	return token, nil
}

func (s *MemorySessions) Get(ctx context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if sess.Expired(time.Now()) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, nil
	}
	c := *sess
	return &c, nil
}

func (s *MemorySessions) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

var _ SessionStore = (*MemorySessions)(nil)
