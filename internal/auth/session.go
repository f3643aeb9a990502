package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/skumar/authdemo/internal/models"
)

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "session_id"

// SessionStore persists the token -> session mapping. The Redis
// implementation is used in production; MemorySessions backs tests and
// database-free deployments.
type SessionStore interface {
	// Create stores sess under a fresh token and returns the token.
	Create(ctx context.Context, sess *models.Session) (string, error)
	// Get returns the session for a token, or nil if absent or expired.
	Get(ctx context.Context, token string) (*models.Session, error)
	// Delete removes a session. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error
}

// RedisSessions stores sessions in Redis under "session:<token>" with the
// session TTL as the key TTL, so expiry needs no sweeper.
type RedisSessions struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSessions(rdb *redis.Client, ttl time.Duration) *RedisSessions {
	return &RedisSessions{rdb: rdb, ttl: ttl}
}

func (s *RedisSessions) Create(ctx context.Context, sess *models.Session) (string, error) {
	token := uuid.New().String()
	raw, err := json.Marshal(sess)
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, "session:"+token, raw, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisSessions) Get(ctx context.Context, token string) (*models.Session, error) {
	raw, err := s.rdb.Get(ctx, "session:"+token).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	if sess.Expired(time.Now()) {
		return nil, nil
	}
	return &sess, nil
}

func (s *RedisSessions) Delete(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, "session:"+token).Err()
}

// NewSession builds a session record for the given user (empty id and name
// for an anonymous, pre-login session) with a fresh CSRF token.
func NewSession(userID, username string, ttl time.Duration) (*models.Session, error) {
	token, err := GenerateCSRFToken()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &models.Session{
		UserID:    userID,
		Username:  username,
		CSRFToken: token,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

type contextKey int

const sessionKey contextKey = 0

// WithSession returns a context carrying the request's session. The
// middleware that validated the session calls this; handlers read it back
// with SessionFromContext.
func WithSession(ctx context.Context, sess *models.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFromContext returns the session placed in the context by the
// auth or CSRF middleware, or nil when neither ran.
func SessionFromContext(ctx context.Context) *models.Session {
	sess, _ := ctx.Value(sessionKey).(*models.Session)
	return sess
}

// GenerateCSRFToken returns 32 random bytes hex-encoded.
func GenerateCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
