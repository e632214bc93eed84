package stores

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/liut/parley/pkg/settings"
)

var (
	ErrNoSession = errors.New("no session")
	ErrEmptyKey  = errors.New("empty key")
)

// SessionStore keeps the Identity between runs
type SessionStore interface {
	Load(ctx context.Context) (*Identity, error)
	Save(ctx context.Context, id *Identity) error
	Clear(ctx context.Context) error
}

// NewSessionStore returns a redis backed store, ttl 0 means no expiry
func NewSessionStore(rc RedisClient, key string, ttl time.Duration) SessionStore {
	return &sessionStore{rc: rc, key: key, ttl: ttl}
}

// SgtSession returns a store on the singleton redis client with current settings
func SgtSession() SessionStore {
	return NewSessionStore(SgtRC(), settings.Current.SessionKey, settings.Current.SessionTTL)
}

type sessionStore struct {
	rc  RedisClient
	key string
	ttl time.Duration
}

func (s *sessionStore) Load(ctx context.Context) (*Identity, error) {
	if len(s.key) == 0 {
		return nil, ErrEmptyKey
	}
	var id Identity
	err := s.rc.Get(ctx, s.key).Scan(&id)
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		logger().Infow("load session fail", "key", s.key, "err", err)
		return nil, err
	}
	if len(id.Token) == 0 {
		return nil, ErrNoSession
	}
	return &id, nil
}

func (s *sessionStore) Save(ctx context.Context, id *Identity) error {
	if len(s.key) == 0 {
		return ErrEmptyKey
	}
	if id == nil || len(id.Token) == 0 {
		return ErrNoSession
	}
	if err := s.rc.Set(ctx, s.key, id, s.ttl).Err(); err != nil {
		logger().Infow("save session fail", "key", s.key, "err", err)
		return err
	}
	logger().Debugw("saved session", "key", s.key)
	return nil
}

func (s *sessionStore) Clear(ctx context.Context) error {
	return s.rc.Del(ctx, s.key).Err()
}
