package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wirangar/bazarino-bot/internal/session"
)

// RedisSessionStore persists chat sessions between webhook updates so any
// process can handle the next one. Sessions expire after the TTL: an
// abandoned cart quietly dies instead of holding a phantom reservation
// (nothing is reserved before commit anyway).
type RedisSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

func key(id string) string { return "session:" + id }

func (s *RedisSessionStore) Load(ctx context.Context, id string) (*session.Session, bool, error) {
	raw, err := s.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var sess session.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, false, err
	}
	return &sess, true, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, sess *session.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key(sess.ID), raw, s.ttl).Err()
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, key(id)).Err()
}

var _ session.Store = (*RedisSessionStore)(nil)
