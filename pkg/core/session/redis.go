package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxcart/voxcart/pkg/core"
	"github.com/voxcart/voxcart/pkg/core/types"
)

const (
	redisKeyPrefix  = "voxcart:session:"
	defaultRedisTTL = 24 * time.Hour
)

// RedisStore persists each session as a JSON value with a TTL. The turn
// pipeline serializes callers per session id, so read-modify-write in
// AppendTurn is safe without optimistic locking.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed session store.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return redisKeyPrefix + id
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, sess *types.Session) error {
	val, err := json.Marshal(sess)
	if err != nil {
		return core.NewStorageError(fmt.Errorf("marshal session: %w", err))
	}
	ok, err := s.client.SetNX(ctx, s.key(sess.ID), val, s.ttl).Result()
	if err != nil {
		return core.NewStorageError(err)
	}
	if !ok {
		return core.NewStorageError(errDuplicateID(sess.ID))
	}
	return nil
}

// Get implements Store. TTL is refreshed on every read.
func (s *RedisStore) Get(ctx context.Context, id string) (*types.Session, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, core.NewNotFoundError("session not found")
	}
	if err != nil {
		return nil, core.NewStorageError(err)
	}

	var sess types.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, core.NewStorageError(fmt.Errorf("unmarshal session %s: %w", id, err))
	}

	// Best effort; a failed TTL refresh is not a read failure.
	_ = s.client.Expire(ctx, s.key(id), s.ttl).Err()

	return &sess, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, sess *types.Session) error {
	val, err := json.Marshal(sess)
	if err != nil {
		return core.NewStorageError(fmt.Errorf("marshal session: %w", err))
	}
	if err := s.client.Set(ctx, s.key(sess.ID), val, s.ttl).Err(); err != nil {
		return core.NewStorageError(err)
	}
	return nil
}

// AppendTurn implements Store.
func (s *RedisStore) AppendTurn(ctx context.Context, id string, turn types.Turn, delta types.AnalyticsDelta) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.AppendTurn(turn)
	sess.Analytics.Apply(delta)
	return s.Put(ctx, sess)
}

// ListIdle implements Store. Scans the session keyspace; sweep cadence is
// low so a full scan is acceptable.
func (s *RedisStore) ListIdle(ctx context.Context, state types.SessionState, startedBefore time.Time) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		val, err := s.client.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, core.NewStorageError(err)
		}
		var sess types.Session
		if err := json.Unmarshal([]byte(val), &sess); err != nil {
			continue
		}
		if sess.State == state && sess.StartedAt.Before(startedBefore) {
			ids = append(ids, sess.ID)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, core.NewStorageError(err)
	}
	return ids, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
