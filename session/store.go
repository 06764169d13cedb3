package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the persistence backend cannot be reached.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrCredentialsNotFound is returned by [Store.Load] when nothing is persisted.
var ErrCredentialsNotFound = errors.New("credentials not found")

// ErrCredentialsCorrupt is returned when a persisted record cannot be decoded.
// The record is removed before the error is returned.
var ErrCredentialsCorrupt = errors.New("credentials record corrupt")

// Store persists [Credentials] in Redis so a flow interrupted by the OAuth
// redirect, or by a process restart, can re-derive its context.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewStore creates a [Store]. A non-positive ttl stores records without expiry.
func NewStore(client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	return &Store{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *Store) key(namespace string) string {
	if namespace == "" {
		namespace = "default"
	}
	return s.prefix + ":cred:" + namespace
}

// Save writes c under namespace, replacing any previous record. An empty
// record deletes instead.
func (s *Store) Save(ctx context.Context, namespace string, c Credentials) error {
	if c.Empty() {
		return s.Delete(ctx, namespace)
	}

	c.SavedAt = s.now().Unix()
	data, err := Encode(&c)
	if err != nil {
		return err
	}

	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}

	if err := s.redis.Set(ctx, s.key(namespace), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Load reads the record stored under namespace.
func (s *Store) Load(ctx context.Context, namespace string) (*Credentials, error) {
	key := s.key(namespace)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	c, err := Decode(data)
	if err != nil {
		_ = s.redis.Del(ctx, key).Err()
		return nil, fmt.Errorf("%w: %v", ErrCredentialsCorrupt, err)
	}

	return c, nil
}

// Delete removes the record stored under namespace. Deleting a missing record
// is not an error.
func (s *Store) Delete(ctx context.Context, namespace string) error {
	if err := s.redis.Del(ctx, s.key(namespace)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
