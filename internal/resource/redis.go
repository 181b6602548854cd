package resource

import (
	"context"
	"time"

	"github.com/gogotex/pdf-annotator/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis. Resources are stored under
// "<prefix><ref>" with a TTL so previews of abandoned sessions expire even
// if nobody releases them.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. Prefix may be empty; a zero
// ttl means one hour.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "preview:"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) key(ref Ref) string {
	return r.prefix + string(ref)
}

func (r *RedisStore) Create(ctx context.Context, data []byte) (Ref, error) {
	ref, err := newRef()
	if err != nil {
		return "", err
	}
	if err := r.client.Set(ctx, r.key(ref), data, r.ttl).Err(); err != nil {
		return "", err
	}
	metrics.ResourcesCreated.WithLabelValues("redis").Inc()
	return ref, nil
}

func (r *RedisStore) Open(ctx context.Context, ref Ref) ([]byte, error) {
	if ref.IsZero() {
		return nil, ErrNotFound
	}
	b, err := r.client.Get(ctx, r.key(ref)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *RedisStore) Release(ctx context.Context, ref Ref) error {
	if ref.IsZero() {
		return nil
	}
	n, err := r.client.Del(ctx, r.key(ref)).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		metrics.ResourcesReleased.WithLabelValues("redis").Inc()
	}
	return nil
}
