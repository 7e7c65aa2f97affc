package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rediskv "github.com/defterlab/defter/internal/infra/redis"
)

// RedisStore persists cache entries in Redis. Values are serialized as
// JSON, so loaded Data comes back as json.RawMessage; use Decode to
// recover a typed value regardless of the backing store.
type RedisStore struct {
	kv *rediskv.KV
}

// NewRedisStore wraps a Redis connection as a cache store.
func NewRedisStore(kv *rediskv.KV) *RedisStore {
	return &RedisStore{kv: kv}
}

type redisPayload struct {
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetched_at"`
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil || !found {
		return Entry{}, false, err
	}
	var p redisPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Entry{}, false, fmt.Errorf("corrupt cache entry %q: %w", key, err)
	}
	return Entry{Data: p.Data, FetchedAt: p.FetchedAt}, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, e Entry) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshal cache entry %q: %w", key, err)
	}
	raw, err := json.Marshal(redisPayload{Data: data, FetchedAt: e.FetchedAt})
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, raw)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, key)
}

func (s *RedisStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	return s.kv.DeleteByPrefix(ctx, prefix)
}

// Decode copies a cached value into out. Memory-store values round-trip
// through JSON; redis-store values decode directly from their raw form.
func Decode(data any, out any) error {
	if raw, ok := data.(json.RawMessage); ok {
		return json.Unmarshal(raw, out)
	}
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, out)
}
