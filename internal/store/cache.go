package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/cmsadmin/internal/observability"
)

// CachedStore wraps a CollectionStore with a Redis read-through cache for
// Get. Set writes through and evicts the cached copy. The key format is
// "cms:collection:{id}".
type CachedStore struct {
	next   CollectionStore
	client redis.Cmdable
	ttl    time.Duration
}

type cacheEntry struct {
	ID        string         `json:"id"`
	Data      map[string]any `json:"data"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewCachedStore creates a cached store. A non-positive ttl disables expiry.
func NewCachedStore(next CollectionStore, client redis.Cmdable, ttl time.Duration) *CachedStore {
	return &CachedStore{next: next, client: client, ttl: ttl}
}

// CacheKey builds the Redis key for a collection document.
func CacheKey(id string) string {
	return fmt.Sprintf("cms:collection:%s", id)
}

// List always reads from the underlying store.
func (s *CachedStore) List(ctx context.Context) ([]Document, error) {
	return s.next.List(ctx)
}

// Get serves from Redis when possible and fills the cache on a miss. Redis
// failures fall through to the underlying store.
func (s *CachedStore) Get(ctx context.Context, id string) (doc Document, err error) {
	ctx, span := observability.StartSpan(ctx, "store.cache_get", observability.AttrCollectionID.String(id))
	defer func() { observability.EndSpanWithError(span, err) }()
	key := CacheKey(id)

	raw, rerr := s.client.Get(ctx, key).Bytes()
	if rerr == nil {
		var entry cacheEntry
		if json.Unmarshal(raw, &entry) == nil {
			span.SetAttributes(observability.AttrCacheHit.Bool(true))
			return Document{ID: entry.ID, Data: entry.Data, UpdatedAt: entry.UpdatedAt}, nil
		}
	} else if !errors.Is(rerr, redis.Nil) && ctx.Err() != nil {
		return Document{}, ctx.Err()
	}
	span.SetAttributes(observability.AttrCacheHit.Bool(false))

	doc, err = s.next.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}

	data, err := json.Marshal(cacheEntry{ID: doc.ID, Data: doc.Data, UpdatedAt: doc.UpdatedAt})
	if err == nil {
		_ = s.client.Set(ctx, key, data, s.ttl).Err()
	}
	return doc, nil
}

// Set writes through and evicts the cached copy.
func (s *CachedStore) Set(ctx context.Context, id string, data map[string]any) error {
	if err := s.next.Set(ctx, id, data); err != nil {
		return err
	}
	if err := s.client.Del(ctx, CacheKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", CacheKey(id), err)
	}
	return nil
}

// Subscribe delegates to the underlying store.
func (s *CachedStore) Subscribe(ctx context.Context) (<-chan []Document, error) {
	return s.next.Subscribe(ctx)
}

// Ping checks Redis connectivity for readiness probes.
func (s *CachedStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
