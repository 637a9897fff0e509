// Package redis stores routes, runs and dead letters in Redis through Grove
// KV. Entities are JSON documents; listings are served from sorted sets
// scored by creation time.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/grove/kv"
	"github.com/xraph/grove/kv/drivers/redisdriver"

	conduitstore "github.com/xraph/conduit/store"
)

var _ conduitstore.Store = (*Store)(nil)

// Store implements store.Store using Redis via Grove KV.
type Store struct {
	kv  *kv.Store
	rdb goredis.UniversalClient
}

// New creates a Redis store. Sorted-set and SETNX operations go straight to
// the go-redis client behind kvStore.
func New(kvStore *kv.Store) *Store {
	return &Store{
		kv:  kvStore,
		rdb: redisdriver.UnwrapClient(kvStore),
	}
}

// Migrate is a no-op; Redis needs no schema.
func (s *Store) Migrate(context.Context) error { return nil }

func (s *Store) Ping(ctx context.Context) error { return s.kv.Ping(ctx) }

func (s *Store) Close() error { return s.kv.Close() }

// score maps t to a sorted-set score in fractional unix seconds.
func score(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func isNotFound(err error) bool { return errors.Is(err, kv.ErrNotFound) }

func isRedisNil(err error) bool { return errors.Is(err, goredis.Nil) }

func (s *Store) load(ctx context.Context, key string, dest any) error {
	raw, err := s.kv.GetRaw(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (s *Store) save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("conduit/redis: marshal %s: %w", key, err)
	}
	return s.kv.SetRaw(ctx, key, raw)
}

// saveExisting overwrites key only if it is already present.
func (s *Store) saveExisting(ctx context.Context, key string, value any, notFound error) error {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("conduit/redis: exists %s: %w", key, err)
	}
	if n == 0 {
		return notFound
	}
	return s.save(ctx, key, value)
}

// membersDesc returns every member of a sorted set, highest score first.
func (s *Store) membersDesc(ctx context.Context, key string) ([]string, error) {
	return s.rdb.ZRevRange(ctx, key, 0, -1).Result()
}

// membersBetween returns members scored within [lo, hi], lowest first.
// Infinite bounds are open.
func (s *Store) membersBetween(ctx context.Context, key string, lo, hi float64) ([]string, error) {
	bound := func(v float64, inf string) string {
		if math.IsInf(v, 0) {
			return inf
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return s.rdb.ZRangeByScore(ctx, key, &goredis.ZRangeBy{
		Min: bound(lo, "-inf"),
		Max: bound(hi, "+inf"),
	}).Result()
}

// page applies offset and limit to items.
func page[T any](items []*T, offset, limit int) []*T {
	offset = max(offset, 0)
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
