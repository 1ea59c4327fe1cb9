package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/sales-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. The whole dataset is cached as one value keyed by a version
// counter. Imports go to the primary store and bump the version, so a
// reader that loaded the old dataset can only write it under a key nobody
// reads any more.
type CachedStore struct {
	primary Store
	rdb     redis.Cmdable
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb redis.Cmdable, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, bump version) ---

func (s *CachedStore) ImportDataset(ctx context.Context, ds *model.Dataset) error {
	if err := s.primary.ImportDataset(ctx, ds); err != nil {
		return err
	}
	if err := s.rdb.Incr(ctx, versionKey).Err(); err != nil {
		return fmt.Errorf("invalidate dataset cache: %w", err)
	}
	return nil
}

// --- Read-through (check cache first) ---

// Snapshot returns the cached dataset for the current version, or loads it
// from the primary and caches it. Cache errors are treated as misses.
func (s *CachedStore) Snapshot(ctx context.Context) (*model.Dataset, error) {
	version, err := s.rdb.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		// Without a version nothing can be cached safely.
		slog.Warn("dataset cache unavailable", "err", err)
		return s.primary.Snapshot(ctx)
	}
	key := snapshotKey(version)

	if data, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
		var cached model.Dataset
		if json.Unmarshal(data, &cached) == nil {
			return &cached, nil
		}
	}

	// Cache miss.
	ds, err := s.primary.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(ds); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
	return ds, nil
}

func (s *CachedStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	ds, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ds.Products, nil
}

func (s *CachedStore) ListSellers(ctx context.Context) ([]model.Seller, error) {
	ds, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ds.Sellers, nil
}

func (s *CachedStore) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	ds, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ds.Customers, nil
}

func (s *CachedStore) ListPurchaseRecords(ctx context.Context) ([]model.PurchaseRecord, error) {
	ds, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ds.PurchaseRecords, nil
}

// --- Cache keys ---

const (
	keyPrefix  = "sales:dataset:"
	versionKey = keyPrefix + "version"
)

func snapshotKey(version int64) string {
	return keyPrefix + "snapshot:" + strconv.FormatInt(version, 10)
}
