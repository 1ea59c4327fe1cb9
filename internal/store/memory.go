package store

import (
	"context"
	"slices"
	"sync"

	"github.com/atmx/sales-engine/internal/model"
)

// MemoryStore implements Store with in-memory slices. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu sync.RWMutex
	ds model.Dataset
}

// NewMemoryStore creates a new, empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Snapshot copies all four collections under one read lock.
func (s *MemoryStore) Snapshot(_ context.Context) (*model.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &model.Dataset{
		Customers:       slices.Clone(s.ds.Customers),
		Products:        slices.Clone(s.ds.Products),
		Sellers:         slices.Clone(s.ds.Sellers),
		PurchaseRecords: cloneRecords(s.ds.PurchaseRecords),
	}, nil
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ds.Products), nil
}

func (s *MemoryStore) ListSellers(_ context.Context) ([]model.Seller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ds.Sellers), nil
}

func (s *MemoryStore) ListCustomers(_ context.Context) ([]model.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ds.Customers), nil
}

func (s *MemoryStore) ListPurchaseRecords(_ context.Context) ([]model.PurchaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.ds.PurchaseRecords), nil
}

func (s *MemoryStore) ImportDataset(_ context.Context, ds *model.Dataset) error {
	// Copy outside the lock; the caller keeps ownership of ds.
	next := model.Dataset{
		Customers:       slices.Clone(ds.Customers),
		Products:        slices.Clone(ds.Products),
		Sellers:         slices.Clone(ds.Sellers),
		PurchaseRecords: cloneRecords(ds.PurchaseRecords),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = next
	return nil
}

// cloneRecords copies records including their item slices.
func cloneRecords(in []model.PurchaseRecord) []model.PurchaseRecord {
	if in == nil {
		return nil
	}
	out := make([]model.PurchaseRecord, len(in))
	for i, r := range in {
		r.Items = slices.Clone(r.Items)
		out[i] = r
	}
	return out
}
