// Package store defines where the sales dataset is read from. Implementations
// include PostgreSQL (source of truth), Redis (read-through cache), and
// in-memory (for testing and single-process use).
//
// Only input data lives here. Reports are recomputed on every request and
// are never stored.
package store

import (
	"context"

	"github.com/atmx/sales-engine/internal/model"
)

// Store is the dataset source. List methods return records in import order,
// which is the order ties are broken by during ranking.
type Store interface {
	// Snapshot returns the whole dataset as of a single import. It never
	// mixes collections from two different imports.
	Snapshot(ctx context.Context) (*model.Dataset, error)

	// ListProducts returns the product catalog.
	ListProducts(ctx context.Context) ([]model.Product, error)

	// ListSellers returns all sellers.
	ListSellers(ctx context.Context) ([]model.Seller, error)

	// ListCustomers returns all customers.
	ListCustomers(ctx context.Context) ([]model.Customer, error)

	// ListPurchaseRecords returns all receipts with their line items.
	ListPurchaseRecords(ctx context.Context) ([]model.PurchaseRecord, error)

	// ImportDataset atomically replaces the stored dataset.
	ImportDataset(ctx context.Context, ds *model.Dataset) error
}
