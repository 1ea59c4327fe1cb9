// Package analysis computes the per-seller sales performance report.
//
// A run is a single linear pass over a dataset snapshot:
//
//	BuildIndex → Aggregate → Rank → Project
//
// Accumulators are created fresh for every call and discarded after the
// report is projected, so Analyze is safe to call concurrently with
// independent inputs. Revenue and bonus policies are injected through the
// RevenueStrategy and BonusStrategy interfaces.
//
// All monetary values use shopspring/decimal, never float64.
// Rounding to two decimal places happens once, in Project.
package analysis

import (
	"errors"

	"github.com/atmx/sales-engine/internal/model"
)

var (
	// ErrInvalidInput is returned when the dataset is missing or has no sellers.
	ErrInvalidInput = errors.New("analysis: dataset must contain at least one seller")

	// ErrMissingStrategy is returned when a revenue or bonus strategy is absent.
	ErrMissingStrategy = errors.New("analysis: revenue and bonus strategies are required")

	// ErrUnknownSeller is returned when a purchase record references a seller
	// that is not part of the dataset.
	ErrUnknownSeller = errors.New("analysis: unknown seller")

	// ErrUnknownProduct is returned when a purchase item references a SKU
	// that is not part of the catalog.
	ErrUnknownProduct = errors.New("analysis: unknown product")

	// ErrDuplicateKey is returned when two sellers share an id or two
	// products share a SKU.
	ErrDuplicateKey = errors.New("analysis: duplicate key")
)

// Options carries the caller-supplied policies. Both are mandatory.
type Options struct {
	Revenue RevenueStrategy
	Bonus   BonusStrategy
}

// DefaultOptions returns the simple discounted revenue and the default
// profit tiers.
func DefaultOptions() Options {
	return Options{
		Revenue: SimpleRevenue,
		Bonus:   BonusByProfit,
	}
}

// Analyze runs the full pipeline and returns one report per seller, ordered
// by profit descending. Any error aborts the run; no partial report is
// returned.
func Analyze(data *model.Dataset, opts Options) ([]model.SellerReport, error) {
	if data == nil || len(data.Sellers) == 0 {
		return nil, ErrInvalidInput
	}
	if missingStrategy(opts.Revenue) || missingStrategy(opts.Bonus) {
		return nil, ErrMissingStrategy
	}

	idx, err := BuildIndex(data.Sellers, data.Products)
	if err != nil {
		return nil, err
	}

	if err := Aggregate(data.PurchaseRecords, idx, opts.Revenue); err != nil {
		return nil, err
	}

	stats := idx.Stats()
	Rank(stats, opts.Bonus)

	return Project(stats), nil
}

// missingStrategy reports whether s is nil, including a nil function value
// wrapped in one of the adapter types.
func missingStrategy(s any) bool {
	switch v := s.(type) {
	case nil:
		return true
	case RevenueFunc:
		return v == nil
	case BonusFunc:
		return v == nil
	}
	return false
}
