package analysis

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/sales-engine/internal/model"
)

// SellerStats is the mutable per-seller accumulator. It is owned by a single
// Analyze call and never shared.
type SellerStats struct {
	ID         string
	Name       string
	Revenue    decimal.Decimal
	Profit     decimal.Decimal
	SalesCount int

	// ProductsSold maps SKU → total quantity sold by this seller.
	ProductsSold map[string]int

	// Filled in by Rank.
	Bonus       decimal.Decimal
	TopProducts []model.ProductQuantity

	soldOrder []string // SKUs in first-sold order, for stable tie-breaks
}

func newSellerStats(s model.Seller) *SellerStats {
	return &SellerStats{
		ID:           s.ID,
		Name:         s.FullName(),
		Revenue:      decimal.Zero,
		Profit:       decimal.Zero,
		Bonus:        decimal.Zero,
		ProductsSold: make(map[string]int),
	}
}

func (s *SellerStats) addSold(sku string, quantity int) {
	if _, ok := s.ProductsSold[sku]; !ok {
		s.soldOrder = append(s.soldOrder, sku)
	}
	s.ProductsSold[sku] += quantity
}

// Index provides O(1) lookup of seller accumulators and catalog products.
type Index struct {
	Sellers  map[string]*SellerStats
	Products map[string]model.Product

	order []*SellerStats // input order
}

// BuildIndex creates one accumulator per seller and indexes the catalog by
// SKU. A repeated seller id or SKU yields ErrDuplicateKey.
func BuildIndex(sellers []model.Seller, products []model.Product) (*Index, error) {
	idx := &Index{
		Sellers:  make(map[string]*SellerStats, len(sellers)),
		Products: make(map[string]model.Product, len(products)),
		order:    make([]*SellerStats, 0, len(sellers)),
	}

	for _, s := range sellers {
		if _, ok := idx.Sellers[s.ID]; ok {
			return nil, fmt.Errorf("%w: seller id %q", ErrDuplicateKey, s.ID)
		}
		st := newSellerStats(s)
		idx.Sellers[s.ID] = st
		idx.order = append(idx.order, st)
	}

	for _, p := range products {
		if _, ok := idx.Products[p.SKU]; ok {
			return nil, fmt.Errorf("%w: product sku %q", ErrDuplicateKey, p.SKU)
		}
		idx.Products[p.SKU] = p
	}

	return idx, nil
}

// Stats returns the accumulators in seller input order. The slice is a
// fresh copy; the pointers are shared with the index.
func (idx *Index) Stats() []*SellerStats {
	out := make([]*SellerStats, len(idx.order))
	copy(out, idx.order)
	return out
}
