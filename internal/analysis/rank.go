package analysis

import (
	"slices"

	"github.com/atmx/sales-engine/internal/model"
)

// TopProductsLimit is the maximum length of a seller's top-products list.
const TopProductsLimit = 10

// Rank sorts stats by profit descending, keeping input order among equal
// profits, then assigns each seller its bonus and top products.
func Rank(stats []*SellerStats, bonus BonusStrategy) {
	slices.SortStableFunc(stats, func(a, b *SellerStats) int {
		return b.Profit.Cmp(a.Profit)
	})

	total := len(stats)
	for i, s := range stats {
		s.Bonus = bonus.Bonus(i, total, s)
		s.TopProducts = topProducts(s, TopProductsLimit)
	}
}

// topProducts returns the seller's best sellers by quantity. Equal
// quantities keep first-sold order.
func topProducts(s *SellerStats, limit int) []model.ProductQuantity {
	top := make([]model.ProductQuantity, 0, len(s.soldOrder))
	for _, sku := range s.soldOrder {
		top = append(top, model.ProductQuantity{SKU: sku, Quantity: s.ProductsSold[sku]})
	}

	slices.SortStableFunc(top, func(a, b model.ProductQuantity) int {
		return b.Quantity - a.Quantity
	})

	if len(top) > limit {
		top = top[:limit]
	}
	return top
}
