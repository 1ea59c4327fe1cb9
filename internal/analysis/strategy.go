package analysis

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/sales-engine/internal/model"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// RevenueStrategy converts one purchased line item into a revenue figure.
// Implementations must be pure.
type RevenueStrategy interface {
	Revenue(item model.PurchaseItem, product model.Product) decimal.Decimal
}

// RevenueFunc adapts a plain function to RevenueStrategy.
type RevenueFunc func(item model.PurchaseItem, product model.Product) decimal.Decimal

// Revenue calls f(item, product).
func (f RevenueFunc) Revenue(item model.PurchaseItem, product model.Product) decimal.Decimal {
	return f(item, product)
}

// SimpleRevenue is the default pricing model:
//
//	revenue = sale_price * quantity * (1 - discount/100)
//
// The discount is used as given; out-of-range values are not rejected.
var SimpleRevenue RevenueStrategy = RevenueFunc(simpleRevenue)

// ClampedRevenue is SimpleRevenue with the discount clamped into [0, 100].
var ClampedRevenue RevenueStrategy = RevenueFunc(clampedRevenue)

func simpleRevenue(item model.PurchaseItem, _ model.Product) decimal.Decimal {
	return discounted(item.SalePrice, item.Quantity, item.Discount)
}

func clampedRevenue(item model.PurchaseItem, _ model.Product) decimal.Decimal {
	discount := item.Discount
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(hundred) {
		discount = hundred
	}
	return discounted(item.SalePrice, item.Quantity, discount)
}

func discounted(price decimal.Decimal, quantity int, discountPct decimal.Decimal) decimal.Decimal {
	factor := one.Sub(discountPct.Div(hundred))
	return price.Mul(decimal.NewFromInt(int64(quantity))).Mul(factor)
}

// BonusStrategy converts a seller's rank into a bonus amount. rank is the
// 0-based position in profit-descending order.
type BonusStrategy interface {
	Bonus(rank, total int, seller *SellerStats) decimal.Decimal
}

// BonusFunc adapts a plain function to BonusStrategy.
type BonusFunc func(rank, total int, seller *SellerStats) decimal.Decimal

// Bonus calls f(rank, total, seller).
func (f BonusFunc) Bonus(rank, total int, seller *SellerStats) decimal.Decimal {
	return f(rank, total, seller)
}

// ProfitTiers pays a share of profit depending on rank. Branches are
// evaluated in this order and the first match wins:
//
//	rank 0          → Leader
//	rank 1 or 2     → Podium
//	rank total-1    → nothing
//	anything else   → Rest
//
// With fewer than four sellers the last-place branch is never reached.
type ProfitTiers struct {
	Leader decimal.Decimal `json:"leader"`
	Podium decimal.Decimal `json:"podium"`
	Rest   decimal.Decimal `json:"rest"`
}

// DefaultProfitTiers pays 15% / 10% / 5%.
var DefaultProfitTiers = ProfitTiers{
	Leader: decimal.RequireFromString("0.15"),
	Podium: decimal.RequireFromString("0.10"),
	Rest:   decimal.RequireFromString("0.05"),
}

// BonusByProfit is the default bonus policy.
var BonusByProfit BonusStrategy = DefaultProfitTiers

// Bonus implements BonusStrategy.
func (t ProfitTiers) Bonus(rank, total int, seller *SellerStats) decimal.Decimal {
	switch {
	case rank == 0:
		return seller.Profit.Mul(t.Leader)
	case rank == 1 || rank == 2:
		return seller.Profit.Mul(t.Podium)
	case rank == total-1:
		return decimal.Zero
	default:
		return seller.Profit.Mul(t.Rest)
	}
}
