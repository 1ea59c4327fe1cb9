package analysis

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/sales-engine/internal/model"
)

// Aggregate walks every purchase record once and updates the referenced
// seller's accumulator:
//
//	sales_count += 1
//	revenue     += record.total_amount
//	profit      += Σ strategy.Revenue(item) - purchase_price * quantity
//	products_sold[sku] += quantity
//
// Revenue is the checkout-level figure; the per-item revenue only feeds
// profit. An unknown seller or SKU aborts the pass.
func Aggregate(records []model.PurchaseRecord, idx *Index, revenue RevenueStrategy) error {
	for i, rec := range records {
		seller, ok := idx.Sellers[rec.SellerID]
		if !ok {
			return fmt.Errorf("%w: %q in purchase record %s", ErrUnknownSeller, rec.SellerID, recordRef(i, rec))
		}

		seller.SalesCount++
		seller.Revenue = seller.Revenue.Add(rec.TotalAmount)

		for _, item := range rec.Items {
			product, ok := idx.Products[item.SKU]
			if !ok {
				return fmt.Errorf("%w: %q in purchase record %s", ErrUnknownProduct, item.SKU, recordRef(i, rec))
			}

			qty := decimal.NewFromInt(int64(item.Quantity))
			cost := product.PurchasePrice.Mul(qty)
			itemRevenue := revenue.Revenue(item, product)

			seller.Profit = seller.Profit.Add(itemRevenue.Sub(cost))
			seller.addSold(item.SKU, item.Quantity)
		}
	}
	return nil
}

func recordRef(i int, rec model.PurchaseRecord) string {
	if rec.ReceiptID != "" {
		return fmt.Sprintf("#%d (%s)", i, rec.ReceiptID)
	}
	return fmt.Sprintf("#%d", i)
}
