package analysis

import "github.com/atmx/sales-engine/internal/model"

// MoneyScale is the number of decimal places in report money fields.
// Rounding is half away from zero (half-up for positive amounts).
const MoneyScale int32 = 2

// Project converts ranked accumulators into the immutable report shape.
func Project(stats []*SellerStats) []model.SellerReport {
	reports := make([]model.SellerReport, 0, len(stats))
	for _, s := range stats {
		top := s.TopProducts
		if top == nil {
			top = []model.ProductQuantity{}
		}
		reports = append(reports, model.SellerReport{
			SellerID:    s.ID,
			Name:        s.Name,
			Revenue:     s.Revenue.Round(MoneyScale),
			Profit:      s.Profit.Round(MoneyScale),
			SalesCount:  s.SalesCount,
			TopProducts: top,
			Bonus:       s.Bonus.Round(MoneyScale),
		})
	}
	return reports
}
