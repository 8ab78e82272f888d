package cart

import "github.com/shopspring/decimal"

// Summary aggregates the cart for display
type Summary struct {
	Lines    int             `json:"lines"`
	Units    int             `json:"units"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Savings  decimal.Decimal `json:"savings"`
}

// Summary computes line and unit counts and the subtotal at effective prices.
// Savings is the difference between list and effective price over all units.
func (it Items) Summary() Summary {
	s := Summary{Subtotal: decimal.Zero, Savings: decimal.Zero}
	for _, line := range it {
		qty := decimal.NewFromInt(int64(line.Quantity))
		effective := line.Product.EffectivePrice()
		s.Lines++
		s.Units += line.Quantity
		s.Subtotal = s.Subtotal.Add(effective.Mul(qty))
		s.Savings = s.Savings.Add(line.Product.Price.Sub(effective).Mul(qty))
	}
	return s
}
