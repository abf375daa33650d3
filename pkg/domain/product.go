package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID          string          `json:"id" validate:"required,max=64"`
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	Price       decimal.Decimal `json:"price"`
	Count       int64           `json:"count" validate:"gte=0"`
}

// ProductCheckout is a product line as seen at checkout. Build it with
// NewProductCheckout so TotalPrice always equals OrderedCount * Price.
type ProductCheckout struct {
	Product
	OrderedCount int64           `json:"orderedCount"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
}

func NewProductCheckout(p Product, orderedCount int64) ProductCheckout {
	return ProductCheckout{
		Product:      p,
		OrderedCount: orderedCount,
		TotalPrice:   p.Price.Mul(decimal.NewFromInt(orderedCount)),
	}
}

// CheckoutTotal sums TotalPrice over lines.
func CheckoutTotal(lines []ProductCheckout) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.TotalPrice)
	}

	return total
}
