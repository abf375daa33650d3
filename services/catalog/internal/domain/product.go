package domain

import (
	"time"

	shared "github.com/carusalgiz/shop-cloudfront/pkg/domain"
	"github.com/shopspring/decimal"
)

// Product is a catalog row: the storefront product plus bookkeeping columns.
type Product struct {
	shared.Product
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UpdateProductInput struct {
	Title       *string          `json:"title" validate:"omitempty,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	Price       *decimal.Decimal `json:"price"`
	Count       *int64           `json:"count" validate:"omitempty,gte=0"`
}

func (in *UpdateProductInput) Empty() bool {
	return in.Title == nil && in.Description == nil && in.Price == nil && in.Count == nil
}
