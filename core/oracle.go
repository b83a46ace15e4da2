package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceAdapter quotes every asset in one common unit of account.
type PriceAdapter interface {
	Price(ctx context.Context, assetId string) (decimal.Decimal, error)
}
