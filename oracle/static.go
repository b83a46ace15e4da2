package oracle

import (
	"context"
	"sync"

	"github.com/DomeLiquid/lending/config"
	"github.com/DomeLiquid/lending/core"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrPriceNotFound = errors.New("price not found")

// Static quotes prices from a fixed table. Assets without an entry use the
// default price; a zero default means unknown assets have no price.
type Static struct {
	mu     sync.RWMutex
	def    decimal.Decimal
	prices map[string]decimal.Decimal
}

var _ core.PriceAdapter = (*Static)(nil)

func NewStatic(def decimal.Decimal, prices map[string]decimal.Decimal) *Static {
	s := &Static{def: def, prices: make(map[string]decimal.Decimal, len(prices))}
	for assetId, price := range prices {
		s.prices[assetId] = price
	}
	return s
}

// FromConfig builds the price table configured under [risk].
func FromConfig(cfg config.RiskConfig) (*Static, error) {
	def, prices, err := cfg.PriceTable()
	if err != nil {
		return nil, err
	}
	return NewStatic(def, prices), nil
}

func (s *Static) Set(assetId string, price decimal.Decimal) error {
	if !price.IsPositive() {
		return errors.Wrapf(core.ErrInvalidParameters, "price of %s must be positive, got %s", assetId, price)
	}
	s.mu.Lock()
	s.prices[assetId] = price
	s.mu.Unlock()
	return nil
}

func (s *Static) Price(_ context.Context, assetId string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if price, ok := s.prices[assetId]; ok {
		return price, nil
	}
	if s.def.IsPositive() {
		return s.def, nil
	}
	return decimal.Zero, errors.Wrapf(ErrPriceNotFound, "asset %s", assetId)
}
