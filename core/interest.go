package core

import (
	"github.com/facebookgo/clock"
	"github.com/shopspring/decimal"
)

// InterestAccrual brings banks up to the clock's current time.
type InterestAccrual struct {
	Clock  clock.Clock
	Period int64
}

func NewInterestAccrual(clk clock.Clock, period int64) InterestAccrual {
	if period <= 0 {
		period = SECONDS_PER_YEAR
	}
	return InterestAccrual{Clock: clk, Period: period}
}

func (ia InterestAccrual) Accrue(log Log, bank *Bank) (decimal.Decimal, error) {
	return bank.AccrueInterest(log, ia.Clock.Now().Unix(), ia.Period)
}

// Preview returns an accrued copy and leaves bank untouched.
func (ia InterestAccrual) Preview(bank *Bank) (*Bank, error) {
	clone := bank.Clone()
	if _, err := ia.Accrue(NopLog(), clone); err != nil {
		return nil, err
	}
	return clone, nil
}
