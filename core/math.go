package core

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// MulDivFloor returns floor(a*b/d) for non-negative operands.
func MulDivFloor(a, b, d decimal.Decimal) (decimal.Decimal, error) {
	if d.IsZero() {
		return decimal.Zero, errors.Wrap(ErrMath, "division by zero")
	}
	q, _ := a.Mul(b).QuoRem(d, 0)
	return q, nil
}

// MulDivCeil returns ceil(a*b/d) for non-negative operands.
func MulDivCeil(a, b, d decimal.Decimal) (decimal.Decimal, error) {
	if d.IsZero() {
		return decimal.Zero, errors.Wrap(ErrMath, "division by zero")
	}
	q, r := a.Mul(b).QuoRem(d, 0)
	if r.IsPositive() {
		q = q.Add(ONE)
	}
	return q, nil
}

// ValidateAmount accepts positive whole units only.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.Wrapf(ErrInvalidAmount, "amount %s must be positive", amount)
	}
	if !amount.IsInteger() {
		return errors.Wrapf(ErrInvalidAmount, "amount %s is not a whole number of units", amount)
	}
	return nil
}

func PointsToRatio(points uint64) decimal.Decimal {
	return decimal.NewFromUint64(points).Div(HUNDRED)
}

func CalcValue(amount decimal.Decimal, price decimal.Decimal, weight *decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsZero() {
		return decimal.Zero, nil
	}
	if price.IsNegative() {
		return decimal.Zero, errors.Wrapf(ErrMath, "negative price %s", price)
	}

	weighted := amount
	if weight != nil {
		weighted = amount.Mul(*weight)
	}
	return weighted.Mul(price), nil
}

func CalcAmount(value decimal.Decimal, price decimal.Decimal) (decimal.Decimal, error) {
	if price.IsZero() {
		return decimal.Zero, errors.Wrap(ErrMath, "price is zero")
	}
	return value.Div(price), nil
}
