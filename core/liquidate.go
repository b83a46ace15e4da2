package core

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type LiquidateResult struct {
	LiquidateePreHealth  decimal.Decimal `json:"liquidateePreHealth"`
	LiquidateePostHealth decimal.Decimal `json:"liquidateePostHealth"`

	Repaid       decimal.Decimal `json:"repaid"`
	RepaidShares decimal.Decimal `json:"repaidShares"`
	Seized       decimal.Decimal `json:"seized"`
	SeizedShares decimal.Decimal `json:"seizedShares"`

	AssetBank     *Bank `json:"assetBank"`
	LiabilityBank *Bank `json:"liabilityBank"`
}

// CalcSeizedCollateral converts a debt repayment into the collateral it buys:
// floor(amount * debtPrice * (1+bonus) / collateralPrice).
func CalcSeizedCollateral(amount, debtPrice, collateralPrice, bonus decimal.Decimal) (decimal.Decimal, error) {
	if !collateralPrice.IsPositive() {
		return decimal.Zero, errors.Wrapf(ErrMath, "collateral price %s", collateralPrice)
	}
	return MulDivFloor(amount.Mul(debtPrice), ONE.Add(bonus), collateralPrice)
}

// MaxLiquidatable is the largest repayment allowed in one liquidation.
func MaxLiquidatable(owed, closeFactor decimal.Decimal) (decimal.Decimal, error) {
	return MulDivCeil(owed, closeFactor, ONE)
}
