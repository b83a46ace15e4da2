package core

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type RiskStore interface {
	BankStore
	PositionStore
}

type BankAccountWithPrice struct {
	*BankAccount
	Price decimal.Decimal
}

func (b *BankAccountWithPrice) CalcWeightedAssetsAndLiabsValues(requirementType RequirementType) (decimal.Decimal, decimal.Decimal, error) {
	return b.Position.ComputeValue(b.Bank, b.Price, requirementType)
}

type RiskEngine struct {
	User                  *UserAccount
	BankAccountsWithPrice []*BankAccountWithPrice
}

// NewRiskEngine values every position of user. Accounts in changed carry the
// in-flight state of the current operation and replace their stored copies;
// every other bank is accrued in memory to the current time before pricing.
func NewRiskEngine(ctx context.Context, store RiskStore, prices PriceAdapter, accrual InterestAccrual, user *UserAccount, changed ...*BankAccount) (*RiskEngine, error) {
	positions, err := store.ListPositions(ctx, user.Id)
	if err != nil {
		return nil, err
	}

	accounts := make([]*BankAccount, 0, len(positions)+len(changed))
	seen := map[string]bool{}
	for _, ba := range changed {
		if ba.Position.UserId != user.Id || seen[ba.Position.AssetId] {
			continue
		}
		seen[ba.Position.AssetId] = true
		accounts = append(accounts, ba)
	}
	for _, p := range positions {
		if seen[p.AssetId] || p.State() == NoPosition {
			continue
		}
		seen[p.AssetId] = true
		bank, err := store.GetBankById(ctx, p.BankId)
		if err != nil {
			return nil, errors.Wrapf(err, "load bank of position %s", p.AssetId)
		}
		bank, err = accrual.Preview(bank)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, NewBankAccount(p, bank, WithClock(accrual.Clock)))
	}

	withPrice := make([]*BankAccountWithPrice, 0, len(accounts))
	for _, ba := range accounts {
		if ba.Position.State() == NoPosition {
			continue
		}
		price, err := prices.Price(ctx, ba.Bank.AssetId)
		if err != nil {
			return nil, errors.Wrapf(err, "price of %s", ba.Bank.AssetId)
		}
		withPrice = append(withPrice, &BankAccountWithPrice{BankAccount: ba, Price: price})
	}

	return &RiskEngine{
		User:                  user,
		BankAccountsWithPrice: withPrice,
	}, nil
}

func (r *RiskEngine) GetAccountHealthComponents(requirementType RequirementType) (decimal.Decimal, decimal.Decimal, error) {
	totalAssets := decimal.Zero
	totalLiabilities := decimal.Zero
	for _, a := range r.BankAccountsWithPrice {
		assets, liabilities, err := a.CalcWeightedAssetsAndLiabsValues(requirementType)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		totalAssets = totalAssets.Add(assets)
		totalLiabilities = totalLiabilities.Add(liabilities)
	}
	return totalAssets, totalLiabilities, nil
}

func (r *RiskEngine) GetAccountHealth(requirementType RequirementType) (decimal.Decimal, error) {
	totalAssets, totalLiabilities, err := r.GetAccountHealthComponents(requirementType)
	if err != nil {
		return decimal.Zero, err
	}
	return totalAssets.Sub(totalLiabilities), nil
}

// CheckAccountHealth fails when weighted collateral does not cover debt.
func (r *RiskEngine) CheckAccountHealth(requirementType RequirementType) error {
	totalAssets, totalLiabilities, err := r.GetAccountHealthComponents(requirementType)
	if err != nil {
		return err
	}
	if totalLiabilities.IsZero() || totalAssets.GreaterThanOrEqual(totalLiabilities) {
		return nil
	}

	switch requirementType {
	case Initial:
		return errors.Wrapf(ErrExceedsMaxLtv, "collateral %s below debt %s", totalAssets, totalLiabilities)
	default:
		return errors.Wrapf(ErrExceedsLiquidationThreshold, "%s collateral %s below debt %s", requirementType, totalAssets, totalLiabilities)
	}
}

func (r *RiskEngine) find(assetId string) *BankAccountWithPrice {
	for _, a := range r.BankAccountsWithPrice {
		if a.Bank.AssetId == assetId {
			return a
		}
	}
	return nil
}

// CheckPreLiquidationConditionAndGetAccountHealth requires debt in debtAssetId
// and a maintenance shortfall.
func (r *RiskEngine) CheckPreLiquidationConditionAndGetAccountHealth(debtAssetId string) (decimal.Decimal, error) {
	debt := r.find(debtAssetId)
	if debt == nil || !debt.Position.BorrowedShares.IsPositive() {
		return decimal.Zero, errors.Wrapf(ErrNoDebt, "no debt in %s", debtAssetId)
	}

	accountHealth, err := r.GetAccountHealth(Maintenance)
	if err != nil {
		return decimal.Zero, err
	}
	if !accountHealth.IsNegative() {
		return decimal.Zero, errors.Wrapf(ErrNotLiquidatable, "maintenance health %s", accountHealth)
	}
	return accountHealth, nil
}

// CheckPostLiquidationConditionAndGetAccountHealth rejects a liquidation that
// leaves the account worse off than before.
func (r *RiskEngine) CheckPostLiquidationConditionAndGetAccountHealth(preLiquidationHealth decimal.Decimal) (decimal.Decimal, error) {
	accountHealth, err := r.GetAccountHealth(Maintenance)
	if err != nil {
		return decimal.Zero, err
	}
	if accountHealth.LessThan(preLiquidationHealth) {
		return decimal.Zero, errors.Wrapf(ErrNotLiquidatable, "health would drop from %s to %s", preLiquidationHealth, accountHealth)
	}
	return accountHealth, nil
}
