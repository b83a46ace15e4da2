package lending

import (
	"context"

	"github.com/DomeLiquid/lending/core"
	"github.com/DomeLiquid/lending/utils"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Borrow lends amount out of the bank's treasury to the owner's wallet. The
// account must pass the initial (max ltv) check afterwards.
func (e *Engine) Borrow(ctx context.Context, ownerId, assetId string, amount decimal.Decimal) (*Receipt, error) {
	if err := core.ValidateAmount(amount); err != nil {
		return nil, err
	}
	keys, err := lockKeys([]string{assetId}, []string{ownerId})
	if err != nil {
		return nil, err
	}

	return e.execute(ctx, core.OperationTypeBorrow, keys, func(t *txn) (*Receipt, error) {
		user, err := t.user(ownerId)
		if err != nil {
			return nil, err
		}
		bank, err := t.bank(assetId)
		if err != nil {
			return nil, err
		}
		ba, err := t.account(user, bank)
		if err != nil {
			return nil, err
		}

		shares, err := ba.Borrow(t.log, amount)
		if err != nil {
			return nil, err
		}
		if err := t.checkHealth(user, core.Initial); err != nil {
			return nil, err
		}

		wallet, err := utils.WalletId(ownerId)
		if err != nil {
			return nil, err
		}
		t.pay(bank.TreasuryAccountId, wallet, assetId, amount)

		op := t.record(core.OperationTypeBorrow, ownerId, user.Id, assetId)
		op.Amount = amount
		op.Shares = shares
		return newReceipt(ownerId, ba, amount, shares), nil
	})
}

// Repay pays debt back into the treasury. Amounts above the owed debt are
// capped, so Receipt.Amount is what was actually taken from the wallet.
func (e *Engine) Repay(ctx context.Context, ownerId, assetId string, amount decimal.Decimal) (*Receipt, error) {
	if err := core.ValidateAmount(amount); err != nil {
		return nil, err
	}
	keys, err := lockKeys([]string{assetId}, []string{ownerId})
	if err != nil {
		return nil, err
	}

	return e.execute(ctx, core.OperationTypeRepay, keys, func(t *txn) (*Receipt, error) {
		user, err := t.user(ownerId)
		if err != nil {
			return nil, err
		}
		bank, err := t.bank(assetId)
		if err != nil {
			return nil, err
		}
		ba, err := t.account(user, bank)
		if err != nil {
			return nil, err
		}

		repaid, burned, err := ba.Repay(t.log, amount)
		if err != nil {
			return nil, err
		}

		wallet, err := utils.WalletId(ownerId)
		if err != nil {
			return nil, err
		}
		t.pay(wallet, bank.TreasuryAccountId, assetId, repaid)

		op := t.record(core.OperationTypeRepay, ownerId, user.Id, assetId)
		op.Amount = repaid
		op.Shares = burned
		return newReceipt(ownerId, ba, repaid, burned), nil
	})
}

// Liquidate repays amount of the borrower's debtAssetId debt out of the
// liquidator's wallet. In exchange the liquidator receives the borrower's
// collateralAssetId deposit shares worth amount plus the collateral bank's
// liquidation bonus. The borrower must be below the maintenance requirement
// and amount may not exceed the debt bank's close factor of the owed debt.
func (e *Engine) Liquidate(ctx context.Context, liquidatorId, borrowerId, debtAssetId, collateralAssetId string, amount decimal.Decimal) (*Receipt, error) {
	if err := core.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if liquidatorId == borrowerId {
		return nil, errors.Wrap(core.ErrInvalidParameters, "cannot liquidate own account")
	}
	keys, err := lockKeys([]string{debtAssetId, collateralAssetId}, []string{liquidatorId, borrowerId})
	if err != nil {
		return nil, err
	}

	return e.execute(ctx, core.OperationTypeLiquidate, keys, func(t *txn) (*Receipt, error) {
		liquidator, err := t.user(liquidatorId)
		if err != nil {
			return nil, err
		}
		borrower, err := t.user(borrowerId)
		if err != nil {
			return nil, err
		}
		debtBank, err := t.bank(debtAssetId)
		if err != nil {
			return nil, err
		}
		collateralBank, err := t.bank(collateralAssetId)
		if err != nil {
			return nil, err
		}

		borrowerDebt, err := t.account(borrower, debtBank)
		if err != nil {
			return nil, err
		}
		borrowerCollateral, err := t.account(borrower, collateralBank)
		if err != nil {
			return nil, err
		}
		liquidatorCollateral, err := t.account(liquidator, collateralBank)
		if err != nil {
			return nil, err
		}

		risk, err := t.riskEngine(borrower)
		if err != nil {
			return nil, err
		}
		preHealth, err := risk.CheckPreLiquidationConditionAndGetAccountHealth(debtAssetId)
		if err != nil {
			return nil, err
		}

		redeemable, err := borrowerCollateral.Redeemable()
		if err != nil {
			return nil, err
		}
		if !redeemable.IsPositive() {
			return nil, errors.Wrapf(core.ErrInsufficientBalance, "no collateral in %s", collateralAssetId)
		}

		owed, err := borrowerDebt.Owed()
		if err != nil {
			return nil, err
		}
		maxRepay, err := core.MaxLiquidatable(owed, debtBank.CloseFactor)
		if err != nil {
			return nil, err
		}
		if amount.GreaterThan(maxRepay) {
			return nil, errors.Wrapf(core.ErrExceedsCloseFactor, "repay %s exceeds %s of owed %s", amount, maxRepay, owed)
		}

		repaid, repaidShares, err := borrowerDebt.Repay(t.log, amount)
		if err != nil {
			return nil, err
		}

		debtPrice, err := t.e.prices.Price(t.ctx, debtAssetId)
		if err != nil {
			return nil, err
		}
		collateralPrice, err := t.e.prices.Price(t.ctx, collateralAssetId)
		if err != nil {
			return nil, err
		}
		seized, err := core.CalcSeizedCollateral(repaid, debtPrice, collateralPrice, collateralBank.LiquidationBonus)
		if err != nil {
			return nil, err
		}
		seized = decimal.Min(seized, redeemable)

		seizedShares, err := borrowerCollateral.SeizeTo(t.log, liquidatorCollateral, seized)
		if err != nil {
			return nil, err
		}

		risk, err = t.riskEngine(borrower)
		if err != nil {
			return nil, err
		}
		postHealth, err := risk.CheckPostLiquidationConditionAndGetAccountHealth(preHealth)
		if err != nil {
			return nil, err
		}

		wallet, err := utils.WalletId(liquidatorId)
		if err != nil {
			return nil, err
		}
		t.pay(wallet, debtBank.TreasuryAccountId, debtAssetId, repaid)

		for _, side := range []struct {
			ownerId      string
			counterparty string
			user         *core.UserAccount
		}{
			{liquidatorId, borrowerId, liquidator},
			{borrowerId, liquidatorId, borrower},
		} {
			op := t.record(core.OperationTypeLiquidate, side.ownerId, side.user.Id, debtAssetId)
			op.Amount = repaid
			op.Shares = repaidShares
			op.Detail = core.OperateDetail{
				Counterparty:      side.counterparty,
				CollateralAssetId: collateralAssetId,
				SeizedAmount:      &seized,
				SeizedShares:      &seizedShares,
			}
		}

		t.log.Info().
			Str("liquidator", liquidatorId).
			Str("borrower", borrowerId).
			Str("repaid", repaid.String()).
			Str("seized", seized.String()).
			Str("pre_health", preHealth.String()).
			Str("post_health", postHealth.String()).
			Msg("liquidate")

		receipt := newReceipt(liquidatorId, liquidatorCollateral, repaid, repaidShares)
		receipt.AssetId = debtAssetId
		receipt.Bank = debtBank.Clone()
		receipt.Liquidation = &core.LiquidateResult{
			LiquidateePreHealth:  preHealth,
			LiquidateePostHealth: postHealth,
			Repaid:               repaid,
			RepaidShares:         repaidShares,
			Seized:               seized,
			SeizedShares:         seizedShares,
			AssetBank:            collateralBank.Clone(),
			LiabilityBank:        debtBank.Clone(),
		}
		return receipt, nil
	})
}
