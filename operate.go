package lending

import (
	"context"

	"github.com/DomeLiquid/lending/core"
	"github.com/DomeLiquid/lending/utils"
	"github.com/shopspring/decimal"
)

// Deposit moves amount from the owner's wallet into the bank's treasury and
// mints deposit shares for it.
func (e *Engine) Deposit(ctx context.Context, ownerId, assetId string, amount decimal.Decimal) (*Receipt, error) {
	if err := core.ValidateAmount(amount); err != nil {
		return nil, err
	}
	keys, err := lockKeys([]string{assetId}, []string{ownerId})
	if err != nil {
		return nil, err
	}

	return e.execute(ctx, core.OperationTypeDeposit, keys, func(t *txn) (*Receipt, error) {
		user, err := t.user(ownerId)
		if err != nil {
			return nil, err
		}
		bank, err := t.bank(assetId)
		if err != nil {
			return nil, err
		}

		asset, err := t.asset(assetId)
		if err != nil {
			return nil, err
		}
		if asset != nil {
			if err := asset.CheckMinimum(amount); err != nil {
				return nil, err
			}
		}

		ba, err := t.account(user, bank)
		if err != nil {
			return nil, err
		}
		shares, err := ba.Deposit(t.log, amount)
		if err != nil {
			return nil, err
		}

		wallet, err := utils.WalletId(ownerId)
		if err != nil {
			return nil, err
		}
		t.pay(wallet, bank.TreasuryAccountId, assetId, amount)

		op := t.record(core.OperationTypeDeposit, ownerId, user.Id, assetId)
		op.Amount = amount
		op.Shares = shares
		return newReceipt(ownerId, ba, amount, shares), nil
	})
}

// Withdraw burns the deposit shares backing amount and pays it from the
// treasury to the owner's wallet. With debt outstanding the remaining
// collateral must still pass the maintenance check.
func (e *Engine) Withdraw(ctx context.Context, ownerId, assetId string, amount decimal.Decimal) (*Receipt, error) {
	if err := core.ValidateAmount(amount); err != nil {
		return nil, err
	}
	keys, err := lockKeys([]string{assetId}, []string{ownerId})
	if err != nil {
		return nil, err
	}

	return e.execute(ctx, core.OperationTypeWithdraw, keys, func(t *txn) (*Receipt, error) {
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

		burned, dust, err := ba.Withdraw(t.log, amount)
		if err != nil {
			return nil, err
		}

		indebted, err := t.hasDebt(user)
		if err != nil {
			return nil, err
		}
		if indebted {
			if err := t.checkHealth(user, core.Maintenance); err != nil {
				return nil, err
			}
		}

		wallet, err := utils.WalletId(ownerId)
		if err != nil {
			return nil, err
		}
		t.pay(bank.TreasuryAccountId, wallet, assetId, amount)

		op := t.record(core.OperationTypeWithdraw, ownerId, user.Id, assetId)
		op.Amount = amount
		op.Shares = burned
		if dust.IsPositive() {
			op.Detail.Dust = &dust
		}

		receipt := newReceipt(ownerId, ba, amount, burned)
		receipt.Dust = dust
		return receipt, nil
	})
}

// Accrue brings the bank of assetId up to now and persists it. Receipt.Amount
// is the interest added.
func (e *Engine) Accrue(ctx context.Context, assetId string) (*Receipt, error) {
	keys, err := lockKeys([]string{assetId}, nil)
	if err != nil {
		return nil, err
	}

	return e.execute(ctx, core.OperationTypeAccrue, keys, func(t *txn) (*Receipt, error) {
		bank, err := t.bank(assetId)
		if err != nil {
			return nil, err
		}

		interest := t.accrued[assetId]
		if interest.IsPositive() {
			op := t.record(core.OperationTypeAccrue, bank.Authority, bank.Id, assetId)
			op.Amount = interest
		}
		return &Receipt{
			OwnerId: bank.Authority,
			AssetId: assetId,
			Amount:  interest,
			Shares:  decimal.Zero,
			Dust:    decimal.Zero,
			Bank:    bank.Clone(),
		}, nil
	})
}
