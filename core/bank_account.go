package core

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BankAccount pairs a user's position with the bank it lives in. Every method
// mutates both sides together so share totals always match.
type BankAccount struct {
	clk clock.Clock `json:"-"`

	Position *Position `json:"position"`
	Bank     *Bank     `json:"bank"`
}

type OptionFunc func(ba *BankAccount)

func WithClock(clk clock.Clock) OptionFunc {
	return func(ba *BankAccount) {
		ba.clk = clk
	}
}

func NewBankAccount(position *Position, bank *Bank, opts ...OptionFunc) *BankAccount {
	ba := &BankAccount{
		Position: position,
		Bank:     bank,
		clk:      clock.New(),
	}
	for _, opt := range opts {
		opt(ba)
	}
	return ba
}

func FindOrNewBankAccount(ctx context.Context, clk clock.Clock, store PositionStore, userId uuid.UUID, bank *Bank) (*BankAccount, error) {
	position, err := FindOrNewPosition(ctx, clk, store, userId, bank)
	if err != nil {
		return nil, err
	}
	return NewBankAccount(position, bank, WithClock(clk)), nil
}

func (ba *BankAccount) Redeemable() (decimal.Decimal, error) {
	return ba.Bank.GetDepositAmount(ba.Position.DepositShares)
}

func (ba *BankAccount) Owed() (decimal.Decimal, error) {
	return ba.Bank.GetBorrowAmount(ba.Position.BorrowedShares)
}

// Deposit mints shares for amount and returns them.
func (ba *BankAccount) Deposit(log Log, amount decimal.Decimal) (decimal.Decimal, error) {
	bank := ba.Bank

	shares, err := bank.GetDepositShares(amount)
	if err != nil {
		return decimal.Zero, err
	}
	if !shares.IsPositive() {
		return decimal.Zero, errors.Wrapf(ErrInvalidAmount, "deposit of %s mints no shares", amount)
	}

	if err := ba.Position.ChangeDepositShares(shares); err != nil {
		return decimal.Zero, err
	}
	if err := bank.ChangeDeposits(amount, shares); err != nil {
		return decimal.Zero, err
	}
	ba.touch()

	log.Debug().Str("asset", bank.AssetId).Str("amount", amount.String()).Str("shares", shares.String()).Msg("deposit")
	return shares, nil
}

// Withdraw burns the shares backing amount. It returns the shares burned and
// any dust swept out of the pool when the last shares leave.
func (ba *BankAccount) Withdraw(log Log, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	bank := ba.Bank

	redeemable, err := ba.Redeemable()
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if amount.GreaterThan(redeemable) {
		return decimal.Zero, decimal.Zero, errors.Wrapf(ErrInsufficientBalance, "withdraw %s exceeds redeemable %s", amount, redeemable)
	}

	if liquidity := bank.AvailableLiquidity(); amount.GreaterThan(liquidity) {
		return decimal.Zero, decimal.Zero, errors.Wrapf(ErrInsufficientLiquidity, "withdraw %s exceeds available %s", amount, liquidity)
	}

	shares, err := bank.GetDepositSharesToBurn(amount)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	shares = decimal.Min(shares, ba.Position.DepositShares)

	// the last deposit shares back the outstanding loans
	if shares.Equal(bank.TotalDepositShares) && bank.TotalBorrowed.IsPositive() {
		return decimal.Zero, decimal.Zero, errors.Wrapf(ErrInsufficientLiquidity, "bank %s still has %s borrowed", bank.AssetId, bank.TotalBorrowed)
	}

	if err := ba.Position.ChangeDepositShares(shares.Neg()); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := bank.ChangeDeposits(amount.Neg(), shares.Neg()); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	dust := bank.SweepDust()
	ba.touch()

	if dust.IsPositive() {
		log.Info().Str("asset", bank.AssetId).Str("dust", dust.String()).Msg("swept pool dust")
	}
	return shares, dust, nil
}

// Borrow mints borrow shares for amount and returns them.
func (ba *BankAccount) Borrow(log Log, amount decimal.Decimal) (decimal.Decimal, error) {
	bank := ba.Bank

	if liquidity := bank.AvailableLiquidity(); amount.GreaterThan(liquidity) {
		return decimal.Zero, errors.Wrapf(ErrInsufficientLiquidity, "borrow %s exceeds available %s", amount, liquidity)
	}

	shares, err := bank.GetBorrowShares(amount)
	if err != nil {
		return decimal.Zero, err
	}

	if err := ba.Position.ChangeBorrowedShares(shares); err != nil {
		return decimal.Zero, err
	}
	if err := bank.ChangeBorrows(amount, shares); err != nil {
		return decimal.Zero, err
	}
	ba.touch()

	log.Debug().Str("asset", bank.AssetId).Str("amount", amount.String()).Str("shares", shares.String()).Msg("borrow")
	return shares, nil
}

// Repay retires debt. amount is capped at what is owed; the repaid amount and
// the burned shares are returned.
func (ba *BankAccount) Repay(log Log, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	bank := ba.Bank

	owed, err := ba.Owed()
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if !owed.IsPositive() {
		return decimal.Zero, decimal.Zero, errors.Wrapf(ErrNoDebt, "nothing owed to bank %s", bank.AssetId)
	}

	repaid := decimal.Min(amount, owed)
	shares := ba.Position.BorrowedShares
	if repaid.LessThan(owed) {
		shares, err = bank.GetBorrowSharesToBurn(repaid)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		if !shares.IsPositive() {
			return decimal.Zero, decimal.Zero, errors.Wrapf(ErrInvalidAmount, "repay of %s retires no shares", repaid)
		}
	}

	if err := ba.Position.ChangeBorrowedShares(shares.Neg()); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := bank.ChangeBorrows(repaid.Neg(), shares.Neg()); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	ba.touch()

	log.Debug().Str("asset", bank.AssetId).Str("repaid", repaid.String()).Str("shares", shares.String()).Msg("repay")
	return repaid, shares, nil
}

// SeizeTo moves the deposit shares backing amount to the liquidator's account
// in the same bank. Bank totals do not change.
func (ba *BankAccount) SeizeTo(log Log, liquidator *BankAccount, amount decimal.Decimal) (decimal.Decimal, error) {
	if liquidator.Bank != ba.Bank {
		return decimal.Zero, errors.Wrap(ErrIllegalBankState, "seize across banks")
	}

	shares, err := MulDivFloor(amount, ba.Bank.TotalDepositShares, ba.Bank.TotalDeposits)
	if err != nil {
		return decimal.Zero, err
	}
	shares = decimal.Min(shares, ba.Position.DepositShares)
	if !shares.IsPositive() {
		return decimal.Zero, errors.Wrapf(ErrInvalidAmount, "seizing %s moves no shares", amount)
	}

	if err := ba.Position.ChangeDepositShares(shares.Neg()); err != nil {
		return decimal.Zero, err
	}
	if err := liquidator.Position.ChangeDepositShares(shares); err != nil {
		return decimal.Zero, err
	}
	ba.touch()
	liquidator.touch()

	log.Debug().Str("asset", ba.Bank.AssetId).Str("amount", amount.String()).Str("shares", shares.String()).Msg("seize collateral")
	return shares, nil
}

func (ba *BankAccount) touch() {
	now := ba.clk.Now().Unix()
	ba.Position.UpdatedAt = now
	ba.Bank.UpdatedAt = now
}
