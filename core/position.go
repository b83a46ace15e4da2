package core

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	PositionStore interface {
		GetPosition(ctx context.Context, userId uuid.UUID, assetId string) (*Position, error)
		UpsertPosition(ctx context.Context, position *Position) error
		ListPositions(ctx context.Context, userId uuid.UUID) ([]*Position, error)
	}

	Position struct {
		UserId  uuid.UUID `gorm:"primaryKey;type:varchar(36)" json:"userId"`
		AssetId string    `gorm:"primaryKey;size:64" json:"assetId"`
		BankId  uuid.UUID `gorm:"type:varchar(36);not null" json:"bankId"`

		DepositShares  decimal.Decimal `gorm:"type:text;not null" json:"depositShares"`
		BorrowedShares decimal.Decimal `gorm:"type:text;not null" json:"borrowedShares"`

		UpdatedAt int64 `gorm:"autoUpdateTime:false" json:"updatedAt"`
	}
)

type PositionState uint8

const (
	NoPosition PositionState = iota
	Deposited
	Borrowed
	DepositedAndBorrowed
)

func (s PositionState) String() string {
	switch s {
	case NoPosition:
		return "NoPosition"
	case Deposited:
		return "Deposited"
	case Borrowed:
		return "Borrowed"
	case DepositedAndBorrowed:
		return "DepositedAndBorrowed"
	default:
		return "Unknown"
	}
}

func NewPosition(clk clock.Clock, userId uuid.UUID, bank *Bank) *Position {
	return &Position{
		UserId:         userId,
		AssetId:        bank.AssetId,
		BankId:         bank.Id,
		DepositShares:  decimal.Zero,
		BorrowedShares: decimal.Zero,
		UpdatedAt:      clk.Now().Unix(),
	}
}

// FindOrNewPosition returns the stored position or a fresh, unsaved one.
func FindOrNewPosition(ctx context.Context, clk clock.Clock, store PositionStore, userId uuid.UUID, bank *Bank) (*Position, error) {
	position, err := store.GetPosition(ctx, userId, bank.AssetId)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewPosition(clk, userId, bank), nil
		}
		return nil, err
	}
	return position, nil
}

func (p *Position) Clone() *Position {
	return &Position{
		UserId:         p.UserId,
		AssetId:        p.AssetId,
		BankId:         p.BankId,
		DepositShares:  p.DepositShares,
		BorrowedShares: p.BorrowedShares,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (p *Position) State() PositionState {
	deposited := p.DepositShares.IsPositive()
	borrowed := p.BorrowedShares.IsPositive()
	switch {
	case deposited && borrowed:
		return DepositedAndBorrowed
	case deposited:
		return Deposited
	case borrowed:
		return Borrowed
	default:
		return NoPosition
	}
}

func (p *Position) ChangeDepositShares(delta decimal.Decimal) error {
	shares := p.DepositShares.Add(delta)
	if shares.IsNegative() {
		return errors.Wrapf(ErrInsufficientBalance, "deposit shares %s below %s", p.DepositShares, delta.Neg())
	}
	p.DepositShares = shares
	return nil
}

func (p *Position) ChangeBorrowedShares(delta decimal.Decimal) error {
	shares := p.BorrowedShares.Add(delta)
	if shares.IsNegative() {
		return errors.Wrapf(ErrNoDebt, "borrowed shares %s below %s", p.BorrowedShares, delta.Neg())
	}
	p.BorrowedShares = shares
	return nil
}

// ComputeQuantity returns the redeemable deposit and the owed debt.
func (p *Position) ComputeQuantity(bank *Bank) (decimal.Decimal, decimal.Decimal, error) {
	assets, err := bank.GetDepositAmount(p.DepositShares)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	liabilities, err := bank.GetBorrowAmount(p.BorrowedShares)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return assets, liabilities, nil
}

// ComputeValue prices the position; collateral is weighted for requirementType,
// debt never is.
func (p *Position) ComputeValue(bank *Bank, price decimal.Decimal, requirementType RequirementType) (decimal.Decimal, decimal.Decimal, error) {
	assets, liabilities, err := p.ComputeQuantity(bank)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	weight := bank.GetWeight(requirementType)
	assetsValue, err := CalcValue(assets, price, &weight)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	liabilitiesValue, err := CalcValue(liabilities, price, nil)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return assetsValue, liabilitiesValue, nil
}
