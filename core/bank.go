package core

import (
	"context"

	"github.com/DomeLiquid/lending/utils"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	BankStore interface {
		CreateBank(ctx context.Context, bank *Bank) error
		UpdateBank(ctx context.Context, bank *Bank) error
		GetBankById(ctx context.Context, bankId uuid.UUID) (*Bank, error)
		GetBankByAssetId(ctx context.Context, assetId string) (*Bank, error)
		ListBanks(ctx context.Context) ([]*Bank, error)
	}

	Bank struct {
		Id                uuid.UUID `gorm:"primaryKey;type:varchar(36)" json:"id"`
		AssetId           string    `gorm:"uniqueIndex;size:64;not null" json:"assetId"`
		TreasuryAccountId uuid.UUID `gorm:"type:varchar(36);not null" json:"treasuryAccountId"`
		Authority         string    `gorm:"size:128" json:"authority,omitempty"`

		BankConfig `gorm:"embedded" json:"bankConfig"`

		TotalDeposits       decimal.Decimal `gorm:"type:text;not null" json:"totalDeposits"`
		TotalDepositShares  decimal.Decimal `gorm:"type:text;not null" json:"totalDepositShares"`
		TotalBorrowed       decimal.Decimal `gorm:"type:text;not null" json:"totalBorrowed"`
		TotalBorrowedShares decimal.Decimal `gorm:"type:text;not null" json:"totalBorrowedShares"`

		// rounding remainder swept out of the pool when its last shares are burned
		CollectedDust decimal.Decimal `gorm:"type:text;not null" json:"collectedDust"`

		LastAccrualTimestamp int64 `json:"lastAccrualTimestamp"`
		CreatedAt            int64 `gorm:"autoCreateTime:false" json:"createdAt"`
		UpdatedAt            int64 `gorm:"autoUpdateTime:false" json:"updatedAt"`
	}

	// BankConfig holds the risk parameters as fractions in [0,1].
	BankConfig struct {
		LiquidationThreshold decimal.Decimal `gorm:"type:text;not null" json:"liquidationThreshold"`
		MaxLtv               decimal.Decimal `gorm:"type:text;not null" json:"maxLtv"`
		InterestRate         decimal.Decimal `gorm:"type:text;not null" json:"interestRate"`
		LiquidationBonus     decimal.Decimal `gorm:"type:text;not null" json:"liquidationBonus"`
		CloseFactor          decimal.Decimal `gorm:"type:text;not null" json:"closeFactor"`
	}
)

// NewBankConfig converts whole percentage points into fractions and validates them.
func NewBankConfig(liquidationThreshold, maxLtv, interestRate, liquidationBonus, closeFactor uint64) (BankConfig, error) {
	for _, r := range []struct {
		name   string
		points uint64
	}{
		{"liquidation threshold", liquidationThreshold},
		{"max ltv", maxLtv},
		{"interest rate", interestRate},
		{"liquidation bonus", liquidationBonus},
		{"close factor", closeFactor},
	} {
		if r.points > MAX_RATIO_POINTS {
			return BankConfig{}, errors.Wrapf(ErrInvalidParameters, "%s %d exceeds %d", r.name, r.points, MAX_RATIO_POINTS)
		}
	}

	bc := BankConfig{
		LiquidationThreshold: PointsToRatio(liquidationThreshold),
		MaxLtv:               PointsToRatio(maxLtv),
		InterestRate:         PointsToRatio(interestRate),
		LiquidationBonus:     PointsToRatio(liquidationBonus),
		CloseFactor:          PointsToRatio(closeFactor),
	}
	if err := bc.Validate(); err != nil {
		return BankConfig{}, err
	}
	return bc, nil
}

func (bc *BankConfig) Validate() error {
	ratios := []decimal.Decimal{bc.LiquidationThreshold, bc.MaxLtv, bc.InterestRate, bc.LiquidationBonus, bc.CloseFactor}
	for _, r := range ratios {
		if r.IsNegative() || r.GreaterThan(ONE) {
			return errors.Wrapf(ErrInvalidParameters, "ratio %s outside [0,1]", r)
		}
	}
	if bc.MaxLtv.GreaterThan(bc.LiquidationThreshold) {
		return errors.Wrapf(ErrInvalidParameters, "max ltv %s above liquidation threshold %s", bc.MaxLtv, bc.LiquidationThreshold)
	}
	return nil
}

// GetWeight is the collateral weight applied under requirementType.
func (bc *BankConfig) GetWeight(requirementType RequirementType) decimal.Decimal {
	switch requirementType {
	case Initial:
		return bc.MaxLtv
	case Maintenance:
		return bc.LiquidationThreshold
	case Equity:
		return ONE
	default:
		return decimal.Zero
	}
}

func NewBank(clk clock.Clock, assetId string, bankConfig BankConfig) (*Bank, error) {
	bankId, err := utils.BankId(assetId)
	if err != nil {
		return nil, err
	}
	treasuryId, err := utils.TreasuryId(assetId)
	if err != nil {
		return nil, err
	}
	if err := bankConfig.Validate(); err != nil {
		return nil, err
	}

	now := clk.Now().Unix()
	return &Bank{
		Id:                   bankId,
		AssetId:              assetId,
		TreasuryAccountId:    treasuryId,
		BankConfig:           bankConfig,
		TotalDeposits:        decimal.Zero,
		TotalDepositShares:   decimal.Zero,
		TotalBorrowed:        decimal.Zero,
		TotalBorrowedShares:  decimal.Zero,
		CollectedDust:        decimal.Zero,
		LastAccrualTimestamp: now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

func (b *Bank) Clone() *Bank {
	return &Bank{
		Id:                   b.Id,
		AssetId:              b.AssetId,
		TreasuryAccountId:    b.TreasuryAccountId,
		Authority:            b.Authority,
		BankConfig:           b.BankConfig,
		TotalDeposits:        b.TotalDeposits,
		TotalDepositShares:   b.TotalDepositShares,
		TotalBorrowed:        b.TotalBorrowed,
		TotalBorrowedShares:  b.TotalBorrowedShares,
		CollectedDust:        b.CollectedDust,
		LastAccrualTimestamp: b.LastAccrualTimestamp,
		CreatedAt:            b.CreatedAt,
		UpdatedAt:            b.UpdatedAt,
	}
}

// GetDepositShares is the number of shares minted for depositing amount.
func (b *Bank) GetDepositShares(amount decimal.Decimal) (decimal.Decimal, error) {
	if b.TotalDepositShares.IsZero() {
		return amount, nil
	}
	if b.TotalDeposits.IsZero() {
		return decimal.Zero, errors.Wrapf(ErrIllegalBankState, "bank %s has shares without deposits", b.AssetId)
	}
	return MulDivFloor(amount, b.TotalDepositShares, b.TotalDeposits)
}

// GetDepositSharesToBurn is the number of shares burned for withdrawing amount.
func (b *Bank) GetDepositSharesToBurn(amount decimal.Decimal) (decimal.Decimal, error) {
	if b.TotalDeposits.IsZero() {
		return decimal.Zero, errors.Wrapf(ErrInsufficientBalance, "bank %s has no deposits", b.AssetId)
	}
	return MulDivCeil(amount, b.TotalDepositShares, b.TotalDeposits)
}

// GetDepositAmount is the redeemable value of shares.
func (b *Bank) GetDepositAmount(shares decimal.Decimal) (decimal.Decimal, error) {
	if shares.IsZero() || b.TotalDepositShares.IsZero() {
		return decimal.Zero, nil
	}
	return MulDivFloor(shares, b.TotalDeposits, b.TotalDepositShares)
}

// GetBorrowShares is the number of borrow shares minted for borrowing amount.
func (b *Bank) GetBorrowShares(amount decimal.Decimal) (decimal.Decimal, error) {
	if b.TotalBorrowedShares.IsZero() {
		return amount, nil
	}
	if b.TotalBorrowed.IsZero() {
		return decimal.Zero, errors.Wrapf(ErrIllegalBankState, "bank %s has borrow shares without debt", b.AssetId)
	}
	return MulDivCeil(amount, b.TotalBorrowedShares, b.TotalBorrowed)
}

// GetBorrowSharesToBurn is the number of borrow shares retired by repaying amount.
func (b *Bank) GetBorrowSharesToBurn(amount decimal.Decimal) (decimal.Decimal, error) {
	if b.TotalBorrowed.IsZero() {
		return decimal.Zero, errors.Wrapf(ErrNoDebt, "bank %s has no debt", b.AssetId)
	}
	return MulDivFloor(amount, b.TotalBorrowedShares, b.TotalBorrowed)
}

// GetBorrowAmount is the debt owed for shares, rounded up. Anything short of
// the whole pool owes at most TotalBorrowed-1 so the remaining shares keep a
// non-zero debt behind them.
func (b *Bank) GetBorrowAmount(shares decimal.Decimal) (decimal.Decimal, error) {
	if shares.IsZero() || b.TotalBorrowedShares.IsZero() || b.TotalBorrowed.IsZero() {
		return decimal.Zero, nil
	}
	if shares.GreaterThanOrEqual(b.TotalBorrowedShares) {
		return b.TotalBorrowed, nil
	}
	owed, err := MulDivCeil(shares, b.TotalBorrowed, b.TotalBorrowedShares)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Min(owed, b.TotalBorrowed.Sub(ONE)), nil
}

// AvailableLiquidity is what the treasury can pay out without touching lent funds.
func (b *Bank) AvailableLiquidity() decimal.Decimal {
	return decimal.Max(decimal.Zero, b.TotalDeposits.Sub(b.TotalBorrowed))
}

func (b *Bank) ComputeUtilizationRate() decimal.Decimal {
	if b.TotalDeposits.IsZero() {
		return decimal.Zero
	}
	return b.TotalBorrowed.Div(b.TotalDeposits)
}

func (b *Bank) ChangeDeposits(amount, shares decimal.Decimal) error {
	deposits := b.TotalDeposits.Add(amount)
	depositShares := b.TotalDepositShares.Add(shares)
	if deposits.IsNegative() || depositShares.IsNegative() {
		return errors.Wrapf(ErrIllegalBankState, "bank %s deposits would go negative", b.AssetId)
	}
	b.TotalDeposits = deposits
	b.TotalDepositShares = depositShares
	return nil
}

func (b *Bank) ChangeBorrows(amount, shares decimal.Decimal) error {
	borrowed := b.TotalBorrowed.Add(amount)
	borrowedShares := b.TotalBorrowedShares.Add(shares)
	if borrowed.IsNegative() || borrowedShares.IsNegative() {
		return errors.Wrapf(ErrIllegalBankState, "bank %s borrows would go negative", b.AssetId)
	}
	b.TotalBorrowed = borrowed
	b.TotalBorrowedShares = borrowedShares
	return nil
}

// SweepDust moves whatever is left in an empty pool into CollectedDust so that
// no deposits remain without shares.
func (b *Bank) SweepDust() decimal.Decimal {
	if !b.TotalDepositShares.IsZero() || b.TotalDeposits.IsZero() {
		return decimal.Zero
	}
	dust := b.TotalDeposits
	b.CollectedDust = b.CollectedDust.Add(dust)
	b.TotalDeposits = decimal.Zero
	return dust
}

func (b *Bank) CheckInvariants() error {
	if b.TotalDepositShares.IsZero() != b.TotalDeposits.IsZero() {
		return errors.Wrapf(ErrIllegalBankState, "bank %s deposits %s shares %s", b.AssetId, b.TotalDeposits, b.TotalDepositShares)
	}
	if b.TotalBorrowedShares.IsZero() != b.TotalBorrowed.IsZero() {
		return errors.Wrapf(ErrIllegalBankState, "bank %s borrowed %s shares %s", b.AssetId, b.TotalBorrowed, b.TotalBorrowedShares)
	}
	return nil
}

// AccrueInterest grows the debt by floor(borrowed*rate*elapsed/period) and
// credits the same amount to depositors. The accrual timestamp only moves when
// something accrued or nothing is borrowed, so short intervals are not lost.
func (b *Bank) AccrueInterest(log Log, currentTimestamp, period int64) (decimal.Decimal, error) {
	if period <= 0 {
		return decimal.Zero, errors.Wrapf(ErrInvalidParameters, "accrual period %d", period)
	}
	timeDelta := currentTimestamp - b.LastAccrualTimestamp
	if timeDelta <= 0 {
		return decimal.Zero, nil
	}

	if b.TotalBorrowed.IsZero() || b.InterestRate.IsZero() {
		b.LastAccrualTimestamp = currentTimestamp
		return decimal.Zero, nil
	}

	interest, err := CalcInterestPaymentForPeriod(b.InterestRate, timeDelta, period, b.TotalBorrowed)
	if err != nil {
		return decimal.Zero, err
	}
	if interest.IsZero() {
		return decimal.Zero, nil
	}

	log.Debug().
		Str("asset", b.AssetId).
		Int64("elapsed", timeDelta).
		Str("borrowed", b.TotalBorrowed.String()).
		Str("interest", interest.String()).
		Msg("accrue interest")

	b.TotalBorrowed = b.TotalBorrowed.Add(interest)
	b.TotalDeposits = b.TotalDeposits.Add(interest)
	b.LastAccrualTimestamp = currentTimestamp
	return interest, nil
}

func CalcInterestPaymentForPeriod(rate decimal.Decimal, timeDelta, period int64, value decimal.Decimal) (decimal.Decimal, error) {
	return MulDivFloor(value.Mul(rate), decimal.NewFromInt(timeDelta), decimal.NewFromInt(period))
}
