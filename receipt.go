package lending

import (
	"github.com/DomeLiquid/lending/core"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// Receipt describes a committed operation. Amount is what actually moved and
// Shares what was minted or burned; Position and Bank are the state after.
type Receipt struct {
	OperationId uuid.UUID          `json:"operationId"`
	Type        core.OperationType `json:"type"`
	OwnerId     string             `json:"ownerId"`
	AssetId     string             `json:"assetId"`
	Amount      decimal.Decimal    `json:"amount"`
	Shares      decimal.Decimal    `json:"shares"`
	Dust        decimal.Decimal    `json:"dust"`

	Position *core.Position `json:"position,omitempty"`
	Bank     *core.Bank     `json:"bank,omitempty"`

	Liquidation *core.LiquidateResult `json:"liquidation,omitempty"`
}

// PositionView is a read of one (user, bank) pair at the current time.
type PositionView struct {
	AssetId        string             `json:"assetId"`
	State          core.PositionState `json:"state"`
	DepositShares  decimal.Decimal    `json:"depositShares"`
	BorrowedShares decimal.Decimal    `json:"borrowedShares"`
	Redeemable     decimal.Decimal    `json:"redeemable"`
	Owed           decimal.Decimal    `json:"owed"`
}

type HealthComponents struct {
	Assets      decimal.Decimal `json:"assets"`
	Liabilities decimal.Decimal `json:"liabilities"`
}

// HealthView holds the weighted totals of a user. Health is
// (assets - liabilities) / assets under maintenance weights, one without debt.
type HealthView struct {
	OwnerId     string           `json:"ownerId"`
	Initial     HealthComponents `json:"initial"`
	Maintenance HealthComponents `json:"maintenance"`
	Equity      HealthComponents `json:"equity"`
	Health      decimal.Decimal  `json:"health"`
}

func newReceipt(ownerId string, ba *core.BankAccount, amount, shares decimal.Decimal) *Receipt {
	return &Receipt{
		OwnerId:  ownerId,
		AssetId:  ba.Bank.AssetId,
		Amount:   amount,
		Shares:   shares,
		Dust:     decimal.Zero,
		Position: ba.Position.Clone(),
		Bank:     ba.Bank.Clone(),
	}
}
