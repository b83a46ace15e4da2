package core

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// TransferAdapter moves value outside the ledger. It must debit and credit
// atomically and either succeed or leave both balances untouched.
type TransferAdapter interface {
	Transfer(ctx context.Context, from, to uuid.UUID, assetId string, amount decimal.Decimal) error
}

type Transfer struct {
	From    uuid.UUID       `json:"from"`
	To      uuid.UUID       `json:"to"`
	AssetId string          `json:"assetId"`
	Amount  decimal.Decimal `json:"amount"`
}

func (t Transfer) Reverse() Transfer {
	return Transfer{
		From:    t.To,
		To:      t.From,
		AssetId: t.AssetId,
		Amount:  t.Amount,
	}
}
