package transfer

import (
	"context"
	"sync"

	"github.com/DomeLiquid/lending/core"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

type balanceKey struct {
	account uuid.UUID
	assetId string
}

// Custodian keeps external balances in memory. A transfer debits and credits
// under one lock, so it either fully happens or leaves both sides untouched.
type Custodian struct {
	mu       sync.Mutex
	balances map[balanceKey]decimal.Decimal
}

var _ core.TransferAdapter = (*Custodian)(nil)

func NewCustodian() *Custodian {
	return &Custodian{balances: map[balanceKey]decimal.Decimal{}}
}

// Mint credits account out of thin air. It funds wallets before they deposit.
func (c *Custodian) Mint(account uuid.UUID, assetId string, amount decimal.Decimal) error {
	if err := core.ValidateAmount(amount); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := balanceKey{account, assetId}
	c.balances[key] = c.balances[key].Add(amount)
	return nil
}

func (c *Custodian) Balance(account uuid.UUID, assetId string) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[balanceKey{account, assetId}]
}

func (c *Custodian) Transfer(ctx context.Context, from, to uuid.UUID, assetId string, amount decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := core.ValidateAmount(amount); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	src := balanceKey{from, assetId}
	if balance := c.balances[src]; balance.LessThan(amount) {
		return errors.Wrapf(ErrInsufficientFunds, "%s holds %s %s, needs %s", from, balance, assetId, amount)
	}
	c.balances[src] = c.balances[src].Sub(amount)
	dst := balanceKey{to, assetId}
	c.balances[dst] = c.balances[dst].Add(amount)
	return nil
}
