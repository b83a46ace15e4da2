package lending

import (
	"context"

	"github.com/DomeLiquid/lending/core"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type accountKey struct {
	userId  uuid.UUID
	assetId string
}

// txn is the working set of one operation. Banks are accrued on first touch
// and every bank and account it hands out is written back by flush.
type txn struct {
	e     *Engine
	ctx   context.Context
	store core.Store
	log   core.Log

	banks        map[string]*core.Bank
	bankOrder    []string
	accrued      map[string]decimal.Decimal
	accounts     map[accountKey]*core.BankAccount
	accountOrder []accountKey

	transfers  []core.Transfer
	operations []*core.Operation
}

func newTxn(ctx context.Context, e *Engine, store core.Store) *txn {
	return &txn{
		e:        e,
		ctx:      ctx,
		store:    store,
		log:      e.logger(),
		banks:    map[string]*core.Bank{},
		accrued:  map[string]decimal.Decimal{},
		accounts: map[accountKey]*core.BankAccount{},
	}
}

func (t *txn) bank(assetId string) (*core.Bank, error) {
	if bank, ok := t.banks[assetId]; ok {
		return bank, nil
	}
	bank, err := t.store.GetBankByAssetId(t.ctx, assetId)
	if err != nil {
		return nil, err
	}
	interest, err := t.e.accrual.Accrue(t.log, bank)
	if err != nil {
		return nil, err
	}
	t.accrued[assetId] = interest
	t.banks[assetId] = bank
	t.bankOrder = append(t.bankOrder, assetId)
	return bank, nil
}

func (t *txn) user(ownerId string) (*core.UserAccount, error) {
	return t.store.GetUserByOwnerId(t.ctx, ownerId)
}

func (t *txn) account(user *core.UserAccount, bank *core.Bank) (*core.BankAccount, error) {
	key := accountKey{user.Id, bank.AssetId}
	if ba, ok := t.accounts[key]; ok {
		return ba, nil
	}
	ba, err := core.FindOrNewBankAccount(t.ctx, t.e.clk, t.store, user.Id, bank)
	if err != nil {
		return nil, err
	}
	t.accounts[key] = ba
	t.accountOrder = append(t.accountOrder, key)
	return ba, nil
}

// changed returns the in-flight accounts of userId.
func (t *txn) changed(userId uuid.UUID) []*core.BankAccount {
	var out []*core.BankAccount
	for _, key := range t.accountOrder {
		if key.userId == userId {
			out = append(out, t.accounts[key])
		}
	}
	return out
}

func (t *txn) riskEngine(user *core.UserAccount) (*core.RiskEngine, error) {
	return core.NewRiskEngine(t.ctx, t.store, t.e.prices, t.e.accrual, user, t.changed(user.Id)...)
}

// hasDebt reports whether user owes anything in any bank once the in-flight
// accounts are applied.
func (t *txn) hasDebt(user *core.UserAccount) (bool, error) {
	changed := map[string]bool{}
	for _, ba := range t.changed(user.Id) {
		changed[ba.Position.AssetId] = true
		if ba.Position.BorrowedShares.IsPositive() {
			return true, nil
		}
	}
	positions, err := t.store.ListPositions(t.ctx, user.Id)
	if err != nil {
		return false, err
	}
	for _, p := range positions {
		if !changed[p.AssetId] && p.BorrowedShares.IsPositive() {
			return true, nil
		}
	}
	return false, nil
}

func (t *txn) checkHealth(user *core.UserAccount, requirementType core.RequirementType) error {
	risk, err := t.riskEngine(user)
	if err != nil {
		return err
	}
	return risk.CheckAccountHealth(requirementType)
}

func (t *txn) pay(from, to uuid.UUID, assetId string, amount decimal.Decimal) {
	t.transfers = append(t.transfers, core.Transfer{
		From:    from,
		To:      to,
		AssetId: assetId,
		Amount:  amount,
	})
}

func (t *txn) record(typ core.OperationType, ownerId string, userId uuid.UUID, assetId string) *core.Operation {
	op := core.NewOperation(t.e.clk, typ, ownerId, userId, assetId)
	t.operations = append(t.operations, op)
	return op
}

func (t *txn) flush() error {
	for _, assetId := range t.bankOrder {
		bank := t.banks[assetId]
		if err := bank.CheckInvariants(); err != nil {
			return err
		}
		if err := t.store.UpdateBank(t.ctx, bank); err != nil {
			return err
		}
	}
	for _, key := range t.accountOrder {
		if err := t.store.UpsertPosition(t.ctx, t.accounts[key].Position); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) bankList() []*core.Bank {
	banks := make([]*core.Bank, 0, len(t.bankOrder))
	for _, assetId := range t.bankOrder {
		banks = append(banks, t.banks[assetId].Clone())
	}
	return banks
}

// execute runs fn under the locks for keys inside one store transaction.
// Writes are flushed, the queued transfers are made and the operation log is
// appended before commit. A failed transfer reverses the ones already made
// and rolls the transaction back.
func (e *Engine) execute(ctx context.Context, typ core.OperationType, keys []string, fn func(t *txn) (*Receipt, error)) (receipt *Receipt, err error) {
	defer func() {
		e.metrics.ObserveOperation(typ.String(), err)
		if err != nil {
			e.log.Warn().Err(err).Str("op", typ.String()).Msg("operation failed")
		}
	}()

	unlock, err := e.locker.Lock(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		applied []core.Transfer
		banks   []*core.Bank
	)
	err = e.store.Transaction(ctx, func(tx core.Store) error {
		t := newTxn(ctx, e, tx)
		r, err := fn(t)
		if err != nil {
			return err
		}
		if err := t.flush(); err != nil {
			return err
		}

		for _, tr := range t.transfers {
			if err := e.transfer.Transfer(ctx, tr.From, tr.To, tr.AssetId, tr.Amount); err != nil {
				e.metrics.IncTransferFailure(tr.AssetId)
				e.compensate(ctx, applied)
				applied = nil
				return errors.Wrapf(core.ErrTransferFailed, "%s %s from %s to %s: %v", tr.Amount, tr.AssetId, tr.From, tr.To, err)
			}
			applied = append(applied, tr)
		}

		for _, op := range t.operations {
			op.Detail.Transfers = t.transfers
			if err := tx.CreateOperation(ctx, op); err != nil {
				return err
			}
		}

		if r != nil && len(t.operations) > 0 {
			r.OperationId = t.operations[0].Id
			r.Type = typ
		}
		receipt = r
		banks = t.bankList()
		return nil
	})
	if err != nil {
		// commit failed after the money moved
		if len(applied) > 0 {
			e.compensate(ctx, applied)
		}
		return nil, err
	}

	for _, bank := range banks {
		e.observeBank(bank)
	}
	if receipt != nil {
		e.log.Info().
			Str("op", typ.String()).
			Str("id", receipt.OperationId.String()).
			Str("owner", receipt.OwnerId).
			Str("asset", receipt.AssetId).
			Str("amount", receipt.Amount.String()).
			Str("shares", receipt.Shares.String()).
			Msg("operation committed")
	}
	return receipt, nil
}

// compensate reverses applied transfers, newest first.
func (e *Engine) compensate(ctx context.Context, applied []core.Transfer) {
	ctx = context.WithoutCancel(ctx)
	for i := len(applied) - 1; i >= 0; i-- {
		tr := applied[i].Reverse()
		if err := e.transfer.Transfer(ctx, tr.From, tr.To, tr.AssetId, tr.Amount); err != nil {
			e.log.Error().Err(err).
				Str("asset", tr.AssetId).
				Str("amount", tr.Amount.String()).
				Str("from", tr.From.String()).
				Str("to", tr.To.String()).
				Msg("reverse transfer failed")
		}
	}
}

func (e *Engine) observeBank(bank *core.Bank) {
	if e.metrics == nil {
		return
	}
	deposits, _ := bank.TotalDeposits.Float64()
	borrowed, _ := bank.TotalBorrowed.Float64()
	utilization, _ := bank.ComputeUtilizationRate().Float64()
	dust, _ := bank.CollectedDust.Float64()
	e.metrics.ObserveBank(bank.AssetId, deposits, borrowed, utilization, dust)
}
