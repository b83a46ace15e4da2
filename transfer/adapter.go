package transfer

import (
	"context"
	"sync/atomic"

	"github.com/DomeLiquid/lending/core"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrInjected = errors.New("injected transfer failure")

// Func adapts a plain function to core.TransferAdapter.
type Func func(ctx context.Context, from, to uuid.UUID, assetId string, amount decimal.Decimal) error

func (f Func) Transfer(ctx context.Context, from, to uuid.UUID, assetId string, amount decimal.Decimal) error {
	return f(ctx, from, to, assetId, amount)
}

// Failing forwards to Next until FailOn matches, then returns ErrInjected
// without calling Next.
type Failing struct {
	Next   core.TransferAdapter
	FailOn func(call int64, from, to uuid.UUID, assetId string) bool

	calls atomic.Int64
}

var _ core.TransferAdapter = (*Failing)(nil)

// FailAfter lets n transfers through and fails every later one.
func FailAfter(next core.TransferAdapter, n int64) *Failing {
	return &Failing{
		Next: next,
		FailOn: func(call int64, _, _ uuid.UUID, _ string) bool {
			return call > n
		},
	}
}

// FailTo fails every transfer credited to account.
func FailTo(next core.TransferAdapter, account uuid.UUID) *Failing {
	return &Failing{
		Next: next,
		FailOn: func(_ int64, _, to uuid.UUID, _ string) bool {
			return to == account
		},
	}
}

func (f *Failing) Calls() int64 {
	return f.calls.Load()
}

func (f *Failing) Transfer(ctx context.Context, from, to uuid.UUID, assetId string, amount decimal.Decimal) error {
	call := f.calls.Add(1)
	if f.FailOn != nil && f.FailOn(call, from, to, assetId) {
		return errors.Wrapf(ErrInjected, "call %d %s -> %s", call, from, to)
	}
	if f.Next == nil {
		return nil
	}
	return f.Next.Transfer(ctx, from, to, assetId, amount)
}
