package lending

import (
	"context"

	"github.com/DomeLiquid/lending/core"
	"github.com/fox-one/mixin-sdk-go/v2"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

type bankOptions struct {
	liquidationBonus uint64
	closeFactor      uint64
	authority        string
}

type BankOption func(o *bankOptions)

// WithLiquidationBonus overrides the configured bonus, in percentage points.
func WithLiquidationBonus(points uint64) BankOption {
	return func(o *bankOptions) {
		o.liquidationBonus = points
	}
}

// WithCloseFactor overrides the configured close factor, in percentage points.
func WithCloseFactor(points uint64) BankOption {
	return func(o *bankOptions) {
		o.closeFactor = points
	}
}

func WithAuthority(authority string) BankOption {
	return func(o *bankOptions) {
		o.authority = authority
	}
}

// InitBank creates the bank of assetId. Ratios are whole percentage points.
// A second call for the same asset fails with core.ErrAlreadyInitialized.
func (e *Engine) InitBank(ctx context.Context, assetId string, liquidationThreshold, maxLtv, interestRate uint64, opts ...BankOption) (uuid.UUID, error) {
	o := bankOptions{
		liquidationBonus: e.liquidationBonus,
		closeFactor:      e.closeFactor,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := core.NewBankConfig(liquidationThreshold, maxLtv, interestRate, o.liquidationBonus, o.closeFactor)
	if err != nil {
		return uuid.Nil, err
	}
	bank, err := core.NewBank(e.clk, assetId, cfg)
	if err != nil {
		return uuid.Nil, err
	}
	bank.Authority = o.authority

	_, err = e.execute(ctx, core.OperationTypeInitBank, []string{bankLockKey(bank.Id)}, func(t *txn) (*Receipt, error) {
		if err := t.store.CreateBank(t.ctx, bank); err != nil {
			return nil, err
		}
		t.record(core.OperationTypeInitBank, o.authority, uuid.Nil, assetId)
		return &Receipt{AssetId: assetId, Bank: bank.Clone()}, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return bank.Id, nil
}

// GetBank returns the bank of assetId with interest accrued to now. The
// accrual is not persisted.
func (e *Engine) GetBank(ctx context.Context, assetId string) (*core.Bank, error) {
	bank, err := e.store.GetBankByAssetId(ctx, assetId)
	if err != nil {
		return nil, err
	}
	return e.accrual.Preview(bank)
}

// GetOrInitBank returns the existing bank or creates it with the given ratios.
// The ratios are ignored when the bank already exists.
func (e *Engine) GetOrInitBank(ctx context.Context, assetId string, liquidationThreshold, maxLtv, interestRate uint64, opts ...BankOption) (*core.Bank, error) {
	bank, err := e.GetBank(ctx, assetId)
	if err == nil || !errors.Is(err, core.ErrNotFound) {
		return bank, err
	}

	_, err = e.InitBank(ctx, assetId, liquidationThreshold, maxLtv, interestRate, opts...)
	if err != nil && !errors.Is(err, core.ErrAlreadyInitialized) {
		return nil, err
	}
	return e.GetBank(ctx, assetId)
}

func (e *Engine) ListBanks(ctx context.Context) ([]*core.Bank, error) {
	banks, err := e.store.ListBanks(ctx)
	if err != nil {
		return nil, err
	}
	for i, bank := range banks {
		if banks[i], err = e.accrual.Preview(bank); err != nil {
			return nil, err
		}
	}
	return banks, nil
}

// RegisterAsset stores display metadata for an asset. Once registered,
// deposits below the asset's dust are rejected.
func (e *Engine) RegisterAsset(ctx context.Context, asset *mixin.SafeAsset) (*core.Asset, error) {
	if asset == nil {
		return nil, errors.Wrap(core.ErrInvalidParameters, "asset is nil")
	}
	a := core.NewAssetFromMixin(asset)
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := e.store.UpsertAsset(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (e *Engine) Asset(ctx context.Context, assetId string) (*core.Asset, error) {
	return e.store.GetAsset(ctx, assetId)
}

// asset returns the registered metadata of assetId, or nil.
func (t *txn) asset(assetId string) (*core.Asset, error) {
	asset, err := t.store.GetAsset(t.ctx, assetId)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	return asset, err
}
