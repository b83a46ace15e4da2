package lending

import (
	"context"

	"github.com/DomeLiquid/lending/core"
)

// Position reads the (owner, asset) position valued at the current time. An
// owner without a position in the bank gets an empty view.
func (e *Engine) Position(ctx context.Context, ownerId, assetId string) (*PositionView, error) {
	user, err := e.store.GetUserByOwnerId(ctx, ownerId)
	if err != nil {
		return nil, err
	}
	bank, err := e.GetBank(ctx, assetId)
	if err != nil {
		return nil, err
	}
	position, err := core.FindOrNewPosition(ctx, e.clk, e.store, user.Id, bank)
	if err != nil {
		return nil, err
	}

	redeemable, owed, err := position.ComputeQuantity(bank)
	if err != nil {
		return nil, err
	}
	return &PositionView{
		AssetId:        assetId,
		State:          position.State(),
		DepositShares:  position.DepositShares,
		BorrowedShares: position.BorrowedShares,
		Redeemable:     redeemable,
		Owed:           owed,
	}, nil
}

func (e *Engine) Health(ctx context.Context, ownerId string) (*HealthView, error) {
	user, err := e.store.GetUserByOwnerId(ctx, ownerId)
	if err != nil {
		return nil, err
	}
	risk, err := core.NewRiskEngine(ctx, e.store, e.prices, e.accrual, user)
	if err != nil {
		return nil, err
	}

	view := &HealthView{OwnerId: ownerId}
	for _, c := range []struct {
		requirementType core.RequirementType
		components      *HealthComponents
	}{
		{core.Initial, &view.Initial},
		{core.Maintenance, &view.Maintenance},
		{core.Equity, &view.Equity},
	} {
		assets, liabilities, err := risk.GetAccountHealthComponents(c.requirementType)
		if err != nil {
			return nil, err
		}
		*c.components = HealthComponents{Assets: assets, Liabilities: liabilities}
	}
	view.Health = core.GetAccountHealth(view.Maintenance.Assets, view.Maintenance.Liabilities)
	return view, nil
}

// Operations returns the newest log entries of ownerId; limit <= 0 returns all.
func (e *Engine) Operations(ctx context.Context, ownerId string, limit int) ([]*core.Operation, error) {
	return e.store.ListOperations(ctx, ownerId, limit)
}
