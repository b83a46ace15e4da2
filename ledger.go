package lending

import (
	"context"

	"github.com/DomeLiquid/lending/core"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
)

// InitUser creates the account of ownerId. The id depends on the owner only,
// so one account holds positions in every bank. A second call fails with
// core.ErrAlreadyInitialized and keeps the stored reference asset.
func (e *Engine) InitUser(ctx context.Context, ownerId, referenceAssetId string) (uuid.UUID, error) {
	user, err := core.NewUserAccount(e.clk, ownerId, referenceAssetId)
	if err != nil {
		return uuid.Nil, err
	}

	_, err = e.execute(ctx, core.OperationTypeInitUser, []string{userLockKey(user.Id)}, func(t *txn) (*Receipt, error) {
		if err := t.store.CreateUser(t.ctx, user); err != nil {
			return nil, err
		}
		t.record(core.OperationTypeInitUser, ownerId, user.Id, referenceAssetId)
		return &Receipt{OwnerId: ownerId, AssetId: referenceAssetId}, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return user.Id, nil
}

// GetUser returns the account of ownerId with its positions loaded.
func (e *Engine) GetUser(ctx context.Context, ownerId string) (*core.UserAccount, error) {
	user, err := e.store.GetUserByOwnerId(ctx, ownerId)
	if err != nil {
		return nil, err
	}
	if err := user.LoadPositions(ctx, e.store); err != nil {
		return nil, err
	}
	return user, nil
}

func (e *Engine) GetOrInitUser(ctx context.Context, ownerId, referenceAssetId string) (*core.UserAccount, error) {
	user, err := e.GetUser(ctx, ownerId)
	if err == nil || !errors.Is(err, core.ErrNotFound) {
		return user, err
	}

	_, err = e.InitUser(ctx, ownerId, referenceAssetId)
	if err != nil && !errors.Is(err, core.ErrAlreadyInitialized) {
		return nil, err
	}
	return e.GetUser(ctx, ownerId)
}
