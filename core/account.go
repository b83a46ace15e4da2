package core

import (
	"context"
	"strings"

	"github.com/DomeLiquid/lending/utils"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	UserStore interface {
		CreateUser(ctx context.Context, user *UserAccount) error
		GetUserById(ctx context.Context, userId uuid.UUID) (*UserAccount, error)
		GetUserByOwnerId(ctx context.Context, ownerId string) (*UserAccount, error)
	}

	// UserAccount is shared by every asset the owner touches; the id depends on
	// the owner alone.
	UserAccount struct {
		Id               uuid.UUID `gorm:"primaryKey;type:varchar(36)" json:"id"`
		OwnerId          string    `gorm:"uniqueIndex;size:128;not null" json:"ownerId"`
		ReferenceAssetId string    `gorm:"size:64;not null" json:"referenceAssetId"`

		Positions map[string]*Position `gorm:"-" json:"positions"`

		CreatedAt int64 `gorm:"autoCreateTime:false" json:"createdAt"`
		UpdatedAt int64 `gorm:"autoUpdateTime:false" json:"updatedAt"`
	}
)

func (UserAccount) TableName() string {
	return "users"
}

func NewUserAccount(clk clock.Clock, ownerId, referenceAssetId string) (*UserAccount, error) {
	if strings.TrimSpace(referenceAssetId) == "" {
		return nil, errors.Wrap(ErrInvalidParameters, "reference asset id is empty")
	}
	id, err := utils.UserId(ownerId)
	if err != nil {
		return nil, err
	}
	now := clk.Now().Unix()
	return &UserAccount{
		Id:               id,
		OwnerId:          ownerId,
		ReferenceAssetId: referenceAssetId,
		Positions:        map[string]*Position{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// LoadPositions fills Positions from the store, keyed by asset id.
func (a *UserAccount) LoadPositions(ctx context.Context, store PositionStore) error {
	positions, err := store.ListPositions(ctx, a.Id)
	if err != nil {
		return err
	}
	a.Positions = make(map[string]*Position, len(positions))
	for _, p := range positions {
		a.Positions[p.AssetId] = p
	}
	return nil
}

// GetAccountHealth returns (assets - liabilities) / assets, or one when there
// is no debt.
func GetAccountHealth(totalAssets, totalLiabilities decimal.Decimal) decimal.Decimal {
	health := ONE

	if totalLiabilities.IsZero() {
		return health
	}

	health = decimal.Zero
	if totalAssets.IsPositive() {
		health = (totalAssets.Sub(totalLiabilities)).Div(totalAssets)
	}
	return health
}
