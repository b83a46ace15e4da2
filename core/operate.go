package core

import (
	"context"
	"database/sql/driver"
	"encoding/json"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	OperationStore interface {
		CreateOperation(ctx context.Context, operation *Operation) error
		ListOperations(ctx context.Context, ownerId string, limit int) ([]*Operation, error)
	}

	// Operation is one committed entry of the append-only operation log.
	Operation struct {
		Seq       uint64          `gorm:"primaryKey;autoIncrement" json:"seq"`
		Id        uuid.UUID       `gorm:"uniqueIndex;type:varchar(36);not null" json:"id"`
		OwnerId   string          `gorm:"index;size:128" json:"ownerId"`
		UserId    uuid.UUID       `gorm:"type:varchar(36)" json:"userId"`
		Type      OperationType   `gorm:"not null" json:"type"`
		AssetId   string          `gorm:"size:64" json:"assetId"`
		Amount    decimal.Decimal `gorm:"type:text" json:"amount"`
		Shares    decimal.Decimal `gorm:"type:text" json:"shares"`
		Detail    OperateDetail   `gorm:"type:text" json:"detail"`
		CreatedAt int64           `gorm:"autoCreateTime:false" json:"createdAt"`
	}

	OperateDetail struct {
		Counterparty      string           `json:"counterparty,omitempty"`
		CollateralAssetId string           `json:"collateralAssetId,omitempty"`
		SeizedAmount      *decimal.Decimal `json:"seizedAmount,omitempty"`
		SeizedShares      *decimal.Decimal `json:"seizedShares,omitempty"`
		Dust              *decimal.Decimal `json:"dust,omitempty"`
		Transfers         []Transfer       `json:"transfers,omitempty"`
	}
)

type OperationType uint8

const (
	OperationTypeInitBank OperationType = iota + 1
	OperationTypeInitUser
	OperationTypeDeposit
	OperationTypeWithdraw
	OperationTypeBorrow
	OperationTypeRepay
	OperationTypeLiquidate
	OperationTypeAccrue
)

func (t OperationType) String() string {
	switch t {
	case OperationTypeInitBank:
		return "init_bank"
	case OperationTypeInitUser:
		return "init_user"
	case OperationTypeDeposit:
		return "deposit"
	case OperationTypeWithdraw:
		return "withdraw"
	case OperationTypeBorrow:
		return "borrow"
	case OperationTypeRepay:
		return "repay"
	case OperationTypeLiquidate:
		return "liquidate"
	case OperationTypeAccrue:
		return "accrue"
	default:
		return "unknown"
	}
}

func NewOperation(clk clock.Clock, typ OperationType, ownerId string, userId uuid.UUID, assetId string) *Operation {
	return &Operation{
		Id:        uuid.Must(uuid.NewV4()),
		OwnerId:   ownerId,
		UserId:    userId,
		Type:      typ,
		AssetId:   assetId,
		Amount:    decimal.Zero,
		Shares:    decimal.Zero,
		CreatedAt: clk.Now().Unix(),
	}
}

func (j OperateDetail) Value() (driver.Value, error) {
	valueString, err := json.Marshal(j)
	return string(valueString), err
}

func (j *OperateDetail) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("unsupported operate detail type %T", value)
	}
	return json.Unmarshal(data, j)
}
