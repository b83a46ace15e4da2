package core

import (
	"context"

	"github.com/fox-one/mixin-sdk-go/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	AssetStore interface {
		GetAsset(ctx context.Context, assetId string) (*Asset, error)
		ListAssets(ctx context.Context) ([]*Asset, error)
		UpsertAsset(ctx context.Context, asset *Asset) error
	}

	// Asset is optional display metadata for a bank's asset. Amounts in the
	// ledger are integer units; Precision says how many of them make one token.
	Asset struct {
		AssetId       string          `gorm:"primaryKey;size:64" json:"assetId"`
		ChainId       string          `gorm:"size:64" json:"chainId,omitempty"`
		KernelAssetId string          `gorm:"size:128" json:"kernelAssetId,omitempty"`
		Symbol        string          `gorm:"size:32" json:"symbol,omitempty"`
		Name          string          `gorm:"size:128" json:"name,omitempty"`
		IconUrl       string          `gorm:"size:512" json:"iconUrl,omitempty"`
		AssetKey      string          `gorm:"size:256" json:"assetKey,omitempty"`
		Precision     int32           `json:"precision"`
		Dust          decimal.Decimal `gorm:"type:text" json:"dust"`
	}
)

func NewAssetFromMixin(asset *mixin.SafeAsset) *Asset {
	return &Asset{
		AssetId:       asset.AssetID,
		ChainId:       asset.ChainID,
		KernelAssetId: asset.KernelAssetID,
		Symbol:        asset.Symbol,
		Name:          asset.Name,
		IconUrl:       asset.IconURL,
		AssetKey:      asset.AssetKey,
		Precision:     asset.Precision,
		Dust:          asset.Dust,
	}
}

func (a *Asset) Validate() error {
	if a.AssetId == "" {
		return errors.Wrap(ErrInvalidParameters, "asset id is empty")
	}
	if a.Precision < 0 {
		return errors.Wrapf(ErrInvalidParameters, "asset %s precision %d", a.AssetId, a.Precision)
	}
	if a.Dust.IsNegative() {
		return errors.Wrapf(ErrInvalidParameters, "asset %s dust %s", a.AssetId, a.Dust)
	}
	return nil
}

// Display converts integer units to token amount, e.g. 150000000 units of an
// 8 decimal asset is 1.5.
func (a *Asset) Display(units decimal.Decimal) string {
	s := units.Shift(-a.Precision).String()
	if a.Symbol == "" {
		return s
	}
	return s + " " + a.Symbol
}

// MinimumUnits is the dust threshold expressed in integer units.
func (a *Asset) MinimumUnits() decimal.Decimal {
	return a.Dust.Shift(a.Precision).Ceil()
}

func (a *Asset) CheckMinimum(amount decimal.Decimal) error {
	if minimum := a.MinimumUnits(); amount.LessThan(minimum) {
		return errors.Wrapf(ErrInvalidAmount, "%s is below dust %s", a.Display(amount), a.Display(minimum))
	}
	return nil
}
