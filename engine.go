package lending

import (
	"github.com/DomeLiquid/lending/config"
	"github.com/DomeLiquid/lending/core"
	"github.com/DomeLiquid/lending/metrics"
	"github.com/DomeLiquid/lending/oracle"
	"github.com/DomeLiquid/lending/utils"
	"github.com/facebookgo/clock"
	"github.com/rs/zerolog"
)

// Engine is the accounting engine of the ledger. It owns every write to banks,
// users and positions; callers only reach state through its methods.
type Engine struct {
	clk      clock.Clock
	log      zerolog.Logger
	store    core.Store
	transfer core.TransferAdapter
	prices   core.PriceAdapter
	locker   Locker
	metrics  *metrics.LendingMetrics
	accrual  core.InterestAccrual

	// bank defaults in percentage points
	liquidationBonus uint64
	closeFactor      uint64
}

type Option func(e *Engine)

func WithClock(clk clock.Clock) Option {
	return func(e *Engine) {
		e.clk = clk
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

func WithPriceAdapter(prices core.PriceAdapter) Option {
	return func(e *Engine) {
		e.prices = prices
	}
}

func WithLocker(locker Locker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

func WithMetrics(m *metrics.LendingMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithConfig applies the accrual period and bank defaults of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		if cfg == nil {
			return
		}
		e.accrual.Period = cfg.Accrual.PeriodSeconds
		e.liquidationBonus = cfg.Risk.LiquidationBonus
		e.closeFactor = cfg.Risk.CloseFactor
	}
}

// New wires an engine over store and transfer. Without WithPriceAdapter every
// asset is priced at one.
func New(store core.Store, transfer core.TransferAdapter, opts ...Option) *Engine {
	e := &Engine{
		clk:              clock.New(),
		log:              zerolog.Nop(),
		store:            store,
		transfer:         transfer,
		prices:           oracle.NewStatic(core.ONE, nil),
		locker:           NewKeyedLocker(),
		accrual:          core.NewInterestAccrual(nil, core.SECONDS_PER_YEAR),
		liquidationBonus: core.DEFAULT_LIQUIDATION_BONUS,
		closeFactor:      core.DEFAULT_CLOSE_FACTOR,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.accrual = core.NewInterestAccrual(e.clk, e.accrual.Period)
	return e
}

func (e *Engine) logger() core.Log {
	return &e.log
}

// lockKeys derives the lock keys of the banks of assetIds and the users of
// ownerIds. Empty identifiers fail with core.ErrInvalidKeyMaterial.
func lockKeys(assetIds []string, ownerIds []string) ([]string, error) {
	keys := make([]string, 0, len(assetIds)+len(ownerIds))
	for _, assetId := range assetIds {
		id, err := utils.BankId(assetId)
		if err != nil {
			return nil, err
		}
		keys = append(keys, bankLockKey(id))
	}
	for _, ownerId := range ownerIds {
		id, err := utils.UserId(ownerId)
		if err != nil {
			return nil, err
		}
		keys = append(keys, userLockKey(id))
	}
	return keys, nil
}
