package lending

import (
	"io"

	"github.com/DomeLiquid/lending/config"
	"github.com/DomeLiquid/lending/core"
	"github.com/DomeLiquid/lending/logging"
	"github.com/DomeLiquid/lending/metrics"
	"github.com/DomeLiquid/lending/oracle"
	"github.com/DomeLiquid/lending/store"
	"github.com/pkg/errors"
)

// NewFromConfig opens the configured database and builds an engine with the
// configured logger, static prices and process wide metrics. Close releases
// the database and the log file.
func NewFromConfig(cfg *config.Config, transfer core.TransferAdapter, opts ...Option) (*Engine, io.Closer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if transfer == nil {
		return nil, nil, errors.Wrap(core.ErrInvalidParameters, "transfer adapter is nil")
	}

	log, logCloser, err := logging.New(cfg.Log, "lending")
	if err != nil {
		return nil, nil, err
	}
	prices, err := oracle.FromConfig(cfg.Risk)
	if err != nil {
		logCloser.Close()
		return nil, nil, err
	}
	db, err := store.Open(cfg.Database)
	if err != nil {
		logCloser.Close()
		return nil, nil, err
	}

	base := []Option{
		WithConfig(cfg),
		WithLogger(log),
		WithPriceAdapter(prices),
		WithMetrics(metrics.Lending()),
	}
	e := New(db, transfer, append(base, opts...)...)
	return e, closers{db, logCloser}, nil
}

type closers []io.Closer

func (cs closers) Close() error {
	var first error
	for _, c := range cs {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
