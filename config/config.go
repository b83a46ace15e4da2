package config

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/DomeLiquid/lending/core"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config captures the runtime settings of the lending ledger.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Accrual  AccrualConfig  `toml:"accrual"`
	Risk     RiskConfig     `toml:"risk"`
	Log      LogConfig      `toml:"log"`
}

type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	Debug        bool   `toml:"debug"`
}

type AccrualConfig struct {
	// length of one interest_rate period
	PeriodSeconds int64 `toml:"period_seconds"`
}

// RiskConfig carries bank defaults in whole percentage points and the static
// price table.
type RiskConfig struct {
	LiquidationBonus uint64            `toml:"liquidation_bonus"`
	CloseFactor      uint64            `toml:"close_factor"`
	DefaultPrice     string            `toml:"default_price"`
	Prices           map[string]string `toml:"prices"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	Console    bool   `toml:"console"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    "file:lending.db?_pragma=busy_timeout(5000)",
		},
		Accrual: AccrualConfig{
			PeriodSeconds: core.SECONDS_PER_YEAR,
		},
		Risk: RiskConfig{
			LiquidationBonus: core.DEFAULT_LIQUIDATION_BONUS,
			CloseFactor:      core.DEFAULT_CLOSE_FACTOR,
			DefaultPrice:     "1",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 7,
			MaxAgeDays: 30,
		},
	}
}

// Load decodes path over the defaults, then normalizes and validates.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("config path required")
	}
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "decode config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("config %s has unknown key %s", path, undecoded[0])
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse is Load for an in-memory document.
func Parse(data string) (*Config, error) {
	cfg := Default()
	meta, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown config key %s", undecoded[0])
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	cfg.Database.DSN = strings.TrimSpace(cfg.Database.DSN)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.File = strings.TrimSpace(cfg.Log.File)
	if cfg.Risk.DefaultPrice = strings.TrimSpace(cfg.Risk.DefaultPrice); cfg.Risk.DefaultPrice == "" {
		cfg.Risk.DefaultPrice = "1"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("configuration is missing")
	}
	if err := cfg.Database.validate(); err != nil {
		return errors.Wrap(err, "database")
	}
	if cfg.Accrual.PeriodSeconds <= 0 {
		return errors.Errorf("accrual: period_seconds must be positive, got %d", cfg.Accrual.PeriodSeconds)
	}
	if err := cfg.Risk.validate(); err != nil {
		return errors.Wrap(err, "risk")
	}
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return errors.Wrap(err, "log")
	}
	return nil
}

func (cfg DatabaseConfig) validate() error {
	switch cfg.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return errors.Errorf("unsupported driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return errors.New("dsn is required")
	}
	if cfg.MaxOpenConns < 0 {
		return errors.Errorf("max_open_conns %d", cfg.MaxOpenConns)
	}
	return nil
}

func (cfg RiskConfig) validate() error {
	if cfg.LiquidationBonus > core.MAX_RATIO_POINTS {
		return errors.Errorf("liquidation_bonus %d exceeds %d", cfg.LiquidationBonus, core.MAX_RATIO_POINTS)
	}
	if cfg.CloseFactor > core.MAX_RATIO_POINTS {
		return errors.Errorf("close_factor %d exceeds %d", cfg.CloseFactor, core.MAX_RATIO_POINTS)
	}
	if _, _, err := cfg.PriceTable(); err != nil {
		return err
	}
	return nil
}

// PriceTable parses the configured prices. Every price must be positive.
func (cfg RiskConfig) PriceTable() (decimal.Decimal, map[string]decimal.Decimal, error) {
	def, err := parsePrice("default_price", cfg.DefaultPrice)
	if err != nil {
		return decimal.Zero, nil, err
	}
	prices := make(map[string]decimal.Decimal, len(cfg.Prices))
	for assetId, raw := range cfg.Prices {
		price, err := parsePrice(assetId, raw)
		if err != nil {
			return decimal.Zero, nil, err
		}
		prices[assetId] = price
	}
	return def, prices, nil
}

func parsePrice(name, raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "price %s", name)
	}
	if !price.IsPositive() {
		return decimal.Zero, errors.Errorf("price %s must be positive, got %s", name, price)
	}
	return price, nil
}
