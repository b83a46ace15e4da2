package core

import (
	"github.com/shopspring/decimal"
)

const (
	SECONDS_PER_YEAR = 31_536_000

	// percentage points
	DEFAULT_LIQUIDATION_BONUS = 5
	DEFAULT_CLOSE_FACTOR      = 50
	MAX_RATIO_POINTS          = 100
)

var (
	ONE     = decimal.NewFromInt(1)
	HUNDRED = decimal.NewFromInt(100)
)
