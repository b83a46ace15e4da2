package core

import (
	"github.com/DomeLiquid/lending/utils"
	"github.com/pkg/errors"
)

var (
	ErrInvalidParameters           = errors.New("invalid parameters")
	ErrAlreadyInitialized          = errors.New("already initialized")
	ErrNotFound                    = errors.New("not found")
	ErrInvalidAmount               = errors.New("invalid amount")
	ErrInsufficientBalance         = errors.New("insufficient balance")
	ErrExceedsLiquidationThreshold = errors.New("exceeds liquidation threshold")
	ErrTransferFailed              = errors.New("transfer failed")
	ErrInvalidKeyMaterial          = utils.ErrInvalidKeyMaterial

	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrExceedsMaxLtv         = errors.New("exceeds max ltv")
	ErrNoDebt                = errors.New("no debt")
	ErrNotLiquidatable       = errors.New("account not liquidatable")
	ErrExceedsCloseFactor    = errors.New("exceeds close factor")

	ErrIllegalBankState = errors.New("illegal bank state")
	ErrMath             = errors.New("math error")
)
