package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name      string
		a, b, d   decimal.Decimal
		wantFloor decimal.Decimal
		wantCeil  decimal.Decimal
	}{
		{
			name:      "exact",
			a:         decimal.NewFromInt(50_000),
			b:         decimal.NewFromInt(100_000),
			d:         decimal.NewFromInt(100_000),
			wantFloor: decimal.NewFromInt(50_000),
			wantCeil:  decimal.NewFromInt(50_000),
		},
		{
			name:      "remainder",
			a:         decimal.NewFromInt(10),
			b:         decimal.NewFromInt(1),
			d:         decimal.NewFromInt(3),
			wantFloor: decimal.NewFromInt(3),
			wantCeil:  decimal.NewFromInt(4),
		},
		{
			name:      "fractional multiplier",
			a:         decimal.NewFromInt(1_000),
			b:         decimal.RequireFromString("0.05"),
			d:         decimal.NewFromInt(3),
			wantFloor: decimal.NewFromInt(16),
			wantCeil:  decimal.NewFromInt(17),
		},
		{
			name:      "zero numerator",
			a:         decimal.Zero,
			b:         decimal.NewFromInt(7),
			d:         decimal.NewFromInt(3),
			wantFloor: decimal.Zero,
			wantCeil:  decimal.Zero,
		},
		{
			name:      "large",
			a:         decimal.RequireFromString("123456789012345678901234567890"),
			b:         decimal.RequireFromString("987654321098765432109876543210"),
			d:         decimal.RequireFromString("987654321098765432109876543210"),
			wantFloor: decimal.RequireFromString("123456789012345678901234567890"),
			wantCeil:  decimal.RequireFromString("123456789012345678901234567890"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			floor, err := MulDivFloor(tt.a, tt.b, tt.d)
			require.NoError(t, err)
			assert.True(t, floor.Equal(tt.wantFloor), "floor: expected %s, got %s", tt.wantFloor, floor)

			ceil, err := MulDivCeil(tt.a, tt.b, tt.d)
			require.NoError(t, err)
			assert.True(t, ceil.Equal(tt.wantCeil), "ceil: expected %s, got %s", tt.wantCeil, ceil)
		})
	}
}

func TestMulDivByZero(t *testing.T) {
	_, err := MulDivFloor(ONE, ONE, decimal.Zero)
	assert.ErrorIs(t, err, ErrMath)
	_, err = MulDivCeil(ONE, ONE, decimal.Zero)
	assert.ErrorIs(t, err, ErrMath)
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  decimal.Decimal
		wantErr bool
	}{
		{name: "positive", amount: decimal.NewFromInt(1)},
		{name: "zero", amount: decimal.Zero, wantErr: true},
		{name: "negative", amount: decimal.NewFromInt(-5), wantErr: true},
		{name: "fraction", amount: decimal.RequireFromString("1.5"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmount(tt.amount)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCalcValue(t *testing.T) {
	tests := []struct {
		name     string
		amount   decimal.Decimal
		price    decimal.Decimal
		weight   *decimal.Decimal
		expected decimal.Decimal
	}{
		{
			name:     "normal",
			amount:   decimal.NewFromInt(100),
			price:    decimal.NewFromInt(2),
			weight:   decimalPtr(decimal.RequireFromString("0.5")),
			expected: decimal.NewFromInt(100),
		},
		{
			name:     "zero",
			amount:   decimal.Zero,
			price:    decimal.NewFromInt(2),
			weight:   decimalPtr(decimal.RequireFromString("0.5")),
			expected: decimal.Zero,
		},
		{
			name:     "nil",
			amount:   decimal.NewFromInt(100),
			price:    decimal.NewFromInt(2),
			weight:   nil,
			expected: decimal.NewFromInt(200),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := CalcValue(tt.amount, tt.price, tt.weight)
			assert.NoError(t, err)
			assert.True(t, result.Equal(tt.expected), "expected %s, got %s", tt.expected, result)
		})
	}
}

func TestCalcAmount(t *testing.T) {
	result, err := CalcAmount(decimal.NewFromInt(200), decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.True(t, result.Equal(decimal.NewFromInt(100)))

	_, err = CalcAmount(decimal.NewFromInt(200), decimal.Zero)
	assert.ErrorIs(t, err, ErrMath)
}

func TestPointsToRatio(t *testing.T) {
	assert.True(t, PointsToRatio(5).Equal(decimal.RequireFromString("0.05")))
	assert.True(t, PointsToRatio(100).Equal(ONE))
	assert.True(t, PointsToRatio(0).IsZero())
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
