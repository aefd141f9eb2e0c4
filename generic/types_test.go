package generic_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/generic"
)

func TestRoundMoney_HalfToEven(t *testing.T) {
	tests := map[string]string{
		"0.125":   "0.12",
		"0.135":   "0.14",
		"1200":    "1200.00",
		"800.004": "800.00",
		"-2.345":  "-2.34",
	}
	for in, want := range tests {
		assert.Equal(t, want, generic.FormatMoney(decimal.RequireFromString(in)), in)
	}
}

func TestParseMoney(t *testing.T) {
	d, err := generic.ParseMoney("3000.50")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("3000.5")))

	_, err = generic.ParseMoney("three thousand")
	assert.Error(t, err)
}

func TestSumMoney(t *testing.T) {
	got := generic.SumMoney(
		decimal.RequireFromString("0.10"),
		decimal.RequireFromString("0.20"),
		decimal.RequireFromString("2999.70"),
	)
	assert.True(t, got.Equal(decimal.NewFromInt(3000)))
}

func TestErrorKinds(t *testing.T) {
	validation := fmt.Errorf("register sale: %w", generic.NewValidationError("amount", "must be positive"))
	notFound := fmt.Errorf("get: %w", generic.NewNotFoundError("collaborator", 7))

	assert.True(t, generic.IsValidation(validation))
	assert.True(t, errors.Is(validation, generic.ErrValidation))
	assert.False(t, generic.IsNotFound(validation))

	assert.True(t, generic.IsNotFound(notFound))
	assert.True(t, errors.Is(notFound, generic.ErrNotFound))
	assert.Contains(t, notFound.Error(), "collaborator 7 not found")

	assert.True(t, generic.IsClientError(validation))
	assert.True(t, generic.IsClientError(notFound))
	assert.False(t, generic.IsClientError(errors.New("disk full")))
}
