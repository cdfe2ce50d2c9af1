package money_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiexchange/predictx/internal/money"
)

func TestFormatDollars(t *testing.T) {
	assert.Equal(t, "6.00", money.FormatDollars(600))
	assert.Equal(t, "0.10", money.FormatDollars(10))
	assert.Equal(t, "-1.50", money.FormatDollars(-150))
}

func TestParseDollars(t *testing.T) {
	cents, err := money.ParseDollars("6.00")
	require.NoError(t, err)
	assert.Equal(t, int64(600), cents)

	cents, err = money.ParseDollars("0.01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cents)

	_, err = money.ParseDollars("not-a-number")
	assert.ErrorIs(t, err, money.ErrInvalidAmount)
}

func TestRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 99, 100, 12345, -250} {
		s := money.FormatDollars(cents)
		back, err := money.ParseDollars(s)
		require.NoError(t, err)
		assert.Equal(t, cents, back)
	}
}
