package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("")
	require.NoError(t, err)
	assert.Zero(t, v.Sign())

	v, err = ParseAmount("123456789012345678901234567890")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", v.String())

	_, err = ParseAmount("-5")
	assert.Error(t, err)

	_, err = ParseAmount("1.5")
	assert.Error(t, err)

	_, err = ParseAmount("abc")
	assert.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", FormatAmount(nil))
	assert.Equal(t, "42", FormatAmount(big.NewInt(42)))
}

func TestMulDivFloor(t *testing.T) {
	// 7 * 3 / 2 = 10.5 floors to 10
	assert.Equal(t, big.NewInt(10), MulDivFloor(big.NewInt(7), big.NewInt(3), big.NewInt(2)))
	assert.Equal(t, "0", MulDivFloor(big.NewInt(1), big.NewInt(1), big.NewInt(2)).String())

	// Zero denominator resolves to zero rather than panicking.
	assert.Equal(t, "0", MulDivFloor(big.NewInt(7), big.NewInt(3), big.NewInt(0)).String())
}

func TestApplyBps(t *testing.T) {
	assert.Equal(t, big.NewInt(500), ApplyBps(big.NewInt(1000), 5000))
	assert.Equal(t, big.NewInt(1000), ApplyBps(big.NewInt(1000), 10000))
	assert.Equal(t, "0", ApplyBps(big.NewInt(1), 5000).String())
	// 333 * 0.25% = 0.8325 floors to 0
	assert.Equal(t, "0", ApplyBps(big.NewInt(333), 25).String())
}

func TestMinMaxBig(t *testing.T) {
	a, b := big.NewInt(3), big.NewInt(7)
	assert.Equal(t, a, MinBig(a, b))
	assert.Equal(t, b, MaxBig(a, b))
	assert.Equal(t, a, MinBig(a, a))
}
