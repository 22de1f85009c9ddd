package utils

import (
	"fmt"
	"math/big"
)

// BpsDenominator basis point denominator, 10000 = 100%
const BpsDenominator = 10000

// ParseAmount parses a non-negative decimal string into a big.Int
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}

// FormatAmount renders a big.Int as a decimal string, nil as "0"
func FormatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// MulDivFloor returns floor(a * b / den). Rounding always floors,
// biased to protect existing holders.
func MulDivFloor(a, b, den *big.Int) *big.Int {
	if den.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, den)
}

// ApplyBps returns floor(amount * bps / 10000)
func ApplyBps(amount *big.Int, bps int64) *big.Int {
	return MulDivFloor(amount, big.NewInt(bps), big.NewInt(BpsDenominator))
}

// MinBig returns the smaller of a or b
func MinBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return a
	}
	return b
}

// MaxBig returns the larger of a or b
func MaxBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) > 0 {
		return a
	}
	return b
}
