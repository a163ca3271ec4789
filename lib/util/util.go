// Package util contains helper functions used around the code.
package util

import (
	"math/big"
	"strings"
)

// In returns true if s is found in ss, false otherwise
func In(ss []string, s string) bool {
	for _, v := range ss {
		if s == v {
			return true
		}
	}
	return false
}

// decimals used by the fund contract for amounts at the wire boundary.
const decimals = 18

var weiPerUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil) //nolint:gochecknoglobals // fixed contract scale

// ToWei converts a whole-unit amount into its 18-decimal wire representation.
func ToWei(amount uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(amount), weiPerUnit)
}

// FromWei converts an 18-decimal wire amount into whole units. Any fractional part is truncated.
func FromWei(wei *big.Int) uint64 {
	if wei == nil || wei.Sign() <= 0 {
		return 0
	}

	return new(big.Int).Div(wei, weiPerUnit).Uint64()
}

// FormatWei renders an 18-decimal wire amount as a decimal string, trimming trailing fractional
// zeroes.
func FormatWei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}

	q, r := new(big.Int).QuoRem(wei, weiPerUnit, new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}

	frac := strings.TrimRight(strings.Repeat("0", decimals-len(r.String()))+r.String(), "0")

	return q.String() + "." + frac
}
