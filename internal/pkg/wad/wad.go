// Package wad provides 18-decimal fixed-point arithmetic on big integers.
//
// Values mirror onchain uint256 semantics: results must fit in 256 bits.
// Instead of silently wrapping, operations that would exceed that width
// return ErrScalingOverflow.
package wad

import (
	"errors"
	"math/big"
)

// Decimals is the fixed-point precision of a WAD value.
const Decimals = 18

// maxBits is the width bound mirroring onchain uint256 arithmetic.
const maxBits = 256

// ErrScalingOverflow reports a scaling result that exceeds 256 bits.
var ErrScalingOverflow = errors.New("scaling overflow: result exceeds 256 bits")

// One is 10^18, the WAD representation of 1.0.
func One() *big.Int {
	return pow10(Decimals)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ScalePriceByDigits converts a value reported with fromDecimals of precision
// to an 18-decimal WAD. Scaling down truncates precision below the 18th
// digit; scaling up fails with ErrScalingOverflow rather than exceeding
// 256 bits.
func ScalePriceByDigits(value *big.Int, fromDecimals uint8) (*big.Int, error) {
	if value == nil {
		return new(big.Int), nil
	}
	d := int(fromDecimals)
	switch {
	case d > Decimals:
		return new(big.Int).Quo(value, pow10(d-Decimals)), nil
	case d < Decimals:
		out := new(big.Int).Mul(value, pow10(Decimals-d))
		if out.BitLen() > maxBits {
			return nil, ErrScalingOverflow
		}
		return out, nil
	default:
		return new(big.Int).Set(value), nil
	}
}

// Mul multiplies two WAD values: a * b / 10^18, truncating. The result is
// bounded to 256 bits like ScalePriceByDigits.
func Mul(a, b *big.Int) (*big.Int, error) {
	out := new(big.Int).Mul(a, b)
	out.Quo(out, One())
	if out.BitLen() > maxBits {
		return nil, ErrScalingOverflow
	}
	return out, nil
}
