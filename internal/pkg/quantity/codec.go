// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

// Package quantity converts between human-entered decimal strings and the ledger's
// integer representations: 18-decimal base units and basis points.
package quantity

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	// Decimals is the number of fractional digits of one whole ledger unit.
	Decimals = 18
	// MaxBasisPoints is 100%.
	MaxBasisPoints = 10000
)

var (
	ErrMalformedQuantity = errors.New("malformed quantity")
	ErrOutOfRange        = errors.New("value out of range")
)

var numeric = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)

var (
	hundred        = decimal.NewFromInt(100)
	maxPercentage  = decimal.NewFromInt(100)
	basisPointsExp = int32(-2)
)

// ToBaseUnits parses an amount expressed in whole units into exact base units.
// Values with more than Decimals fractional digits are rejected, never truncated.
func ToBaseUnits(s string) (*big.Int, error) {
	d, err := parse(s)
	if err != nil {
		return nil, err
	}
	shifted := d.Shift(Decimals)
	if !shifted.IsInteger() {
		return nil, errors.Wrapf(ErrMalformedQuantity, "%q has more than %d fractional digits", s, Decimals)
	}
	return shifted.BigInt(), nil
}

// ToDisplayString renders base units as a canonical decimal string in whole units.
func ToDisplayString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -Decimals).String()
}

// PercentageToBasisPoints converts a percentage in (0, 100] into basis points,
// rounding to the nearest one.
func PercentageToBasisPoints(s string) (int64, error) {
	d, err := parse(s)
	if err != nil {
		return 0, err
	}
	if !d.IsPositive() || d.GreaterThan(maxPercentage) {
		return 0, errors.Wrapf(ErrOutOfRange, "percentage %s is not in (0, 100]", d.String())
	}
	bp := d.Mul(hundred).Round(0).IntPart()
	if bp <= 0 {
		return 0, errors.Wrapf(ErrOutOfRange, "percentage %s rounds to zero basis points", d.String())
	}
	return bp, nil
}

// BasisPointsToPercentageString renders basis points as a percentage with two decimals.
func BasisPointsToPercentageString(bp int64) string {
	return decimal.New(bp, basisPointsExp).StringFixed(2)
}

// Ratio returns numerator * scale / denominator using truncating integer division.
// Zero denominator gives zero.
func Ratio(numerator, denominator *big.Int, scale int64) *big.Int {
	if numerator == nil || denominator == nil || denominator.Sign() == 0 {
		return new(big.Int)
	}
	n := new(big.Int).Mul(numerator, big.NewInt(scale))
	return n.Quo(n, denominator)
}

func parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if !numeric.MatchString(s) {
		return decimal.Zero, errors.Wrapf(ErrMalformedQuantity, "%q is not a decimal number", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrMalformedQuantity, "failed to parse %q: %v", s, err)
	}
	return d, nil
}
