// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package accounting

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/insolar/blockvest/internal/app/blockvest"
	"github.com/insolar/blockvest/internal/pkg/quantity"
)

// ComputeProgress is totalInvested * 10000 / target, truncated, read as a
// percentage with two decimals. Zero target gives zero.
func ComputeProgress(p *blockvest.Project) decimal.Decimal {
	if p.Target == nil || p.Target.Sign() == 0 {
		return decimal.Zero
	}
	bp := quantity.Ratio(p.TotalInvested, p.Target, quantity.MaxBasisPoints)
	return decimal.NewFromBigInt(bp, -2)
}

// ComputeEquityShare is the investor's slice of the offered equity:
// amount * equity * 100 / target, truncated, divided by 10000.
func ComputeEquityShare(c *blockvest.Contribution, p *blockvest.Project) decimal.Decimal {
	if c.Amount == nil || c.Amount.Sign() == 0 || p.Target == nil || p.Target.Sign() == 0 {
		return decimal.Zero
	}
	weighted := new(big.Int).Mul(c.Amount, big.NewInt(p.Equity))
	scaled := quantity.Ratio(weighted, p.Target, 100)
	return decimal.NewFromBigInt(scaled, -4)
}

// FormatPercentage renders a computed percentage for display.
func FormatPercentage(d decimal.Decimal) string {
	return d.StringFixed(2)
}
