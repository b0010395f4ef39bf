// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package accounting

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/insolar/blockvest/internal/app/blockvest"
)

func TestComputeProgress(t *testing.T) {
	t.Run("quarter funded", func(t *testing.T) {
		p := &blockvest.Project{Target: eth("10"), TotalInvested: eth("2.5")}
		assert.Equal(t, "25.00", FormatPercentage(ComputeProgress(p)))
	})

	t.Run("zero target", func(t *testing.T) {
		p := &blockvest.Project{Target: big.NewInt(0), TotalInvested: big.NewInt(0)}
		assert.True(t, ComputeProgress(p).IsZero())
	})

	t.Run("truncates", func(t *testing.T) {
		p := &blockvest.Project{Target: big.NewInt(3), TotalInvested: big.NewInt(1)}
		assert.Equal(t, "33.33", FormatPercentage(ComputeProgress(p)))
		p = &blockvest.Project{Target: big.NewInt(3), TotalInvested: big.NewInt(2)}
		assert.Equal(t, "66.66", FormatPercentage(ComputeProgress(p)))
	})

	t.Run("bounded", func(t *testing.T) {
		hundred := decimal.NewFromInt(100)
		for _, target := range []int64{1, 7, 10, 999983} {
			for _, invested := range []int64{0, 1, target / 2, target} {
				p := &blockvest.Project{Target: big.NewInt(target), TotalInvested: big.NewInt(invested)}
				progress := ComputeProgress(p)
				assert.False(t, progress.IsNegative())
				assert.True(t, progress.LessThanOrEqual(hundred))
			}
		}
		full := &blockvest.Project{Target: big.NewInt(7), TotalInvested: big.NewInt(7)}
		assert.Equal(t, "100.00", FormatPercentage(ComputeProgress(full)))
	})
}

func TestComputeEquityShare(t *testing.T) {
	t.Run("half of target at twenty percent", func(t *testing.T) {
		p := &blockvest.Project{Target: big.NewInt(10), Equity: 2000}
		c := &blockvest.Contribution{Amount: big.NewInt(5)}
		assert.Equal(t, "10.00", FormatPercentage(ComputeEquityShare(c, p)))
	})

	t.Run("in base units", func(t *testing.T) {
		p := &blockvest.Project{Target: eth("10"), Equity: 2000}
		c := &blockvest.Contribution{Amount: eth("2.5")}
		assert.Equal(t, "5.00", FormatPercentage(ComputeEquityShare(c, p)))
	})

	t.Run("zero", func(t *testing.T) {
		p := &blockvest.Project{Target: big.NewInt(0), Equity: 2000}
		assert.True(t, ComputeEquityShare(&blockvest.Contribution{Amount: big.NewInt(5)}, p).IsZero())
		p = &blockvest.Project{Target: big.NewInt(10), Equity: 2000}
		assert.True(t, ComputeEquityShare(&blockvest.Contribution{Amount: big.NewInt(0)}, p).IsZero())
	})

	t.Run("multiplies before dividing", func(t *testing.T) {
		p := &blockvest.Project{Target: big.NewInt(3), Equity: 1}
		c := &blockvest.Contribution{Amount: big.NewInt(1)}
		// 1 * 1 * 100 / 3 = 33 -> 0.0033%
		assert.Equal(t, "0.0033", ComputeEquityShare(c, p).String())
	})
}
