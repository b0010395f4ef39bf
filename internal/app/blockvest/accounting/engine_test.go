// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package accounting

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insolar/blockvest/configuration"
	"github.com/insolar/blockvest/internal/app/blockvest"
	"github.com/insolar/blockvest/internal/app/blockvest/gateway"
	"github.com/insolar/blockvest/internal/app/blockvest/tracker"
	"github.com/insolar/blockvest/internal/testutils"
	"github.com/insolar/blockvest/observability"
)

type accounts struct {
	account string
}

func (a *accounts) Current() (string, bool) {
	return a.account, a.account != ""
}

func (a *accounts) Signer() (blockvest.Signer, error) {
	if a.account == "" {
		return nil, blockvest.ErrUnauthorized
	}
	return testutils.Signer(a.account), nil
}

type fixture struct {
	ledger   *testutils.Ledger
	accounts *accounts
	engine   *Engine
}

func newFixture(t *testing.T, account string) *fixture {
	obs := observability.Make(configuration.Log{Level: "error"})
	ledger := testutils.NewLedger()
	acc := &accounts{account: account}
	gw, err := gateway.New(obs, ledger, acc, 16)
	require.NoError(t, err)
	tr := tracker.New(configuration.Ledger{
		Timeout:      time.Second,
		PollInterval: time.Millisecond,
		Attempts:     3,
		MaxBackoff:   time.Millisecond,
	}, obs, gw)
	return &fixture{
		ledger:   ledger,
		accounts: acc,
		engine:   NewEngine(obs, gw, tr, acc, 4),
	}
}

func TestEngine_CreateProject(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmed and published", func(t *testing.T) {
		f := newFixture(t, "0xOwner")
		var published []*blockvest.PendingTransaction
		f.engine.SubscribeOnConfirmed(func(ctx context.Context, tx *blockvest.PendingTransaction, r *blockvest.Receipt) {
			published = append(published, tx)
		})

		receipt, err := f.engine.CreateProject(ctx, "Solar", "panels", "10", "20")
		require.NoError(t, err)
		assert.Equal(t, blockvest.FinalityConfirmed, receipt.Status)
		require.Len(t, published, 1)
		assert.Equal(t, blockvest.ActionCreate, published[0].Action)

		p, err := f.ledger.Project(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "0xOwner", p.Owner)
		assert.Equal(t, int64(2000), p.Equity)
		assert.Equal(t, eth("10"), p.Target)
	})

	t.Run("no session", func(t *testing.T) {
		f := newFixture(t, "")
		_, err := f.engine.CreateProject(ctx, "Solar", "panels", "10", "20")
		assert.True(t, errors.Is(err, blockvest.ErrUnauthorized))
		assert.Equal(t, 0, f.ledger.Submits)
	})

	t.Run("validation never reaches the ledger", func(t *testing.T) {
		f := newFixture(t, "0xOwner")
		_, err := f.engine.CreateProject(ctx, "Solar", "panels", "10", "0")
		assert.True(t, blockvest.IsValidation(err, blockvest.InvalidEquity))
		assert.Equal(t, 0, f.ledger.Submits)
	})

	t.Run("failed transaction is not published", func(t *testing.T) {
		f := newFixture(t, "0xOwner")
		f.ledger.FailNext = "out of gas"
		published := 0
		f.engine.SubscribeOnConfirmed(func(context.Context, *blockvest.PendingTransaction, *blockvest.Receipt) {
			published++
		})

		_, err := f.engine.CreateProject(ctx, "Solar", "panels", "10", "20")
		var failed *blockvest.TransactionFailedError
		require.True(t, errors.As(err, &failed))
		assert.Equal(t, "out of gas", failed.Reason)
		assert.Equal(t, 0, published)
	})
}

func TestEngine_Invest(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		f := newFixture(t, "0xInvestor")
		f.ledger.AddProject(&blockvest.Project{Owner: "0xOwner", Target: eth("10"), Equity: 2000, TotalInvested: eth("2.5")})

		_, err := f.engine.Invest(ctx, 1, "2.5")
		require.NoError(t, err)

		p, err := f.ledger.Project(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, eth("5"), p.TotalInvested)
		amount, err := f.ledger.Contribution(ctx, 1, "0xinvestor")
		require.NoError(t, err)
		assert.Equal(t, eth("2.5"), amount)
	})

	t.Run("exceeds remaining capacity against fresh state", func(t *testing.T) {
		f := newFixture(t, "0xInvestor")
		f.ledger.AddProject(&blockvest.Project{Owner: "0xOwner", Target: big.NewInt(10), Equity: 2000, TotalInvested: big.NewInt(5)})

		_, err := f.engine.Invest(ctx, 1, "0.000000000000000008")
		var verr *blockvest.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, blockvest.ExceedsRemainingCapacity, verr.Code)
		assert.Equal(t, "5", verr.Max.String())
		assert.Equal(t, 0, f.ledger.Submits)
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t, "0xInvestor")
		_, err := f.engine.Invest(ctx, 9, "1")
		assert.True(t, errors.Is(err, blockvest.ErrNotFound))
	})
}

func TestEngine_Withdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("owner", func(t *testing.T) {
		f := newFixture(t, "0xowner")
		f.ledger.AddProject(&blockvest.Project{Owner: "0xOWNER", Target: big.NewInt(10), Equity: 2000, TotalInvested: big.NewInt(10)})
		_, err := f.engine.Withdraw(ctx, 1)
		require.NoError(t, err)
	})

	t.Run("not owner is not submitted", func(t *testing.T) {
		f := newFixture(t, "0xStranger")
		f.ledger.AddProject(&blockvest.Project{Owner: "0xOwner", Target: big.NewInt(10), Equity: 2000, TotalInvested: big.NewInt(10)})
		_, err := f.engine.Withdraw(ctx, 1)
		assert.True(t, blockvest.IsValidation(err, blockvest.NotOwner))
		assert.Equal(t, 0, f.ledger.Submits)
	})

	t.Run("no session", func(t *testing.T) {
		f := newFixture(t, "")
		_, err := f.engine.Withdraw(ctx, 1)
		assert.True(t, errors.Is(err, blockvest.ErrUnauthorized))
	})
}

func TestEngine_Classify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	owned := f.ledger.AddProject(&blockvest.Project{Owner: "0xABC", Target: big.NewInt(10), Equity: 2000, TotalInvested: big.NewInt(0)})
	invested := f.ledger.AddProject(&blockvest.Project{Owner: "0xOther", Target: big.NewInt(10), Equity: 2000, TotalInvested: big.NewInt(5)})
	other := f.ledger.AddProject(&blockvest.Project{Owner: "0xOther", Target: big.NewInt(10), Equity: 2000, TotalInvested: big.NewInt(0)})
	f.ledger.SetContribution(invested.ID, "0xabc", big.NewInt(5))

	projects := []*blockvest.Project{owned, invested, other}
	view, err := f.engine.Classify(ctx, projects, "0xabc")
	require.NoError(t, err)

	require.Len(t, view.Owned, 1)
	assert.Equal(t, owned.ID, view.Owned[0].ID)
	require.Len(t, view.Invested, 1)
	assert.Equal(t, invested.ID, view.Invested[0].Project.ID)
	assert.Equal(t, "5", view.Invested[0].Amount.String())
	assert.Equal(t, "10.00", FormatPercentage(view.Invested[0].EquityShare))

	empty, err := f.engine.Classify(ctx, projects, "")
	require.NoError(t, err)
	assert.Empty(t, empty.Owned)
	assert.Empty(t, empty.Invested)

	f.ledger.ReadErr = errors.New("boom")
	_, err = f.engine.Classify(ctx, projects, "0xabc")
	assert.True(t, errors.Is(err, blockvest.ErrReadFailure))
}

func TestEngine_ProjectLocksAreReleased(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "0xInvestor")
	f.ledger.AddProject(&blockvest.Project{Owner: "0xOwner", Target: eth("10"), Equity: 2000, TotalInvested: eth("0")})

	_, err := f.engine.Invest(ctx, 1, "1")
	require.NoError(t, err)
	_, err = f.engine.Invest(ctx, 7, "1")
	assert.True(t, errors.Is(err, blockvest.ErrNotFound))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			unlock := f.engine.lock(id)
			unlock()
		}(uint64(i % 4))
	}
	wg.Wait()

	f.engine.locksMu.Lock()
	defer f.engine.locksMu.Unlock()
	assert.Empty(t, f.engine.locks)
}
