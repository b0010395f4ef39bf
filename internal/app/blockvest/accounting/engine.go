// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package accounting

import (
	"context"
	"math/big"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/insolar/blockvest/internal/app/blockvest"
	"github.com/insolar/blockvest/observability"
)

type Gateway interface {
	GetProject(ctx context.Context, id uint64) (*blockvest.Project, error)
	GetContributionAmount(ctx context.Context, id uint64, account string) (*big.Int, error)
	CreateProject(ctx context.Context, name, details string, target *big.Int, equity int64) (*blockvest.PendingTransaction, error)
	Invest(ctx context.Context, id uint64, amount *big.Int) (*blockvest.PendingTransaction, error)
	Withdraw(ctx context.Context, id uint64) (*blockvest.PendingTransaction, error)
}

type Awaiter interface {
	AwaitFinality(ctx context.Context, tx *blockvest.PendingTransaction) (*blockvest.Receipt, error)
}

type Accounts interface {
	Current() (string, bool)
}

// ConfirmedHandle runs after a write submitted through the engine is confirmed.
type ConfirmedHandle func(ctx context.Context, tx *blockvest.PendingTransaction, receipt *blockvest.Receipt)

type Engine struct {
	log         logrus.FieldLogger
	gateway     Gateway
	awaiter     Awaiter
	accounts    Accounts
	concurrency int

	handlesMu sync.RWMutex
	handles   []ConfirmedHandle

	locksMu sync.Mutex
	locks   map[uint64]*projectLock

	rejected prometheus.Counter
}

func NewEngine(
	obs *observability.Observability,
	gateway Gateway,
	awaiter Awaiter,
	accounts Accounts,
	concurrency int,
) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		log:         obs.Log().WithField("component", "accounting"),
		gateway:     gateway,
		awaiter:     awaiter,
		accounts:    accounts,
		concurrency: concurrency,
		locks:       make(map[uint64]*projectLock),
		rejected: obs.Counter(prometheus.CounterOpts{
			Name: "blockvest_validation_rejected_total",
			Help: "Writes rejected locally before submission.",
		}),
	}
}

func (e *Engine) SubscribeOnConfirmed(handle ConfirmedHandle) {
	e.handlesMu.Lock()
	defer e.handlesMu.Unlock()
	e.handles = append(e.handles, handle)
}

// CreateProject validates, submits and waits for the new project to be final.
func (e *Engine) CreateProject(ctx context.Context, name, details, target, equityPercent string) (*blockvest.Receipt, error) {
	input, err := ValidateCreate(name, details, target, equityPercent)
	if err != nil {
		return nil, e.reject(err)
	}

	unlock := e.lock(0)
	defer unlock()

	tx, err := e.gateway.CreateProject(ctx, input.Name, input.Details, input.Target, input.Equity)
	if err != nil {
		return nil, err
	}
	return e.await(ctx, tx)
}

// Invest re-reads the project, checks the amount against it and submits.
func (e *Engine) Invest(ctx context.Context, id uint64, amount string) (*blockvest.Receipt, error) {
	unlock := e.lock(id)
	defer unlock()

	p, err := e.gateway.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	input, err := ValidateInvest(p, amount)
	if err != nil {
		return nil, e.reject(err)
	}

	tx, err := e.gateway.Invest(ctx, input.ProjectID, input.Amount)
	if err != nil {
		return nil, err
	}
	return e.await(ctx, tx)
}

func (e *Engine) Withdraw(ctx context.Context, id uint64) (*blockvest.Receipt, error) {
	account, ok := e.accounts.Current()
	if !ok {
		return nil, blockvest.ErrUnauthorized
	}

	unlock := e.lock(id)
	defer unlock()

	p, err := e.gateway.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateWithdraw(p, account); err != nil {
		return nil, e.reject(err)
	}

	tx, err := e.gateway.Withdraw(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.await(ctx, tx)
}

// Classify splits projects into the ones account owns and the ones it invested in.
func (e *Engine) Classify(ctx context.Context, projects []*blockvest.Project, account string) (*blockvest.AccountView, error) {
	view := blockvest.EmptyAccountView(account)
	if account == "" {
		return view, nil
	}

	amounts := make([]*big.Int, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, p := range projects {
		i, p := i, p
		g.Go(func() error {
			amount, err := e.gateway.GetContributionAmount(gctx, p.ID, account)
			if err != nil {
				return err
			}
			amounts[i] = amount
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrapf(err, "failed to classify projects of %s", account)
	}

	for i, p := range projects {
		if IsOwner(p, account) {
			view.Owned = append(view.Owned, p)
		}
		if amounts[i].Sign() > 0 {
			c := &blockvest.Contribution{ProjectID: p.ID, Investor: account, Amount: amounts[i]}
			view.Invested = append(view.Invested, &blockvest.Investment{
				Project:     p,
				Amount:      amounts[i],
				EquityShare: ComputeEquityShare(c, p),
			})
		}
	}
	return view, nil
}

func (e *Engine) await(ctx context.Context, tx *blockvest.PendingTransaction) (*blockvest.Receipt, error) {
	receipt, err := e.awaiter.AwaitFinality(ctx, tx)
	if err != nil {
		return nil, err
	}

	e.handlesMu.RLock()
	handles := make([]ConfirmedHandle, len(e.handles))
	copy(handles, e.handles)
	e.handlesMu.RUnlock()

	for _, h := range handles {
		h(ctx, tx, receipt)
	}
	return receipt, nil
}

func (e *Engine) reject(err error) error {
	e.rejected.Inc()
	e.log.WithError(err).Info("write rejected before submission")
	return err
}

type projectLock struct {
	mu      sync.Mutex
	holders int
}

// lock serializes writes to one project. Creates share key 0, which no project uses.
// An entry lives while someone holds or waits for it.
func (e *Engine) lock(id uint64) func() {
	e.locksMu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &projectLock{}
		e.locks[id] = l
	}
	l.holders++
	e.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		e.locksMu.Lock()
		defer e.locksMu.Unlock()
		l.holders--
		if l.holders == 0 {
			delete(e.locks, id)
		}
	}
}
