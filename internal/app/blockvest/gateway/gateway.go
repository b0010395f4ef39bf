// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

// Package gateway is the only place talking to the remote ledger.
package gateway

import (
	"context"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/insolar/blockvest/internal/app/blockvest"
	"github.com/insolar/blockvest/observability"
)

// Sessions provides write authorization.
type Sessions interface {
	Signer() (blockvest.Signer, error)
}

type Gateway struct {
	log      logrus.FieldLogger
	ledger   blockvest.Ledger
	sessions Sessions
	cache    *closedCache
	metrics  *metrics
	now      func() time.Time
}

type metrics struct {
	reads              prometheus.Counter
	readFailures       prometheus.Counter
	cacheHits          prometheus.Counter
	submissions        prometheus.Counter
	submissionFailures prometheus.Counter
}

func New(
	obs *observability.Observability,
	ledger blockvest.Ledger,
	sessions Sessions,
	cacheSize int,
) (*Gateway, error) {
	cache, err := newClosedCache(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Gateway{
		log:      obs.Log().WithField("component", "gateway"),
		ledger:   ledger,
		sessions: sessions,
		cache:    cache,
		metrics:  makeMetrics(obs),
		now:      time.Now,
	}, nil
}

func makeMetrics(obs *observability.Observability) *metrics {
	return &metrics{
		reads: obs.Counter(prometheus.CounterOpts{
			Name: "blockvest_ledger_reads_total",
			Help: "Number of read queries sent to the ledger.",
		}),
		readFailures: obs.Counter(prometheus.CounterOpts{
			Name: "blockvest_ledger_read_failures_total",
			Help: "Number of ledger read queries that failed.",
		}),
		cacheHits: obs.Counter(prometheus.CounterOpts{
			Name: "blockvest_ledger_cache_hits_total",
			Help: "Number of reads served from the closed projects cache.",
		}),
		submissions: obs.Counter(prometheus.CounterOpts{
			Name: "blockvest_ledger_submissions_total",
			Help: "Number of transactions submitted to the ledger.",
		}),
		submissionFailures: obs.Counter(prometheus.CounterOpts{
			Name: "blockvest_ledger_submission_failures_total",
			Help: "Number of transactions the ledger refused to accept.",
		}),
	}
}

// ListProjectIDs returns ids in ledger assigned order.
func (g *Gateway) ListProjectIDs(ctx context.Context) ([]uint64, error) {
	g.metrics.reads.Inc()
	ids, err := g.ledger.ProjectIDs(ctx)
	if err != nil {
		return nil, g.readFailure(err, "failed to list project ids")
	}
	return ids, nil
}

func (g *Gateway) GetProject(ctx context.Context, id uint64) (*blockvest.Project, error) {
	if p, ok := g.cache.project(id); ok {
		g.metrics.cacheHits.Inc()
		return p, nil
	}

	g.metrics.reads.Inc()
	p, err := g.ledger.Project(ctx, id)
	if err != nil {
		if errors.Is(err, blockvest.ErrNotFound) {
			return nil, errors.Wrapf(blockvest.ErrNotFound, "project %d", id)
		}
		return nil, g.readFailure(err, "failed to get project %d", id)
	}
	g.cache.setProject(p)
	return p, nil
}

// GetContributionAmount returns zero when the account never invested.
func (g *Gateway) GetContributionAmount(ctx context.Context, id uint64, account string) (*big.Int, error) {
	if amount, ok := g.cache.contribution(id, account); ok {
		g.metrics.cacheHits.Inc()
		return amount, nil
	}

	g.metrics.reads.Inc()
	amount, err := g.ledger.Contribution(ctx, id, account)
	if err != nil {
		return nil, g.readFailure(err, "failed to get contribution of %s to project %d", account, id)
	}
	if amount == nil {
		amount = new(big.Int)
	}
	g.cache.setContribution(id, account, amount)
	return amount, nil
}

func (g *Gateway) CreateProject(ctx context.Context, name, details string, target *big.Int, equity int64) (*blockvest.PendingTransaction, error) {
	signer, err := g.sessions.Signer()
	if err != nil {
		return nil, err
	}
	g.metrics.submissions.Inc()
	handle, err := g.ledger.SubmitCreate(ctx, name, details, target, equity, signer)
	if err != nil {
		return nil, g.submissionFailure(err, "create project %q", name)
	}
	return g.pending(handle, blockvest.ActionCreate, 0, signer), nil
}

func (g *Gateway) Invest(ctx context.Context, id uint64, amount *big.Int) (*blockvest.PendingTransaction, error) {
	signer, err := g.sessions.Signer()
	if err != nil {
		return nil, err
	}
	g.metrics.submissions.Inc()
	handle, err := g.ledger.SubmitInvest(ctx, id, amount, signer)
	if err != nil {
		return nil, g.submissionFailure(err, "invest %s into project %d", amount, id)
	}
	return g.pending(handle, blockvest.ActionInvest, id, signer), nil
}

func (g *Gateway) Withdraw(ctx context.Context, id uint64) (*blockvest.PendingTransaction, error) {
	signer, err := g.sessions.Signer()
	if err != nil {
		return nil, err
	}
	g.metrics.submissions.Inc()
	handle, err := g.ledger.SubmitWithdraw(ctx, id, signer)
	if err != nil {
		return nil, g.submissionFailure(err, "withdraw from project %d", id)
	}
	return g.pending(handle, blockvest.ActionWithdraw, id, signer), nil
}

// PollFinality is a single idempotent finality read.
func (g *Gateway) PollFinality(ctx context.Context, handle blockvest.TxHandle) (*blockvest.Finality, error) {
	g.metrics.reads.Inc()
	f, err := g.ledger.PollFinality(ctx, handle)
	if err != nil {
		return nil, g.readFailure(err, "failed to poll transaction %s", handle)
	}
	return f, nil
}

func (g *Gateway) pending(handle blockvest.TxHandle, action blockvest.Action, id uint64, signer blockvest.Signer) *blockvest.PendingTransaction {
	tx := &blockvest.PendingTransaction{
		Handle:      handle,
		Action:      action,
		ProjectID:   id,
		Account:     signer.Account(),
		SubmittedAt: g.now(),
	}
	g.log.WithFields(logrus.Fields{
		"tx":         handle,
		"action":     action,
		"project_id": id,
	}).Info("transaction submitted")
	return tx
}

func (g *Gateway) readFailure(err error, format string, args ...interface{}) error {
	g.metrics.readFailures.Inc()
	wrapped := errors.Wrapf(blockvest.ErrReadFailure, format+": %v", append(args, err)...)
	g.log.Error(wrapped)
	return wrapped
}

func (g *Gateway) submissionFailure(err error, format string, args ...interface{}) error {
	g.metrics.submissionFailures.Inc()
	if errors.Is(err, blockvest.ErrUserRejected) {
		return errors.Wrapf(err, format, args...)
	}
	wrapped := errors.Wrapf(blockvest.ErrSubmissionFailure, format+": %v", append(args, err)...)
	g.log.Error(wrapped)
	return wrapped
}
