// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

// Package tracker waits for submitted transactions to become final.
package tracker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/insolar/blockvest/configuration"
	"github.com/insolar/blockvest/internal/app/blockvest"
	"github.com/insolar/blockvest/internal/pkg/cycle"
	"github.com/insolar/blockvest/observability"
)

type FinalityPoller interface {
	PollFinality(ctx context.Context, handle blockvest.TxHandle) (*blockvest.Finality, error)
}

type Tracker struct {
	log     logrus.FieldLogger
	poller  FinalityPoller
	timeout time.Duration
	poll    time.Duration
	backoff cycle.Backoff
	retries cycle.Limit

	pending   prometheus.Gauge
	confirmed prometheus.Counter
	failed    prometheus.Counter
	timedOut  prometheus.Counter
}

// New uses the ledger's own timeout as the bound of a single wait.
func New(cfg configuration.Ledger, obs *observability.Observability, poller FinalityPoller) *Tracker {
	return &Tracker{
		log:     obs.Log().WithField("component", "tracker"),
		poller:  poller,
		timeout: cfg.Timeout,
		poll:    cfg.PollInterval,
		backoff: cycle.Backoff{Interval: cfg.PollInterval, Max: cfg.MaxBackoff},
		retries: cfg.Attempts,
		pending: obs.Gauge(prometheus.GaugeOpts{
			Name: "blockvest_transactions_pending",
			Help: "Transactions waiting for finality.",
		}),
		confirmed: obs.Counter(prometheus.CounterOpts{
			Name: "blockvest_transactions_confirmed_total",
			Help: "Transactions finalized as confirmed.",
		}),
		failed: obs.Counter(prometheus.CounterOpts{
			Name: "blockvest_transactions_failed_total",
			Help: "Transactions finalized as failed.",
		}),
		timedOut: obs.Counter(prometheus.CounterOpts{
			Name: "blockvest_transactions_timeout_total",
			Help: "Finality waits that ran out of time.",
		}),
	}
}

// AwaitFinality blocks until the transaction is final, the bound elapses or ctx is
// cancelled. Only the finality read is retried; the transaction is never resubmitted,
// and abandoning the wait leaves it on the ledger.
func (t *Tracker) AwaitFinality(ctx context.Context, tx *blockvest.PendingTransaction) (*blockvest.Receipt, error) {
	log := t.log.WithField("tx", tx.Handle)
	t.pending.Inc()
	defer t.pending.Dec()

	waitCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	for {
		var finality *blockvest.Finality
		err := cycle.UntilError(waitCtx, func() error {
			f, err := t.poller.PollFinality(waitCtx, tx.Handle)
			if err != nil {
				return err
			}
			if f == nil {
				return errors.Errorf("no finality observed for %s", tx.Handle)
			}
			finality = f
			return nil
		}, t.backoff, t.retries, log)
		if err != nil {
			if waitErr := t.interrupted(ctx, waitCtx, tx); waitErr != nil {
				return nil, waitErr
			}
			return nil, errors.Wrapf(blockvest.ErrReadFailure, "failed to observe finality of %s: %v", tx.Handle, err)
		}

		switch finality.State {
		case blockvest.FinalityConfirmed:
			t.confirmed.Inc()
			log.WithField("block", blockNumber(finality)).Info("transaction confirmed")
			return receipt(tx, finality), nil
		case blockvest.FinalityFailed:
			t.failed.Inc()
			log.WithField("reason", finality.Reason).Warn("transaction failed")
			return nil, &blockvest.TransactionFailedError{Handle: tx.Handle, Reason: finality.Reason}
		}

		log.Debug("transaction is pending")
		timer := time.NewTimer(t.poll)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return nil, t.interrupted(ctx, waitCtx, tx)
		case <-timer.C:
		}
	}
}

// interrupted tells a caller cancellation apart from the finality bound.
func (t *Tracker) interrupted(ctx, waitCtx context.Context, tx *blockvest.PendingTransaction) error {
	if ctx.Err() != nil {
		t.log.WithField("tx", tx.Handle).Info("finality wait abandoned")
		return errors.Wrapf(ctx.Err(), "stopped waiting for %s", tx.Handle)
	}
	if waitCtx.Err() != nil {
		t.timedOut.Inc()
		return errors.Wrapf(blockvest.ErrTransactionTimeout, "%s not final after %s", tx.Handle, t.timeout)
	}
	return nil
}

func receipt(tx *blockvest.PendingTransaction, f *blockvest.Finality) *blockvest.Receipt {
	if f.Receipt != nil {
		r := *f.Receipt
		r.Status = blockvest.FinalityConfirmed
		return &r
	}
	return &blockvest.Receipt{Handle: tx.Handle, Status: blockvest.FinalityConfirmed}
}

func blockNumber(f *blockvest.Finality) uint64 {
	if f.Receipt == nil {
		return 0
	}
	return f.Receipt.BlockNumber
}
