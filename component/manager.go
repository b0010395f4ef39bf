// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package component

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/insolar/blockvest/configuration"
	"github.com/insolar/blockvest/connectivity"
	"github.com/insolar/blockvest/internal/app/api"
	"github.com/insolar/blockvest/internal/app/blockvest"
	"github.com/insolar/blockvest/internal/app/blockvest/accounting"
	"github.com/insolar/blockvest/internal/app/blockvest/ethereum"
	"github.com/insolar/blockvest/internal/app/blockvest/gateway"
	"github.com/insolar/blockvest/internal/app/blockvest/postgres"
	"github.com/insolar/blockvest/internal/app/blockvest/projection"
	"github.com/insolar/blockvest/internal/app/blockvest/session"
	"github.com/insolar/blockvest/internal/app/blockvest/tracker"
	"github.com/insolar/blockvest/observability"
)

type refresher interface {
	Refresh(ctx context.Context) error
	Invalidated() <-chan struct{}
}

type Manager struct {
	stopSignal chan struct{}
	done       chan struct{}

	log   logrus.FieldLogger
	sleep *SleepManager
	store refresher
	start func()
	stop  func()
}

// Prepare connects to the ledger node and wires every component.
func Prepare(ctx context.Context, cfg *configuration.Blockvest, obs *observability.Observability) (*Manager, error) {
	log := obs.Log()
	conn, err := connectivity.Make(ctx, cfg, obs)
	if err != nil {
		return nil, err
	}

	ledger, err := ethereum.NewLedger(log, conn.Eth(), cfg.Ledger.ContractAddress)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	// A nil wallet keeps the service read only.
	var wallet blockvest.Wallet
	if cfg.Wallet.PrivateKey != "" {
		kw, err := ethereum.NewKeyWallet(log, conn.Eth(), cfg.Wallet.PrivateKey)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		wallet = kw
	} else {
		log.Warn("no wallet key configured, writes are unavailable")
	}

	sessions := session.NewManager(log, wallet, cfg.Ledger.ChainID)
	gw, err := gateway.New(obs, ledger, sessions, cfg.Ledger.CacheSize)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	tr := tracker.New(cfg.Ledger, obs, gw)
	engine := accounting.NewEngine(obs, gw, tr, sessions, cfg.Projection.Concurrency)

	var sink projection.Sink
	if conn.PG() != nil {
		sink = postgres.NewProjectStorage(log, conn.PG())
	}
	store := projection.NewStore(obs, gw, engine, sessions, sink, cfg.Projection.Concurrency)
	engine.SubscribeOnConfirmed(store.OnConfirmed)

	router := NewRouter(cfg, obs)
	server := api.NewServer(obs, api.NewBlockvestServer(log, store, sessions, engine))

	start := func() {
		router.Start()
		go func() {
			err := server.Start(cfg.API.Listen)
			if err != http.ErrServerClosed {
				log.Error(errors.Wrapf(err, "api server Start"))
			}
		}()
	}
	return newManager(log, cfg.Projection, store, start, makeStopper(obs, conn, router, server, store, sessions)), nil
}

func newManager(log logrus.FieldLogger, cfg configuration.Projection, store refresher, start, stop func()) *Manager {
	return &Manager{
		stopSignal: make(chan struct{}, 1),
		done:       make(chan struct{}),
		log:        log,
		sleep:      NewSleepManager(cfg),
		store:      store,
		start:      start,
		stop:       stop,
	}
}

func (m *Manager) Start() {
	go func() {
		defer close(m.done)
		m.start()
		defer m.stop()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-m.stopSignal:
				cancel()
			case <-ctx.Done():
			}
		}()

		for {
			sleepTime := m.run(ctx)
			if !m.wait(ctx, sleepTime) {
				return
			}
		}
	}()
}

// Stop ends the loop and waits until every component is stopped.
func (m *Manager) Stop() {
	select {
	case m.stopSignal <- struct{}{}:
	default:
	}
	<-m.done
}

func (m *Manager) run(ctx context.Context) time.Duration {
	startedAt := time.Now()
	err := m.store.Refresh(ctx)
	if err != nil && ctx.Err() == nil {
		m.log.Error(errors.Wrap(err, "failed to refresh projection"))
	}
	return m.sleep.Count(err != nil, time.Since(startedAt))
}

// wait returns false when the loop has to stop.
func (m *Manager) wait(ctx context.Context, sleepTime time.Duration) bool {
	m.log.Debug("Sleep: ", sleepTime)
	timer := time.NewTimer(sleepTime)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-m.store.Invalidated():
		m.log.Debug("projection invalidated, refreshing early")
		return true
	case <-timer.C:
		return true
	}
}

// Shutdown bound for the http servers.
const shutdownTimeout = 5 * time.Second
