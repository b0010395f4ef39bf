// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

// Package projection keeps the latest snapshot of the ledger's projects and the
// current account's view of it.
package projection

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/insolar/blockvest/internal/app/blockvest"
	"github.com/insolar/blockvest/internal/app/blockvest/session"
	"github.com/insolar/blockvest/observability"
)

type ProjectReader interface {
	ListProjectIDs(ctx context.Context) ([]uint64, error)
	GetProject(ctx context.Context, id uint64) (*blockvest.Project, error)
}

type Classifier interface {
	Classify(ctx context.Context, projects []*blockvest.Project, account string) (*blockvest.AccountView, error)
}

type Accounts interface {
	Current() (string, bool)
	Subscribe(handle session.ChangeHandle) (unsubscribe func())
}

// Sink receives every new snapshot, e.g. to persist it.
type Sink interface {
	Replace(ctx context.Context, projects []*blockvest.Project) error
}

// Snapshot is immutable once published.
type Snapshot struct {
	Projects  []*blockvest.Project
	FetchedAt time.Time
}

type Store struct {
	log         logrus.FieldLogger
	reader      ProjectReader
	classifier  Classifier
	accounts    Accounts
	sink        Sink
	concurrency int

	snapshot atomic.Pointer[Snapshot]
	view     atomic.Pointer[blockvest.AccountView]

	// started numbers refreshes in the order they begin. publishMu guards published
	// so a refresh never replaces the snapshot of one that began after it.
	started   atomic.Uint64
	publishMu sync.Mutex
	published uint64

	invalidated chan struct{}
	detach      func()

	refreshes    prometheus.Counter
	failures     prometheus.Counter
	sinkFailures prometheus.Counter
	projects     prometheus.Gauge
}

func NewStore(
	obs *observability.Observability,
	reader ProjectReader,
	classifier Classifier,
	accounts Accounts,
	sink Sink,
	concurrency int,
) *Store {
	if concurrency < 1 {
		concurrency = 1
	}
	s := &Store{
		log:         obs.Log().WithField("component", "projection"),
		reader:      reader,
		classifier:  classifier,
		accounts:    accounts,
		sink:        sink,
		concurrency: concurrency,
		invalidated: make(chan struct{}, 1),
		refreshes: obs.Counter(prometheus.CounterOpts{
			Name: "blockvest_projection_refresh_total",
			Help: "Number of successful projection refreshes.",
		}),
		failures: obs.Counter(prometheus.CounterOpts{
			Name: "blockvest_projection_refresh_failures_total",
			Help: "Number of failed projection refreshes.",
		}),
		sinkFailures: obs.Counter(prometheus.CounterOpts{
			Name: "blockvest_projection_sink_failures_total",
			Help: "Number of snapshots the sink failed to store.",
		}),
		projects: obs.Gauge(prometheus.GaugeOpts{
			Name: "blockvest_projection_projects",
			Help: "Number of projects in the current snapshot.",
		}),
	}
	s.snapshot.Store(&Snapshot{Projects: []*blockvest.Project{}})
	s.view.Store(blockvest.EmptyAccountView(""))
	s.detach = accounts.Subscribe(s.onAccountChanged)
	return s
}

// Close stops listening to account changes.
func (s *Store) Close() {
	s.detach()
}

// Invalidated signals that the store needs a refresh.
func (s *Store) Invalidated() <-chan struct{} {
	return s.invalidated
}

// RefreshAll fetches every project and replaces the snapshot wholesale. On error
// the previous snapshot stays in place. A refresh that finishes after a newer one
// has published returns the newer snapshot instead of its own.
func (s *Store) RefreshAll(ctx context.Context) ([]*blockvest.Project, error) {
	gen := s.started.Add(1)
	ids, err := s.reader.ListProjectIDs(ctx)
	if err != nil {
		s.failures.Inc()
		return nil, err
	}

	projects := make([]*blockvest.Project, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			p, err := s.reader.GetProject(gctx, id)
			if err != nil {
				return err
			}
			projects[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.failures.Inc()
		return nil, errors.Wrap(err, "failed to refresh projects")
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if gen < s.published {
		s.log.WithField("projects", len(projects)).Debug("newer snapshot already published, refresh dropped")
		return copyProjects(s.snapshot.Load().Projects), nil
	}
	s.published = gen

	s.snapshot.Store(&Snapshot{Projects: projects, FetchedAt: time.Now()})
	s.refreshes.Inc()
	s.projects.Set(float64(len(projects)))
	s.log.WithField("projects", len(projects)).Debug("snapshot replaced")

	if s.sink != nil {
		if err := s.sink.Replace(ctx, projects); err != nil {
			s.sinkFailures.Inc()
			s.log.Error(errors.Wrap(err, "failed to store snapshot"))
		}
	}
	return copyProjects(projects), nil
}

// RefreshAccountView classifies the latest snapshot for account. An empty account
// gives an empty view.
func (s *Store) RefreshAccountView(ctx context.Context, account string) (*blockvest.AccountView, error) {
	before := s.view.Load()
	view := blockvest.EmptyAccountView(account)
	if account != "" {
		var err error
		view, err = s.classifier.Classify(ctx, s.snapshot.Load().Projects, account)
		if err != nil {
			s.failures.Inc()
			return nil, err
		}
	}

	// the account may have changed while classifying. A change after this check
	// replaces the view first, so the swap fails.
	if current, _ := s.accounts.Current(); current != account || !s.view.CompareAndSwap(before, view) {
		s.log.WithField("account", account).Debug("account changed during refresh, view dropped")
		return view, nil
	}
	return view, nil
}

// Refresh runs RefreshAll and then RefreshAccountView for the current account.
func (s *Store) Refresh(ctx context.Context) error {
	if _, err := s.RefreshAll(ctx); err != nil {
		return err
	}
	account, _ := s.accounts.Current()
	_, err := s.RefreshAccountView(ctx, account)
	return err
}

// OnConfirmed refreshes after a confirmed write, so the new state is observed
// before the writer returns.
func (s *Store) OnConfirmed(ctx context.Context, tx *blockvest.PendingTransaction, receipt *blockvest.Receipt) {
	log := s.log.WithField("tx", tx.Handle)
	if err := s.Refresh(ctx); err != nil {
		log.Error(errors.Wrap(err, "failed to refresh after confirmed transaction"))
		s.invalidate()
		return
	}
	log.Debug("refreshed after confirmed transaction")
}

func (s *Store) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

func (s *Store) Projects() []*blockvest.Project {
	return copyProjects(s.snapshot.Load().Projects)
}

func (s *Store) Project(id uint64) (*blockvest.Project, bool) {
	for _, p := range s.snapshot.Load().Projects {
		if p.ID == id {
			return p.Copy(), true
		}
	}
	return nil, false
}

func (s *Store) AccountView() *blockvest.AccountView {
	return s.view.Load()
}

func (s *Store) onAccountChanged(change session.Change) {
	s.view.Store(blockvest.EmptyAccountView(change.Current))
	s.log.WithField("account", change.Current).Info("account changed, view cleared")
	s.invalidate()
}

func (s *Store) invalidate() {
	select {
	case s.invalidated <- struct{}{}:
	default:
	}
}

func copyProjects(projects []*blockvest.Project) []*blockvest.Project {
	out := make([]*blockvest.Project, len(projects))
	for i, p := range projects {
		out[i] = p.Copy()
	}
	return out
}

// Remaining capacity summed over open projects.
func (s *Snapshot) OpenCapacity() *big.Int {
	total := new(big.Int)
	for _, p := range s.Projects {
		if !p.IsClosed {
			total.Add(total, p.Remaining())
		}
	}
	return total
}
