// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package projection

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
	"github.com/insolar/blockvest/internal/app/blockvest/accounting"
	"github.com/insolar/blockvest/internal/app/blockvest/gateway"
	"github.com/insolar/blockvest/internal/app/blockvest/session"
	"github.com/insolar/blockvest/internal/app/blockvest/tracker"
	"github.com/insolar/blockvest/internal/testutils"
	"github.com/insolar/blockvest/observability"
)

const chainID = 31337

type sink struct {
	mu    sync.Mutex
	err   error
	saved [][]*blockvest.Project
}

func (s *sink) Replace(ctx context.Context, projects []*blockvest.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, projects)
	return nil
}

type fixture struct {
	obs      *observability.Observability
	ledger   *testutils.Ledger
	gateway  *gateway.Gateway
	wallet   *testutils.Wallet
	sessions *session.Manager
	engine   *accounting.Engine
	sink     *sink
	store    *Store
}

func newFixture(t *testing.T) *fixture {
	obs := observability.Make(configuration.Log{Level: "error"})
	ledger := testutils.NewLedger()
	wallet := testutils.NewWallet(chainID, "0xAlice")
	sessions := session.NewManager(obs.Log(), wallet, chainID)
	gw, err := gateway.New(obs, ledger, sessions, 16)
	require.NoError(t, err)
	tr := tracker.New(configuration.Ledger{
		Timeout:      time.Second,
		PollInterval: time.Millisecond,
		Attempts:     3,
		MaxBackoff:   time.Millisecond,
	}, obs, gw)
	engine := accounting.NewEngine(obs, gw, tr, sessions, 4)
	s := &sink{}
	store := NewStore(obs, gw, engine, sessions, s, 4)
	engine.SubscribeOnConfirmed(store.OnConfirmed)
	t.Cleanup(func() {
		store.Close()
		sessions.Close()
	})
	return &fixture{obs: obs, ledger: ledger, gateway: gw, wallet: wallet, sessions: sessions, engine: engine, sink: s, store: store}
}

func eth(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(1e18))
}

func TestStore_RefreshAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ledger.AddProject(&blockvest.Project{Owner: "0xAlice", Name: "A", Target: eth(10), Equity: 1000, TotalInvested: eth(2)})
	f.ledger.AddProject(&blockvest.Project{Owner: "0xBob", Name: "B", Target: eth(5), Equity: 500, TotalInvested: eth(5), IsClosed: true})

	assert.Empty(t, f.store.Projects())

	projects, err := f.store.RefreshAll(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "A", projects[0].Name)
	assert.Equal(t, "B", projects[1].Name)

	p, ok := f.store.Project(2)
	require.True(t, ok)
	assert.True(t, p.IsClosed)
	_, ok = f.store.Project(3)
	assert.False(t, ok)

	assert.Equal(t, eth(8), f.store.Snapshot().OpenCapacity())
	require.Len(t, f.sink.saved, 1)
	assert.Len(t, f.sink.saved[0], 2)
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ledger.AddProject(&blockvest.Project{Owner: "0xAlice", Name: "A", Target: eth(10), TotalInvested: eth(1)})
	_, err := f.store.RefreshAll(ctx)
	require.NoError(t, err)

	projects := f.store.Projects()
	projects[0].TotalInvested.SetInt64(0)
	projects[0].Name = "changed"

	p, _ := f.store.Project(1)
	assert.Equal(t, "A", p.Name)
	assert.Equal(t, eth(1), p.TotalInvested)
}

func TestStore_FailedRefreshKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ledger.AddProject(&blockvest.Project{Owner: "0xAlice", Name: "A", Target: eth(10), TotalInvested: eth(1)})
	_, err := f.store.RefreshAll(ctx)
	require.NoError(t, err)
	before := f.store.Snapshot()

	f.ledger.ReadErr = errors.New("node is down")
	_, err = f.store.RefreshAll(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, blockvest.ErrReadFailure))
	assert.Same(t, before, f.store.Snapshot())
}

func TestStore_SinkFailureDoesNotFailRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ledger.AddProject(&blockvest.Project{Owner: "0xAlice", Name: "A", Target: eth(10), TotalInvested: eth(1)})
	f.sink.err = errors.New("db is down")

	projects, err := f.store.RefreshAll(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 1)
	assert.Len(t, f.store.Projects(), 1)
}

func TestStore_AccountView(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ledger.AddProject(&blockvest.Project{Owner: "0xAlice", Name: "Own", Target: eth(10), Equity: 1000, TotalInvested: new(big.Int)})
	f.ledger.AddProject(&blockvest.Project{Owner: "0xBob", Name: "Other", Target: eth(10), Equity: 2000, TotalInvested: eth(5)})
	f.ledger.SetContribution(2, "0xalice", eth(5))

	t.Run("empty without session", func(t *testing.T) {
		require.NoError(t, f.store.Refresh(ctx))
		view := f.store.AccountView()
		assert.Equal(t, "", view.Account)
		assert.Empty(t, view.Owned)
		assert.Empty(t, view.Invested)
	})

	t.Run("classified for connected account", func(t *testing.T) {
		_, err := f.sessions.Connect(ctx)
		require.NoError(t, err)
		require.NoError(t, f.store.Refresh(ctx))

		view := f.store.AccountView()
		assert.Equal(t, "0xAlice", view.Account)
		require.Len(t, view.Owned, 1)
		assert.Equal(t, "Own", view.Owned[0].Name)
		require.Len(t, view.Invested, 1)
		assert.Equal(t, eth(5), view.Invested[0].Amount)
		assert.Equal(t, "10", view.Invested[0].EquityShare.String())
	})
}

func TestStore_SessionChangeClearsView(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ledger.AddProject(&blockvest.Project{Owner: "0xAlice", Name: "Own", Target: eth(10), TotalInvested: new(big.Int)})
	_, err := f.sessions.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, f.store.Refresh(ctx))
	require.Len(t, f.store.AccountView().Owned, 1)

	f.wallet.Emit("0xCarol")

	view := f.store.AccountView()
	assert.Equal(t, "0xCarol", view.Account)
	assert.Empty(t, view.Owned)
	select {
	case <-f.store.Invalidated():
	default:
		t.Fatal("store was not invalidated")
	}

	f.wallet.Emit()
	assert.Equal(t, "", f.store.AccountView().Account)
}

func TestStore_ConfirmedWriteIsObserved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ledger.AddProject(&blockvest.Project{Owner: "0xBob", Name: "B", Target: eth(10), Equity: 1000, TotalInvested: new(big.Int)})
	_, err := f.sessions.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, f.store.Refresh(ctx))

	_, err = f.engine.Invest(ctx, 1, "4")
	require.NoError(t, err)

	p, ok := f.store.Project(1)
	require.True(t, ok)
	assert.Equal(t, eth(4), p.TotalInvested)
	require.Len(t, f.store.AccountView().Invested, 1)

	_, err = f.engine.CreateProject(ctx, "New", "details", "1.5", "12.5")
	require.NoError(t, err)
	require.Len(t, f.store.Projects(), 2)
	assert.Len(t, f.store.AccountView().Owned, 1)
}

func TestStore_FailedWriteLeavesSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ledger.AddProject(&blockvest.Project{Owner: "0xBob", Name: "B", Target: eth(10), TotalInvested: new(big.Int)})
	_, err := f.sessions.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, f.store.Refresh(ctx))
	before := f.store.Snapshot()

	f.ledger.FailNext = "execution reverted"
	_, err = f.engine.Invest(ctx, 1, "4")
	var failed *blockvest.TransactionFailedError
	require.True(t, errors.As(err, &failed))

	assert.Same(t, before, f.store.Snapshot())
}

func TestStore_ConcurrentReadsSeeWholeSnapshots(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 8; i++ {
		f.ledger.AddProject(&blockvest.Project{Owner: "0xBob", Name: "P", Target: eth(10), TotalInvested: new(big.Int)})
	}
	_, err := f.store.RefreshAll(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				n := len(f.store.Projects())
				if n != 8 && n != 9 {
					t.Errorf("torn snapshot of %d projects", n)
					return
				}
			}
		}()
	}

	f.ledger.AddProject(&blockvest.Project{Owner: "0xBob", Name: "P", Target: eth(10), TotalInvested: new(big.Int)})
	for i := 0; i < 10; i++ {
		_, err := f.store.RefreshAll(ctx)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
	assert.Len(t, f.store.Projects(), 9)
}

// heldReader parks the first GetProject after reading, until release is closed.
type heldReader struct {
	ProjectReader
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (r *heldReader) GetProject(ctx context.Context, id uint64) (*blockvest.Project, error) {
	p, err := r.ProjectReader.GetProject(ctx, id)
	held := false
	r.once.Do(func() { held = true })
	if held {
		close(r.entered)
		<-r.release
	}
	return p, err
}

func TestStore_SlowRefreshDoesNotOverwriteNewer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ledger.AddProject(&blockvest.Project{Owner: "0xBob", Name: "B", Target: eth(10), Equity: 1000, TotalInvested: new(big.Int)})
	_, err := f.sessions.Connect(ctx)
	require.NoError(t, err)

	reader := &heldReader{ProjectReader: f.gateway, entered: make(chan struct{}), release: make(chan struct{})}
	s := &sink{}
	store := NewStore(f.obs, reader, f.engine, f.sessions, s, 1)
	t.Cleanup(store.Close)

	slow := make(chan []*blockvest.Project, 1)
	go func() {
		projects, err := store.RefreshAll(ctx)
		assert.NoError(t, err)
		slow <- projects
	}()
	<-reader.entered

	_, err = f.engine.Invest(ctx, 1, "5")
	require.NoError(t, err)
	_, err = store.RefreshAll(ctx)
	require.NoError(t, err)

	close(reader.release)
	projects := <-slow
	require.Len(t, projects, 1)
	assert.Equal(t, eth(5), projects[0].TotalInvested)

	p, ok := store.Project(1)
	require.True(t, ok)
	assert.Equal(t, eth(5), p.TotalInvested)
	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.saved, 1)
	assert.Equal(t, eth(5), s.saved[0][0].TotalInvested)
}

// loggingOutAccounts reports account to the next Current call and clears the
// session right after it.
type loggingOutAccounts struct {
	account string
	handle  session.ChangeHandle
}

func (a *loggingOutAccounts) Current() (string, bool) {
	account := a.account
	if account != "" {
		a.account = ""
		a.handle(session.Change{Previous: account})
	}
	return account, account != ""
}

func (a *loggingOutAccounts) Subscribe(handle session.ChangeHandle) func() {
	a.handle = handle
	return func() {}
}

func TestStore_LogoutDuringViewPublish(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ledger.AddProject(&blockvest.Project{Owner: "0xAlice", Name: "Own", Target: eth(10), TotalInvested: new(big.Int)})

	accounts := &loggingOutAccounts{}
	store := NewStore(f.obs, f.gateway, f.engine, accounts, nil, 1)
	t.Cleanup(store.Close)
	_, err := store.RefreshAll(ctx)
	require.NoError(t, err)

	accounts.account = "0xAlice"
	view, err := store.RefreshAccountView(ctx, "0xAlice")
	require.NoError(t, err)
	assert.Len(t, view.Owned, 1)

	current := store.AccountView()
	assert.Equal(t, "", current.Account)
	assert.Empty(t, current.Owned)
	assert.Empty(t, current.Invested)
	select {
	case <-store.Invalidated():
	default:
		t.Fatal("store was not invalidated")
	}
}
