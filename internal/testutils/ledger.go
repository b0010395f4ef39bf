// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package testutils

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/insolar/blockvest/internal/app/blockvest"
)

// Ledger is a scripted in-memory ledger. Submitted transactions take effect when
// they are confirmed by PollFinality, after PendingPolls pending observations.
type Ledger struct {
	mu sync.Mutex

	projects      map[uint64]*blockvest.Project
	order         []uint64
	contributions map[uint64]map[string]*big.Int
	txs           map[blockvest.TxHandle]*tx
	nextTx        int

	// ReadErr is returned by every read except PollFinality.
	ReadErr error
	// SubmitErr is returned by every submission.
	SubmitErr error
	// PollErrs is the number of PollFinality calls failing before it works again.
	PollErrs int
	// PendingPolls is how many polls a transaction stays pending.
	PendingPolls int
	// FailNext makes the next submitted transaction revert with this reason.
	FailNext string

	Reads   int
	Submits int
	Polls   int
}

type tx struct {
	effect  func() error
	polls   int
	fail    string
	applied bool
	failed  string
}

func NewLedger() *Ledger {
	return &Ledger{
		projects:      make(map[uint64]*blockvest.Project),
		contributions: make(map[uint64]map[string]*big.Int),
		txs:           make(map[blockvest.TxHandle]*tx),
	}
}

// AddProject seeds a project, assigning the next id when p.ID is zero.
func (l *Ledger) AddProject(p *blockvest.Project) *blockvest.Project {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addProject(p)
}

// SetContribution seeds an investor amount without touching project totals.
func (l *Ledger) SetContribution(id uint64, account string, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.contribution(id)[strings.ToLower(account)] = new(big.Int).Set(amount)
}

func (l *Ledger) ProjectIDs(ctx context.Context) ([]uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Reads++
	if l.ReadErr != nil {
		return nil, l.ReadErr
	}
	ids := make([]uint64, len(l.order))
	copy(ids, l.order)
	return ids, nil
}

func (l *Ledger) Project(ctx context.Context, id uint64) (*blockvest.Project, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Reads++
	if l.ReadErr != nil {
		return nil, l.ReadErr
	}
	p, ok := l.projects[id]
	if !ok {
		return nil, blockvest.ErrNotFound
	}
	return p.Copy(), nil
}

func (l *Ledger) Contribution(ctx context.Context, id uint64, account string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Reads++
	if l.ReadErr != nil {
		return nil, l.ReadErr
	}
	amount, ok := l.contribution(id)[strings.ToLower(account)]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(amount), nil
}

func (l *Ledger) SubmitCreate(ctx context.Context, name, details string, target *big.Int, equity int64, signer blockvest.Signer) (blockvest.TxHandle, error) {
	owner := signer.Account()
	return l.submit(func() error {
		l.addProject(&blockvest.Project{
			Owner:         owner,
			Name:          name,
			Details:       details,
			Target:        new(big.Int).Set(target),
			Equity:        equity,
			TotalInvested: new(big.Int),
		})
		return nil
	})
}

func (l *Ledger) SubmitInvest(ctx context.Context, id uint64, amount *big.Int, signer blockvest.Signer) (blockvest.TxHandle, error) {
	investor := strings.ToLower(signer.Account())
	return l.submit(func() error {
		p, ok := l.projects[id]
		if !ok {
			return errors.New("project does not exist")
		}
		if p.IsClosed {
			return errors.New("project is closed")
		}
		if amount.Cmp(p.Remaining()) > 0 {
			return errors.New("investment exceeds target")
		}
		p.TotalInvested = new(big.Int).Add(p.TotalInvested, amount)
		if p.TotalInvested.Cmp(p.Target) == 0 {
			p.IsClosed = true
		}
		contributions := l.contribution(id)
		current, ok := contributions[investor]
		if !ok {
			current = new(big.Int)
		}
		contributions[investor] = new(big.Int).Add(current, amount)
		return nil
	})
}

func (l *Ledger) SubmitWithdraw(ctx context.Context, id uint64, signer blockvest.Signer) (blockvest.TxHandle, error) {
	account := signer.Account()
	return l.submit(func() error {
		p, ok := l.projects[id]
		if !ok {
			return errors.New("project does not exist")
		}
		if !blockvest.SameAccount(p.Owner, account) {
			return errors.New("only owner can withdraw")
		}
		p.IsClosed = true
		return nil
	})
}

func (l *Ledger) PollFinality(ctx context.Context, handle blockvest.TxHandle) (*blockvest.Finality, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Polls++
	if l.PollErrs > 0 {
		l.PollErrs--
		return nil, errors.New("connection reset by peer")
	}
	t, ok := l.txs[handle]
	if !ok {
		return nil, errors.Errorf("unknown transaction %s", handle)
	}
	if !t.applied && t.failed == "" {
		if t.polls < l.PendingPolls {
			t.polls++
			return &blockvest.Finality{State: blockvest.FinalityPending}, nil
		}
		if t.fail != "" {
			t.failed = t.fail
		} else if err := t.effect(); err != nil {
			t.failed = err.Error()
		} else {
			t.applied = true
		}
	}
	receipt := &blockvest.Receipt{Handle: handle, BlockNumber: uint64(len(l.txs)), BlockHash: fmt.Sprintf("0xblock%s", handle)}
	if t.failed != "" {
		receipt.Status = blockvest.FinalityFailed
		return &blockvest.Finality{State: blockvest.FinalityFailed, Receipt: receipt, Reason: t.failed}, nil
	}
	receipt.Status = blockvest.FinalityConfirmed
	return &blockvest.Finality{State: blockvest.FinalityConfirmed, Receipt: receipt}, nil
}

func (l *Ledger) submit(effect func() error) (blockvest.TxHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Submits++
	if l.SubmitErr != nil {
		return "", l.SubmitErr
	}
	l.nextTx++
	handle := blockvest.TxHandle(fmt.Sprintf("0xtx%d", l.nextTx))
	l.txs[handle] = &tx{effect: effect, fail: l.FailNext}
	l.FailNext = ""
	return handle, nil
}

func (l *Ledger) addProject(p *blockvest.Project) *blockvest.Project {
	c := p.Copy()
	if c.ID == 0 {
		c.ID = uint64(len(l.order) + 1)
	}
	l.projects[c.ID] = c
	l.order = append(l.order, c.ID)
	return c.Copy()
}

func (l *Ledger) contribution(id uint64) map[string]*big.Int {
	c, ok := l.contributions[id]
	if !ok {
		c = make(map[string]*big.Int)
		l.contributions[id] = c
	}
	return c
}
