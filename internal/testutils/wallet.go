// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package testutils

import (
	"context"
	"sync"

	"github.com/insolar/blockvest/internal/app/blockvest"
)

type Signer string

func (s Signer) Account() string {
	return string(s)
}

// Wallet is a scripted wallet capability.
type Wallet struct {
	mu sync.Mutex

	Accounts []string
	Chain    uint64
	Reject   bool

	handles      map[int]blockvest.AccountsHandle
	nextID       int
	Unsubscribed int
}

func NewWallet(chain uint64, accounts ...string) *Wallet {
	return &Wallet{
		Accounts: accounts,
		Chain:    chain,
		handles:  make(map[int]blockvest.AccountsHandle),
	}
}

func (w *Wallet) RequestAccounts(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Reject {
		return nil, blockvest.ErrUserRejected
	}
	return append([]string(nil), w.Accounts...), nil
}

func (w *Wallet) ChainID(ctx context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Chain, nil
}

func (w *Wallet) Signer(account string) (blockvest.Signer, error) {
	return Signer(account), nil
}

func (w *Wallet) SubscribeAccountsChanged(handle blockvest.AccountsHandle) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.handles[id] = handle
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if _, ok := w.handles[id]; ok {
			delete(w.handles, id)
			w.Unsubscribed++
		}
	}
}

// Emit simulates the external accountsChanged notification.
func (w *Wallet) Emit(accounts ...string) {
	w.mu.Lock()
	w.Accounts = accounts
	handles := make([]blockvest.AccountsHandle, 0, len(w.handles))
	for _, h := range w.handles {
		handles = append(handles, h)
	}
	w.mu.Unlock()
	for _, h := range handles {
		h(accounts)
	}
}

func (w *Wallet) Subscribers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.handles)
}
