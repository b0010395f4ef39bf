// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

// Package session tracks the account currently authorized by the wallet.
package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/insolar/blockvest/internal/app/blockvest"
)

// Change is emitted whenever the current account changes. Current is empty
// when the session was cleared.
type Change struct {
	Previous string
	Current  string
}

type ChangeHandle func(Change)

type Manager struct {
	log     logrus.FieldLogger
	wallet  blockvest.Wallet
	chainID uint64

	mu      sync.RWMutex
	account string
	handles map[int]ChangeHandle
	nextID  int

	release func()
}

// NewManager starts listening to the wallet's account notifications. Close must be
// called to release that subscription. A nil wallet is allowed: Connect then fails
// with ErrWalletUnavailable.
func NewManager(log logrus.FieldLogger, wallet blockvest.Wallet, chainID uint64) *Manager {
	m := &Manager{
		log:     log.WithField("component", "session"),
		wallet:  wallet,
		chainID: chainID,
		handles: make(map[int]ChangeHandle),
		release: func() {},
	}
	if wallet != nil {
		m.release = wallet.SubscribeAccountsChanged(m.onAccountsChanged)
	}
	return m
}

func (m *Manager) Current() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.account, m.account != ""
}

// Connect asks the wallet for accounts after checking the network.
func (m *Manager) Connect(ctx context.Context) (string, error) {
	if m.wallet == nil {
		return "", blockvest.ErrWalletUnavailable
	}

	chainID, err := m.wallet.ChainID(ctx)
	if err != nil {
		return "", errors.Wrap(blockvest.ErrWalletUnavailable, err.Error())
	}
	if chainID != m.chainID {
		return "", errors.Wrapf(blockvest.ErrWrongNetwork, "wallet chain %d, expected %d", chainID, m.chainID)
	}

	accounts, err := m.wallet.RequestAccounts(ctx)
	if err != nil {
		if errors.Is(err, blockvest.ErrUserRejected) {
			return "", err
		}
		return "", errors.Wrap(blockvest.ErrWalletUnavailable, err.Error())
	}
	if len(accounts) == 0 {
		return "", errors.Wrap(blockvest.ErrUserRejected, "wallet returned no accounts")
	}

	m.set(accounts[0])
	m.log.WithField("account", accounts[0]).Info("wallet connected")
	return accounts[0], nil
}

// Disconnect clears the session, e.g. on logout.
func (m *Manager) Disconnect() {
	m.set("")
}

// Signer returns the signing handle of the current account.
func (m *Manager) Signer() (blockvest.Signer, error) {
	account, ok := m.Current()
	if !ok {
		return nil, blockvest.ErrUnauthorized
	}
	if m.wallet == nil {
		return nil, blockvest.ErrWalletUnavailable
	}
	signer, err := m.wallet.Signer(account)
	if err != nil {
		return nil, errors.Wrap(blockvest.ErrWalletUnavailable, err.Error())
	}
	return signer, nil
}

// Subscribe registers a handle for account changes. Handles run synchronously
// on the goroutine that caused the change.
func (m *Manager) Subscribe(handle ChangeHandle) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.handles[id] = handle

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.handles, id)
		})
	}
}

// Close releases the wallet subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	release := m.release
	m.release = func() {}
	m.mu.Unlock()
	release()
}

func (m *Manager) onAccountsChanged(accounts []string) {
	next := ""
	if len(accounts) > 0 {
		next = accounts[0]
	}
	m.log.WithField("accounts", len(accounts)).Debug("wallet accounts changed")
	m.set(next)
}

func (m *Manager) set(account string) {
	m.mu.Lock()
	previous := m.account
	if previous == account {
		m.mu.Unlock()
		return
	}
	m.account = account
	handles := make([]ChangeHandle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	change := Change{Previous: previous, Current: account}
	for _, h := range handles {
		h(change)
	}
}
