// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package session

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insolar/blockvest/internal/app/blockvest"
	"github.com/insolar/blockvest/internal/testutils"
)

const (
	chain   = 31337
	account = "0xAbC0000000000000000000000000000000000001"
)

func TestManager_Connect(t *testing.T) {
	ctx := context.Background()
	log := logrus.New()

	t.Run("happy path", func(t *testing.T) {
		wallet := testutils.NewWallet(chain, account)
		m := NewManager(log, wallet, chain)
		defer m.Close()

		_, ok := m.Current()
		require.False(t, ok)

		got, err := m.Connect(ctx)
		require.NoError(t, err)
		assert.Equal(t, account, got)

		current, ok := m.Current()
		require.True(t, ok)
		assert.Equal(t, account, current)

		signer, err := m.Signer()
		require.NoError(t, err)
		assert.Equal(t, account, signer.Account())
	})

	t.Run("no wallet", func(t *testing.T) {
		m := NewManager(log, nil, chain)
		defer m.Close()
		_, err := m.Connect(ctx)
		assert.True(t, errors.Is(err, blockvest.ErrWalletUnavailable))
	})

	t.Run("wrong network", func(t *testing.T) {
		m := NewManager(log, testutils.NewWallet(1, account), chain)
		defer m.Close()
		_, err := m.Connect(ctx)
		assert.True(t, errors.Is(err, blockvest.ErrWrongNetwork))
		_, ok := m.Current()
		assert.False(t, ok)
	})

	t.Run("user rejected", func(t *testing.T) {
		wallet := testutils.NewWallet(chain, account)
		wallet.Reject = true
		m := NewManager(log, wallet, chain)
		defer m.Close()
		_, err := m.Connect(ctx)
		assert.True(t, errors.Is(err, blockvest.ErrUserRejected))
	})
}

func TestManager_Signer_Unauthorized(t *testing.T) {
	m := NewManager(logrus.New(), testutils.NewWallet(chain, account), chain)
	defer m.Close()

	_, err := m.Signer()
	assert.True(t, errors.Is(err, blockvest.ErrUnauthorized))
}

func TestManager_AccountsChanged(t *testing.T) {
	ctx := context.Background()
	wallet := testutils.NewWallet(chain, account)
	m := NewManager(logrus.New(), wallet, chain)
	defer m.Close()

	var changes []Change
	unsubscribe := m.Subscribe(func(c Change) {
		changes = append(changes, c)
	})

	_, err := m.Connect(ctx)
	require.NoError(t, err)

	wallet.Emit("0x2")
	current, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "0x2", current)

	wallet.Emit()
	_, ok = m.Current()
	assert.False(t, ok)

	require.Equal(t, []Change{
		{Previous: "", Current: account},
		{Previous: account, Current: "0x2"},
		{Previous: "0x2", Current: ""},
	}, changes)

	unsubscribe()
	unsubscribe()
	wallet.Emit("0x3")
	assert.Len(t, changes, 3)
}

func TestManager_Disconnect(t *testing.T) {
	m := NewManager(logrus.New(), testutils.NewWallet(chain, account), chain)
	defer m.Close()

	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	cleared := false
	m.Subscribe(func(c Change) { cleared = c.Current == "" })
	m.Disconnect()

	assert.True(t, cleared)
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestManager_Close_ReleasesSubscription(t *testing.T) {
	wallet := testutils.NewWallet(chain, account)
	m := NewManager(logrus.New(), wallet, chain)
	require.Equal(t, 1, wallet.Subscribers())

	m.Close()
	m.Close()
	assert.Equal(t, 0, wallet.Subscribers())
	assert.Equal(t, 1, wallet.Unsubscribed)
}
