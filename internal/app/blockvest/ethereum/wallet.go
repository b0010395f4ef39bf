// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package ethereum

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/insolar/blockvest/internal/app/blockvest"
)

type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

type keySigner struct {
	opts *bind.TransactOpts
}

func (s keySigner) Account() string {
	return s.opts.From.Hex()
}

func (s keySigner) TransactOpts() *bind.TransactOpts {
	return s.opts
}

// KeyWallet is a wallet holding one private key loaded from configuration.
type KeyWallet struct {
	log   logrus.FieldLogger
	chain ChainReader
	key   *ecdsa.PrivateKey

	mu      sync.Mutex
	locked  bool
	handles map[int]blockvest.AccountsHandle
	nextID  int
}

func NewKeyWallet(log logrus.FieldLogger, chain ChainReader, hexKey string) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load wallet key")
	}
	w := &KeyWallet{
		chain:   chain,
		key:     key,
		handles: make(map[int]blockvest.AccountsHandle),
	}
	w.log = log.WithField("wallet", w.address())
	return w, nil
}

func (w *KeyWallet) address() string {
	return crypto.PubkeyToAddress(w.key.PublicKey).Hex()
}

func (w *KeyWallet) RequestAccounts(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locked {
		return nil, errors.Wrap(blockvest.ErrUserRejected, "wallet is locked")
	}
	return []string{w.address()}, nil
}

func (w *KeyWallet) ChainID(ctx context.Context) (uint64, error) {
	id, err := w.chain.ChainID(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get chain id")
	}
	if !id.IsUint64() {
		return 0, errors.Errorf("chain id %s out of range", id)
	}
	return id.Uint64(), nil
}

func (w *KeyWallet) Signer(account string) (blockvest.Signer, error) {
	w.mu.Lock()
	locked := w.locked
	w.mu.Unlock()
	if locked {
		return nil, errors.Wrap(blockvest.ErrUserRejected, "wallet is locked")
	}
	if !blockvest.SameAccount(account, w.address()) {
		return nil, errors.Errorf("wallet does not hold account %s", account)
	}

	id, err := w.ChainID(context.Background())
	if err != nil {
		return nil, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(w.key, new(big.Int).SetUint64(id))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create transactor")
	}
	return keySigner{opts: opts}, nil
}

func (w *KeyWallet) SubscribeAccountsChanged(handle blockvest.AccountsHandle) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.handles[id] = handle

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.handles, id)
		})
	}
}

// Lock drops the account, notifying subscribers with an empty account list.
func (w *KeyWallet) Lock() {
	w.setLocked(true, nil)
}

// Unlock exposes the account again.
func (w *KeyWallet) Unlock() {
	w.setLocked(false, []string{w.address()})
}

func (w *KeyWallet) setLocked(locked bool, accounts []string) {
	w.mu.Lock()
	if w.locked == locked {
		w.mu.Unlock()
		return
	}
	w.locked = locked
	handles := make([]blockvest.AccountsHandle, 0, len(w.handles))
	for _, h := range w.handles {
		handles = append(handles, h)
	}
	w.mu.Unlock()

	w.log.WithField("locked", locked).Info("wallet lock changed")
	for _, h := range handles {
		h(accounts)
	}
}
