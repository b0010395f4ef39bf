// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package blockvest

import (
	"context"
	"math/big"
)

// Ledger is the remote, authoritative state machine. Reads may lag behind
// pending transactions; writes return as soon as the submission is accepted.
type Ledger interface {
	LedgerReader
	LedgerWriter
}

type LedgerReader interface {
	ProjectIDs(ctx context.Context) ([]uint64, error)
	// Project returns ErrNotFound when the ledger has no such id.
	Project(ctx context.Context, id uint64) (*Project, error)
	Contribution(ctx context.Context, id uint64, account string) (*big.Int, error)
	PollFinality(ctx context.Context, handle TxHandle) (*Finality, error)
}

type LedgerWriter interface {
	SubmitCreate(ctx context.Context, name, details string, target *big.Int, equity int64, signer Signer) (TxHandle, error)
	SubmitInvest(ctx context.Context, id uint64, amount *big.Int, signer Signer) (TxHandle, error)
	SubmitWithdraw(ctx context.Context, id uint64, signer Signer) (TxHandle, error)
}

// Signer authorizes writes on behalf of one account.
type Signer interface {
	Account() string
}

type AccountsHandle func(accounts []string)

// Wallet is the external identity and signing capability.
type Wallet interface {
	// RequestAccounts returns ErrUserRejected when the holder declines.
	RequestAccounts(ctx context.Context) ([]string, error)
	ChainID(ctx context.Context) (uint64, error)
	Signer(account string) (Signer, error)
	SubscribeAccountsChanged(handle AccountsHandle) (unsubscribe func())
}
