// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package blockvest

import (
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Project is the local projection of one funding project kept by the ledger.
type Project struct {
	ID            uint64
	Owner         string
	Name          string
	Details       string
	Target        *big.Int
	Equity        int64
	TotalInvested *big.Int
	IsClosed      bool
}

// Remaining is the capacity still open for investment. It is never negative.
func (p *Project) Remaining() *big.Int {
	if p.Target == nil {
		return new(big.Int)
	}
	rest := new(big.Int).Set(p.Target)
	if p.TotalInvested != nil {
		rest.Sub(rest, p.TotalInvested)
	}
	if rest.Sign() < 0 {
		return new(big.Int)
	}
	return rest
}

// Copy returns a deep copy, so snapshots never share big.Int values.
func (p *Project) Copy() *Project {
	if p == nil {
		return nil
	}
	c := *p
	c.Target = copyInt(p.Target)
	c.TotalInvested = copyInt(p.TotalInvested)
	return &c
}

type Contribution struct {
	ProjectID uint64
	Investor  string
	Amount    *big.Int
}

// Investment is a project seen from one investor.
type Investment struct {
	Project     *Project
	Amount      *big.Int
	EquityShare decimal.Decimal
}

// AccountView is the per-account classification of the current snapshot.
type AccountView struct {
	Account  string
	Owned    []*Project
	Invested []*Investment
}

func EmptyAccountView(account string) *AccountView {
	return &AccountView{
		Account:  account,
		Owned:    []*Project{},
		Invested: []*Investment{},
	}
}

// SameAccount compares account identifiers the way the ledger does, ignoring case.
func SameAccount(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

type Action string

const (
	ActionCreate   Action = "create"
	ActionInvest   Action = "invest"
	ActionWithdraw Action = "withdraw"
)

// TxHandle is the opaque identifier of a submitted transaction.
type TxHandle string

type PendingTransaction struct {
	Handle      TxHandle
	Action      Action
	ProjectID   uint64
	Account     string
	SubmittedAt time.Time
}

type FinalityState int

const (
	FinalityPending FinalityState = iota
	FinalityConfirmed
	FinalityFailed
)

func (s FinalityState) String() string {
	switch s {
	case FinalityPending:
		return "pending"
	case FinalityConfirmed:
		return "confirmed"
	case FinalityFailed:
		return "failed"
	}
	return "unknown"
}

type Receipt struct {
	Handle      TxHandle
	BlockNumber uint64
	BlockHash   string
	Status      FinalityState
}

// Finality is one observation of a transaction's state on the ledger.
type Finality struct {
	State   FinalityState
	Receipt *Receipt
	Reason  string
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
