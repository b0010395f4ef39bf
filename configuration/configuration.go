// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package configuration

import (
	"time"

	"github.com/insolar/blockvest/internal/pkg/cycle"
)

type Blockvest struct {
	Log        Log
	Ledger     Ledger
	Wallet     Wallet
	Projection Projection
	DB         DB
	API        API
}

type Log struct {
	Level      string
	Format     string
	OutputType string
}

type Ledger struct {
	// JSON-RPC endpoint of the network node.
	Endpoint        string
	ContractAddress string
	// Network the wallet must be connected to.
	ChainID uint64
	// Upper bound of a single finality wait.
	Timeout      time.Duration
	PollInterval time.Duration
	// Retries of a failed finality read.
	Attempts   cycle.Limit
	MaxBackoff time.Duration
	CacheSize  int
}

type Wallet struct {
	// Hex encoded key. Empty means no signing capability.
	PrivateKey string
}

type Projection struct {
	RefreshInterval time.Duration
	// Parallel ledger reads during a refresh.
	Concurrency int
}

type DB struct {
	Enabled  bool
	URL      string
	PoolSize int
	Attempts cycle.Limit
	// Interval between store in db failed attempts
	AttemptInterval time.Duration
}

type API struct {
	Listen string
	// Healthcheck and metrics.
	OpsListen string
}

func Default() *Blockvest {
	return &Blockvest{
		Log: Log{
			Level:      "debug",
			Format:     "text",
			OutputType: "stderr",
		},
		Ledger: Ledger{
			Endpoint:        "http://127.0.0.1:8545",
			ContractAddress: "0x8464135c8F25Da09e49BC8782676a84730C318bC",
			ChainID:         31337,
			Timeout:         5 * time.Minute,
			PollInterval:    2 * time.Second,
			Attempts:        5,
			MaxBackoff:      10 * time.Second,
			CacheSize:       10000,
		},
		Projection: Projection{
			RefreshInterval: 15 * time.Second,
			Concurrency:     8,
		},
		DB: DB{
			Enabled:         false,
			URL:             "postgres://postgres@localhost/postgres?sslmode=disable",
			PoolSize:        10,
			Attempts:        5,
			AttemptInterval: 3 * time.Second,
		},
		API: API{
			Listen:    ":8888",
			OpsListen: ":8889",
		},
	}
}
