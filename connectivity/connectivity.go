// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package connectivity

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-pg/pg"
	"github.com/pkg/errors"

	"github.com/insolar/blockvest/configuration"
	"github.com/insolar/blockvest/internal/dbconn"
	"github.com/insolar/blockvest/internal/pkg/cycle"
	"github.com/insolar/blockvest/observability"
)

// Make dials the ledger node and, when enabled, the projection database.
func Make(ctx context.Context, cfg *configuration.Blockvest, obs *observability.Observability) (*Connectivity, error) {
	log := obs.Log()

	log.Infof("trying connect to %s...", cfg.Ledger.Endpoint)
	client, err := ethclient.DialContext(ctx, cfg.Ledger.Endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", cfg.Ledger.Endpoint)
	}
	c := &Connectivity{eth: client}

	if !cfg.DB.Enabled {
		log.Info("projection database is disabled")
		return c, nil
	}

	db, err := dbconn.Connect(cfg.DB)
	if err != nil {
		client.Close()
		return nil, err
	}
	ping := func() error {
		_, err := db.Exec("select 1")
		return err
	}
	backoff := cycle.Backoff{Interval: cfg.DB.AttemptInterval, Max: 4 * cfg.DB.AttemptInterval}
	if err := cycle.UntilError(ctx, ping, backoff, cfg.DB.Attempts, log); err != nil {
		client.Close()
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to reach projection database")
	}
	c.pg = db
	return c, nil
}

type Connectivity struct {
	eth *ethclient.Client
	pg  *pg.DB
}

func (c *Connectivity) Eth() *ethclient.Client {
	return c.eth
}

// PG is nil when the projection database is disabled.
func (c *Connectivity) PG() *pg.DB {
	return c.pg
}

func (c *Connectivity) Close() error {
	c.eth.Close()
	if c.pg != nil {
		return errors.Wrap(c.pg.Close(), "failed to close db")
	}
	return nil
}
