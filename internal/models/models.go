// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package models

import (
	"math/big"
	"time"

	"github.com/pkg/errors"
)

// Project is one row of the persisted projection. Amounts are base units kept as
// numeric strings.
type Project struct {
	tableName struct{} `sql:"blockvest_projects"` //nolint: unused,structcheck

	ID            uint64    `sql:"id,pk"`
	Owner         string    `sql:"owner,notnull"`
	Name          string    `sql:"name,notnull"`
	Details       string    `sql:"details,notnull"`
	Target        string    `sql:"target,type:numeric,notnull"`
	Equity        int64     `sql:"equity,notnull"`
	TotalInvested string    `sql:"total_invested,type:numeric,notnull"`
	IsClosed      bool      `sql:"is_closed,notnull"`
	FetchedAt     time.Time `sql:"fetched_at,notnull"`
}

func (p *Project) TargetAmount() (*big.Int, error) {
	return parseAmount("target", p.Target)
}

func (p *Project) InvestedAmount() (*big.Int, error) {
	return parseAmount("total_invested", p.TotalInvested)
}

func parseAmount(column, v string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return nil, errors.Errorf("malformed %s %q", column, v)
	}
	if amount.Sign() < 0 {
		return nil, errors.Errorf("negative %s %q", column, v)
	}
	return amount, nil
}
