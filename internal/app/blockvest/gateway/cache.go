// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package gateway

import (
	"math/big"
	"strings"

	"github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/insolar/blockvest/internal/app/blockvest"
)

// closedCache keeps only data that can no longer change: closed projects and the
// contributions made to them.
type closedCache struct {
	cache *lru.Cache
}

type scope uint8

const (
	scopeProject scope = iota
	scopeContribution
)

type cacheKey struct {
	scope   scope
	id      uint64
	account string
}

func newClosedCache(size int) (*closedCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init cache")
	}
	return &closedCache{cache: cache}, nil
}

func (c *closedCache) setProject(p *blockvest.Project) {
	if !p.IsClosed {
		return
	}
	_ = c.cache.Add(cacheKey{scope: scopeProject, id: p.ID}, p.Copy())
}

func (c *closedCache) project(id uint64) (*blockvest.Project, bool) {
	val, ok := c.cache.Get(cacheKey{scope: scopeProject, id: id})
	if !ok {
		return nil, false
	}
	p, ok := val.(*blockvest.Project)
	if !ok {
		return nil, false
	}
	return p.Copy(), true
}

func (c *closedCache) setContribution(id uint64, account string, amount *big.Int) {
	if !c.cache.Contains(cacheKey{scope: scopeProject, id: id}) {
		return
	}
	_ = c.cache.Add(contributionKey(id, account), new(big.Int).Set(amount))
}

func (c *closedCache) contribution(id uint64, account string) (*big.Int, bool) {
	val, ok := c.cache.Get(contributionKey(id, account))
	if !ok {
		return nil, false
	}
	amount, ok := val.(*big.Int)
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(amount), true
}

func contributionKey(id uint64, account string) cacheKey {
	return cacheKey{scope: scopeContribution, id: id, account: strings.ToLower(account)}
}
