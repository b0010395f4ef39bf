// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package component

import (
	"time"

	"github.com/insolar/blockvest/configuration"
)

type SleepManager struct {
	cfg configuration.Projection
}

func NewSleepManager(cfg configuration.Projection) *SleepManager {
	return &SleepManager{
		cfg: cfg,
	}
}

// Count returns the pause before the next refresh.
func (sm *SleepManager) Count(failed bool, timeExecuted time.Duration) time.Duration {
	if failed {
		return sm.cfg.RefreshInterval
	}

	// reducing sleep time by execution time
	sleepTime := sm.cfg.RefreshInterval - timeExecuted
	if sleepTime < 0 {
		return 0
	}
	return sleepTime
}
