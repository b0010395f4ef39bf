// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package component

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/insolar/blockvest/configuration"
)

func TestSleepManager_Count(t *testing.T) {
	cfg := configuration.Default().Projection

	t.Run("regular", func(t *testing.T) {
		timeExecuted := time.Second
		expectedTime := cfg.RefreshInterval - timeExecuted

		sleepManager := NewSleepManager(cfg)
		require.Equal(t, expectedTime, sleepManager.Count(false, timeExecuted))
	})

	t.Run("slower than interval", func(t *testing.T) {
		sleepManager := NewSleepManager(cfg)
		require.Equal(t, time.Duration(0), sleepManager.Count(false, cfg.RefreshInterval+time.Second))
	})

	t.Run("failed refresh", func(t *testing.T) {
		sleepManager := NewSleepManager(cfg)
		require.Equal(t, cfg.RefreshInterval, sleepManager.Count(true, time.Second))
	})
}
