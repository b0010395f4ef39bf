// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package component

import (
	"context"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/insolar/blockvest/connectivity"
	"github.com/insolar/blockvest/internal/app/blockvest/projection"
	"github.com/insolar/blockvest/internal/app/blockvest/session"
	"github.com/insolar/blockvest/observability"
)

func makeStopper(
	obs *observability.Observability,
	conn *connectivity.Connectivity,
	router *Router,
	server *echo.Echo,
	store *projection.Store,
	sessions *session.Manager,
) func() {
	log := obs.Log()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			router.Stop(ctx)
		}()
		go func() {
			defer wg.Done()
			if err := server.Shutdown(ctx); err != nil {
				log.Error(errors.Wrapf(err, "api server shutdown"))
			}
		}()
		wg.Wait()

		store.Close()
		sessions.Close()
		if err := conn.Close(); err != nil {
			log.Error(err)
		}
	}
}
