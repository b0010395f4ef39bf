// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package component

import (
	"context"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/insolar/blockvest/configuration"
	"github.com/insolar/blockvest/observability"
)

// Router serves the operational endpoints.
func NewRouter(cfg *configuration.Blockvest, obs *observability.Observability) *Router {
	router := httprouter.New()
	hs := &http.Server{Addr: cfg.API.OpsListen, Handler: router}
	r := &Router{
		hs:  hs,
		obs: obs,
	}
	router.GET("/healthcheck", r.healthCheck)
	router.GET("/metrics", r.metrics)
	return r
}

type Router struct {
	hs  *http.Server
	obs *observability.Observability
}

func (r *Router) Start() {
	log := r.obs.Log()
	go func() {
		err := r.hs.ListenAndServe()
		if err != http.ErrServerClosed {
			log.Error(errors.Wrapf(err, "http server ListenAndServe"))
		}
	}()
}

func (r *Router) Stop(ctx context.Context) {
	log := r.obs.Log()

	if err := r.hs.Shutdown(ctx); err != nil {
		log.Error(errors.Wrapf(err, "http server shutdown"))
	}
}

func (r *Router) healthCheck(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}

func (r *Router) metrics(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	ops := promhttp.HandlerOpts{
		ErrorLog: r.obs.Log(),
	}
	handler := promhttp.HandlerFor(r.obs.Metrics(), ops)
	handler.ServeHTTP(w, req)
}
