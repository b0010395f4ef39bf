// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/insolar/blockvest/component"
	"github.com/insolar/blockvest/configuration"
	"github.com/insolar/blockvest/observability"
)

var stop = make(chan os.Signal, 1)
var Version string

func main() {
	configPath := pflag.String("config", "", "path to config file")
	pflag.Parse()

	cfg, err := configuration.Load(logrus.StandardLogger(), *configPath)
	if err != nil {
		logrus.Fatal(err)
	}
	obs := observability.Make(cfg.Log)
	logger := obs.Log()
	if len(Version) == 0 {
		Version = "dev"
	}
	logger.Infof("Blockvest version=%s", Version)

	manager, err := component.Prepare(context.Background(), cfg, obs)
	if err != nil {
		logger.Fatal(err)
	}
	manager.Start()
	graceful(logger, manager.Stop)
}

func graceful(logger logrus.FieldLogger, that func()) {
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Infof("gracefully stopping...")
	that()
}
