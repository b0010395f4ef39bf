// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package main

import (
	"github.com/go-pg/migrations"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/insolar/blockvest/configuration"
	"github.com/insolar/blockvest/internal/dbconn"
	"github.com/insolar/blockvest/observability"
)

var (
	configPath   = pflag.String("config", "", "path to config file")
	migrationDir = pflag.String("dir", "scripts/migrations", "directory with migrations")
	doInit       = pflag.Bool("init", false, "perform db init (for empty db)")
)

func main() {
	pflag.Parse()
	cfg, err := configuration.Load(logrus.StandardLogger(), *configPath)
	if err != nil {
		logrus.Fatal(err)
	}
	log := observability.Make(cfg.Log).Log()

	db, err := dbconn.Connect(cfg.DB)
	if err != nil {
		log.Fatal(err.Error())
	}
	defer db.Close()

	migrationCollection := migrations.NewCollection()
	if *doInit {
		_, _, err := migrationCollection.Run(db, "init")
		if err != nil {
			log.Fatal(errors.Wrap(err, "Could not init migrations"))
		}
	}

	err = migrationCollection.DiscoverSQLMigrations(*migrationDir)
	if err != nil {
		log.Fatal(errors.Wrap(err, "Failed to read migrations"))
	}

	oldVersion, newVersion, err := migrationCollection.Run(db, "up")
	if err != nil {
		log.Fatal(errors.Wrap(err, "Could not migrate"))
	}
	if newVersion != oldVersion {
		log.Infof("migrated from version %d to %d", oldVersion, newVersion)
	} else {
		log.Infof("version is %d", oldVersion)
	}
}
