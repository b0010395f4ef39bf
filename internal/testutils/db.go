// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/observer/blob/master/LICENSE.md.

package testutils

import (
	"fmt"
	"log"
	"testing"

	"github.com/go-pg/migrations"
	"github.com/go-pg/pg"
	"github.com/ory/dockertest/v3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var pgOptions = &pg.Options{
	Addr:            "localhost",
	Database:        "blockvest_test_db",
	User:            "postgres",
	Password:        "secret",
	ApplicationName: "blockvest",
}

// SetupDB starts postgres in docker and applies migrationsDir. The error is set
// when docker is not reachable, so callers can skip.
func SetupDB(migrationsDir string) (*pg.DB, pg.Options, func(), error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, pg.Options{}, nil, errors.Wrap(err, "could not connect to docker")
	}

	resource, err := pool.Run(
		"postgres", "11",
		[]string{
			"POSTGRES_DB=" + pgOptions.Database,
			"POSTGRES_PASSWORD=" + pgOptions.Password,
		},
	)
	if err != nil {
		return nil, pg.Options{}, nil, errors.Wrap(err, "could not start postgres container")
	}

	poolCleaner := func() {
		log.Printf("removing container")
		if err := pool.Purge(resource); err != nil {
			log.Printf("failed to purge docker pool: %s", err)
		}
	}

	options := *pgOptions
	options.Addr = fmt.Sprintf("%s:%s", options.Addr, resource.GetPort("5432/tcp"))

	var db *pg.DB
	err = pool.Retry(func() error {
		db = pg.Connect(&options)
		_, err := db.Exec("select 1")
		return err
	})
	if err != nil {
		poolCleaner()
		log.Panicf("Could not start postgres: %s", err)
	}

	cleaner := func() {
		log.Printf("shutting down db")
		if err := db.Close(); err != nil {
			log.Printf("failed to close db: %s", err)
		}
		poolCleaner()
	}

	if err := Migrate(db, migrationsDir); err != nil {
		cleaner()
		log.Panicf("Could not migrate: %s", err)
	}
	return db, options, cleaner, nil
}

// Migrate applies every sql migration in dir.
func Migrate(db *pg.DB, dir string) error {
	collection := migrations.NewCollection()
	if _, _, err := collection.Run(db, "init"); err != nil {
		return errors.Wrap(err, "could not init migrations")
	}
	if err := collection.DiscoverSQLMigrations(dir); err != nil {
		return errors.Wrap(err, "failed to read migrations")
	}
	if _, _, err := collection.Run(db, "up"); err != nil {
		return errors.Wrap(err, "could not migrate")
	}
	return nil
}

func TruncateTables(t *testing.T, db *pg.DB, models []interface{}) {
	for _, m := range models {
		_, err := db.Model(m).Exec("TRUNCATE TABLE ?TableName CASCADE")
		require.NoError(t, err)
	}
}
