// Copyright 2026 Kapitor Technologies Ltd.
// All rights reserved.
// This material is licensed under the Apache License 2.0,
// available at https://github.com/kapitor/custody/blob/master/LICENSE.md.

package main

import (
	"flag"

	"github.com/go-pg/migrations"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kapitor/custody/configuration"
	"github.com/kapitor/custody/internal/dbconn"
	"github.com/kapitor/custody/internal/pkg/cycle"
)

var migrationDir = flag.String("dir", "scripts/migrations", "directory with migrations")
var doInit = flag.Bool("init", false, "perform db init (for empty db)")

func main() {
	flag.Parse()

	log := logrus.New()
	cfg := configuration.Load(log)

	db, err := dbconn.Connect(cfg.DB)
	if err != nil {
		log.Fatal(err.Error())
	}
	// migrations usually run while the database is still coming up
	err = cycle.UntilError(func() error {
		_, err := db.Exec("select 1")
		return err
	}, cfg.DB.AttemptInterval, cfg.DB.Attempts, log)
	if err != nil {
		log.Fatal(errors.Wrap(err, "database unreachable"))
	}

	migrationCollection := migrations.NewCollection()
	if *doInit {
		_, _, err := migrationCollection.Run(db, "init")
		if err != nil {
			log.Fatal(errors.Wrap(err, "could not init migrations"))
		}
	}

	err = migrationCollection.DiscoverSQLMigrations(*migrationDir)
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to read migrations"))
	}

	_, _, err = migrationCollection.Run(db, "up")
	if err != nil {
		log.Fatal(errors.Wrap(err, "could not migrate"))
	}
	log.Info("migrated successfully!")
}
