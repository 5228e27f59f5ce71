// Copyright 2026 Kapitor Technologies Ltd.
// All rights reserved.
// This material is licensed under the Apache License 2.0,
// available at https://github.com/kapitor/custody/blob/master/LICENSE.md.

package connectivity

import (
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-pg/pg"
	"github.com/pkg/errors"

	"github.com/kapitor/custody/configuration"
	"github.com/kapitor/custody/internal/dbconn"
	"github.com/kapitor/custody/internal/pkg/cycle"
	"github.com/kapitor/custody/observability"
)

func Make(cfg *configuration.Custody, obs *observability.Observability) *Connectivity {
	log := obs.Log()
	return &Connectivity{
		pg: func() *pg.DB {
			db, err := dbconn.Connect(cfg.DB)
			if err != nil {
				log.Fatal(err.Error())
			}
			cycle.UntilConnectionError(func() error {
				_, err := db.Exec("select 1")
				return err
			}, cfg.DB.AttemptInterval, cfg.DB.Attempts, log)
			return db
		}(),
		eth: func() *ethclient.Client {
			if cfg.Chain.RPCURL == "" {
				log.Warn("no chain RPC endpoint configured, running degraded")
				return nil
			}
			client, err := ethclient.Dial(cfg.Chain.RPCURL)
			if err != nil {
				log.Fatal(errors.Wrap(err, "failed to dial chain RPC").Error())
			}
			return client
		}(),
	}
}

type Connectivity struct {
	pg  *pg.DB
	eth *ethclient.Client
}

func (c *Connectivity) PG() *pg.DB {
	return c.pg
}

// Eth returns nil when no RPC endpoint is configured; callers must treat
// that as degraded mode, not as an error.
func (c *Connectivity) Eth() *ethclient.Client {
	return c.eth
}
