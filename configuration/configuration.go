//
// Copyright 2026 Kapitor Technologies Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package configuration

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kapitor/custody/internal/pkg/cycle"
)

type Custody struct {
	Log     Log
	DB      DB
	API     API
	Chain   Chain
	Gateway Gateway
	FX      FX
	Tracker Tracker
}

type Log struct {
	Level  string
	Format string
}

type DB struct {
	URL      string
	PoolSize int
	Attempts cycle.Limit
	// Interval between failed connection attempts
	AttemptInterval time.Duration
}

type API struct {
	// Listen address of the public echo server
	Addr string
	// Listen address of the ops router (healthcheck, metrics)
	OpsAddr string
}

type Chain struct {
	// JSON-RPC endpoint; empty switches the token gateway into degraded mode
	RPCURL  string
	ChainID int64
	Chain   string
	Network string
	// Platform token contract
	TokenAddress  string
	TokenSymbol   string
	TokenDecimals int
	// Treasury signing key (hex); empty switches minting into degraded mode
	TreasuryKey string
	GasLimit    uint64
	CallTimeout time.Duration
}

type Gateway struct {
	// Unit of account all ledger entries are denominated in
	LedgerCurrency string
	// Bound on the mint call made inside webhook handling
	MintTimeout time.Duration
}

type FX struct {
	CacheSize int
	CacheTTL  time.Duration
	// Fallback rates keyed "BASE/QUOTE"; value is the amount of
	// quote currency per one unit of base currency
	StaticRates map[string]string
}

type Tracker struct {
	SweepInterval      time.Duration
	ConfirmationTarget int64
	// Consecutive sweeps a receipt may be absent before the
	// intent is marked failed
	MissThreshold int64
	// Bound on RPC calls made for a single intent
	IntentTimeout time.Duration
}

func Default() *Custody {
	return &Custody{
		Log: Log{
			Level:  logrus.InfoLevel.String(),
			Format: "text",
		},
		DB: DB{
			URL:             "postgres://postgres@localhost/postgres?sslmode=disable",
			PoolSize:        100,
			Attempts:        5,
			AttemptInterval: 3 * time.Second,
		},
		API: API{
			Addr:    ":8080",
			OpsAddr: ":8888",
		},
		Chain: Chain{
			ChainID:       1,
			Chain:         "ethereum",
			Network:       "mainnet",
			TokenSymbol:   "KPT",
			TokenDecimals: 6,
			GasLimit:      120000,
			CallTimeout:   10 * time.Second,
		},
		Gateway: Gateway{
			LedgerCurrency: "USD",
			MintTimeout:    30 * time.Second,
		},
		FX: FX{
			CacheSize: 128,
			CacheTTL:  5 * time.Minute,
		},
		Tracker: Tracker{
			SweepInterval:      30 * time.Second,
			ConfirmationTarget: 6,
			MissThreshold:      3,
			IntentTimeout:      10 * time.Second,
		},
	}
}
