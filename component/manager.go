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

package component

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/kapitor/custody/configuration"
	"github.com/kapitor/custody/connectivity"
	"github.com/kapitor/custody/internal/app/api"
	"github.com/kapitor/custody/internal/app/custody/currency"
	"github.com/kapitor/custody/internal/app/custody/postgres"
	"github.com/kapitor/custody/internal/app/custody/reconciler"
	"github.com/kapitor/custody/internal/app/custody/token"
	"github.com/kapitor/custody/internal/app/custody/tracker"
	"github.com/kapitor/custody/observability"
)

type Manager struct {
	cfg *configuration.Custody
	log *logrus.Logger

	router  *Router
	server  *echo.Echo
	tracker *tracker.Tracker
	stop    func()
}

// Prepare wires every component of the custody service. Connection and key
// failures are fatal here: a process that cannot reach its database should
// not come up at all.
func Prepare() *Manager {
	log := logrus.New()
	cfg := configuration.Load(log)
	obs := observability.Make(cfg.Log)
	conn := connectivity.Make(cfg, obs)

	intents := postgres.NewDepositIntentStorage(obs, conn.PG())
	ledger := postgres.NewLedgerStorage(obs, conn.PG())
	transactions := postgres.NewTransactionStorage(obs, conn.PG())
	wallets := postgres.NewWalletStorage(obs, conn.PG())

	gateway := makeTokenGateway(cfg, obs, conn)
	converter := makeConverter(cfg, obs)

	events := reconciler.New(cfg, obs, intents, ledger, transactions, wallets, gateway, converter)

	var chain tracker.ChainReader
	if eth := conn.Eth(); eth != nil {
		chain = eth
	}
	sweeper := tracker.New(cfg, obs, intents, transactions, chain)

	server := echo.New()
	server.HideBanner = true
	server.HidePort = true
	server.Use(middleware.Logger())
	api.RegisterHandlers(server, api.NewCustodyServer(
		cfg, obs, events, intents, ledger, transactions, wallets, gateway))

	router := NewRouter(cfg, obs)
	return &Manager{
		cfg:     cfg,
		log:     obs.Log(),
		router:  router,
		server:  server,
		tracker: sweeper,
		stop:    makeStopper(obs, conn, router),
	}
}

func makeTokenGateway(cfg *configuration.Custody, obs *observability.Observability, conn *connectivity.Connectivity) token.Gateway {
	gateway, err := token.NewERC20Gateway(cfg.Chain, obs, conn.Eth())
	if err != nil {
		obs.Log().Fatal(err.Error())
	}
	return gateway
}

func makeConverter(cfg *configuration.Custody, obs *observability.Observability) *currency.Converter {
	static, err := currency.NewStaticRateSource(cfg.FX.StaticRates)
	if err != nil {
		obs.Log().Fatal(err.Error())
	}
	cached, err := currency.NewCachedRateSource(static, nil, cfg.FX.CacheSize, cfg.FX.CacheTTL)
	if err != nil {
		obs.Log().Fatal(err.Error())
	}
	return currency.NewConverter(cfg.Gateway.LedgerCurrency, cached)
}

func (m *Manager) Start() {
	m.router.Start()
	m.tracker.Start()
	go func() {
		err := m.server.Start(m.cfg.API.Addr)
		if err != nil && err != http.ErrServerClosed {
			m.log.Errorf("http server Start: %v", err)
		}
	}()
	m.log.Infof("custody service listening on %s", m.cfg.API.Addr)
}

func (m *Manager) Stop() {
	m.tracker.Stop()
	if err := m.server.Shutdown(context.Background()); err != nil {
		m.log.Errorf("http server shutdown: %v", err)
	}
	m.stop()
}
