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

// Package api exposes the user-facing HTTP surface: payment-gateway webhook
// ingress plus deposit, balance, transaction and token endpoints. Webhook
// signature verification happens upstream; by the time a request reaches
// these handlers it is trusted.
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kapitor/custody/configuration"
	"github.com/kapitor/custody/internal/app/custody"
	"github.com/kapitor/custody/internal/app/custody/token"
	"github.com/kapitor/custody/internal/models"
	"github.com/kapitor/custody/observability"
)

type EventHandler interface {
	HandleVerifiedEvent(ctx context.Context, ev custody.GatewayEvent) custody.Result
	ManualCredit(ctx context.Context, userID string, amount decimal.Decimal, notes string) custody.Result
}

type IntentStore interface {
	Create(intent *models.DepositIntent) error
	ByID(id string) (*models.DepositIntent, error)
	ListFiatPendingByUser(userID string) ([]models.DepositIntent, error)
}

type LedgerStore interface {
	Balance(userID string) (decimal.Decimal, error)
}

type TransactionStore interface {
	Insert(tx *models.Transaction) error
	ListByUser(userID string, limit, offset int) ([]models.Transaction, int, error)
}

type WalletStore interface {
	ByUserID(userID string) (*models.Wallet, error)
}

type CustodyServer struct {
	log       *logrus.Logger
	chainCfg  configuration.Chain
	ledgerCcy string

	events       EventHandler
	intents      IntentStore
	ledger       LedgerStore
	transactions TransactionStore
	wallets      WalletStore
	tokens       token.Gateway
}

func NewCustodyServer(
	cfg *configuration.Custody,
	obs *observability.Observability,
	events EventHandler,
	intents IntentStore,
	ledger LedgerStore,
	transactions TransactionStore,
	wallets WalletStore,
	tokens token.Gateway,
) *CustodyServer {
	return &CustodyServer{
		log:       obs.Log(),
		chainCfg:  cfg.Chain,
		ledgerCcy: cfg.Gateway.LedgerCurrency,

		events:       events,
		intents:      intents,
		ledger:       ledger,
		transactions: transactions,
		wallets:      wallets,
		tokens:       tokens,
	}
}

func RegisterHandlers(router *echo.Echo, server *CustodyServer) {
	router.POST("/api/v1/fiat/webhook", server.FiatWebhook)
	router.POST("/api/v1/fiat/deposits", server.CreateDeposit)
	router.GET("/api/v1/deposits/:id", server.DepositStatus)
	router.GET("/api/v1/balances/:userID", server.Balances)
	router.GET("/api/v1/transactions/:userID", server.Transactions)
	router.POST("/api/v1/token/send", server.TokenSend)
	router.GET("/api/v1/token/receive/:userID", server.TokenReceive)
	router.POST("/api/v1/admin/credits", server.ManualCredit)
}
