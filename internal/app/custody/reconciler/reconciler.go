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

// Package reconciler turns one verified payment-gateway event into an
// exactly-once ledger credit and token mint. Idempotency leans on the
// storage uniqueness constraints, not on in-process state: the handler
// holds nothing between invocations and may run concurrently with a
// redelivery of the same event.
package reconciler

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kapitor/custody/configuration"
	"github.com/kapitor/custody/internal/app/custody"
	"github.com/kapitor/custody/internal/app/custody/currency"
	"github.com/kapitor/custody/internal/app/custody/postgres"
	"github.com/kapitor/custody/internal/app/custody/token"
	"github.com/kapitor/custody/internal/models"
	"github.com/kapitor/custody/observability"
)

type IntentStore interface {
	Create(intent *models.DepositIntent) error
	ByGatewayPaymentID(paymentID string) (*models.DepositIntent, error)
	LatestByCustomerReference(ref string) (*models.DepositIntent, error)
	AttachGatewayInfo(id string, info postgres.GatewayInfo) error
	MarkMinted(id string, actualAmount string) error
	MarkFiatFailed(id string, reason string) error
}

type LedgerStore interface {
	CreateOrFetch(entry *models.LedgerEntry) (*models.LedgerEntry, bool, error)
	Settle(id string, notes string) error
}

type TransactionStore interface {
	Insert(tx *models.Transaction) error
}

type WalletFinder interface {
	ByUserID(userID string) (*models.Wallet, error)
	ByVirtualAccountID(vaID string) (*models.Wallet, error)
}

type Reconciler struct {
	log       *logrus.Logger
	gatewayCfg configuration.Gateway
	chainCfg  configuration.Chain

	intents      IntentStore
	ledger       LedgerStore
	transactions TransactionStore
	wallets      WalletFinder
	minter       token.Gateway
	converter    *currency.Converter

	metrics *observability.SettlementMetrics
}

func New(
	cfg *configuration.Custody,
	obs *observability.Observability,
	intents IntentStore,
	ledger LedgerStore,
	transactions TransactionStore,
	wallets WalletFinder,
	minter token.Gateway,
	converter *currency.Converter,
) *Reconciler {
	return &Reconciler{
		log:        obs.Log(),
		gatewayCfg: cfg.Gateway,
		chainCfg:   cfg.Chain,

		intents:      intents,
		ledger:       ledger,
		transactions: transactions,
		wallets:      wallets,
		minter:       minter,
		converter:    converter,

		metrics: observability.MakeSettlementMetrics(obs, "processed"),
	}
}

// HandleVerifiedEvent processes one normalized gateway event. The caller
// guarantees signature and replay-window checks already passed. Errors are
// reduced to a structured Result at this boundary; replaying the same
// event converges on the same terminal outcome.
func (r *Reconciler) HandleVerifiedEvent(ctx context.Context, ev custody.GatewayEvent) custody.Result {
	r.metrics.Events.Inc()

	switch ev.Kind {
	case custody.KindSucceeded:
		return r.handleSucceeded(ctx, ev)
	case custody.KindFailed:
		return r.handleFailed(ev)
	default:
		r.log.WithField("reason", ev.Reason).Info("ignoring unhandled gateway event")
		return custody.Ignored(ev.Reason)
	}
}

func (r *Reconciler) handleSucceeded(ctx context.Context, ev custody.GatewayEvent) custody.Result {
	if ev.Amount <= 0 {
		return custody.Invalid("amount must be greater than zero")
	}

	intent, res := r.resolveIntent(ev)
	if intent == nil {
		return res
	}
	log := r.log.WithField("intent_id", intent.ID).WithField("payment_id", ev.GatewayPaymentID)

	// Idempotent short-circuit: once minted, a redelivery must cause no
	// further writes.
	if intent.FiatStatus == models.FiatStatusMinted {
		r.metrics.Duplicates.Inc()
		return custody.Already(intent.ID)
	}

	code := strings.ToUpper(ev.Currency)
	major := currency.FromMinorUnits(ev.Amount, code)
	credited, err := r.converter.ToLedgerUnit(major, code)
	if err != nil {
		log.Error(err)
		return custody.Failed(err.Error())
	}

	err = r.intents.AttachGatewayInfo(intent.ID, postgres.GatewayInfo{
		GatewayPaymentID:   ev.GatewayPaymentID,
		GatewayReferenceID: ev.ReferenceID,
		Amount:             major.String(),
		Currency:           code,
		ReceivedAt:         ev.OccurredAt,
	})
	if err != nil {
		log.Error(err)
		return custody.Failed(err.Error())
	}

	entry := &models.LedgerEntry{
		UserID:      intent.UserID,
		Type:        models.EntryTypeCredit,
		Source:      models.EntrySourceDeposit,
		Amount:      credited.String(),
		Currency:    r.converter.LedgerCurrency,
		Status:      models.EntryStatusCredited,
		ReferenceID: ev.ReferenceID,
		OccurredAt:  ev.OccurredAt,
	}
	if ev.GatewayPaymentID != "" {
		paymentID := ev.GatewayPaymentID
		entry.GatewayPaymentID = &paymentID
	}
	entry, created, err := r.ledger.CreateOrFetch(entry)
	if err != nil {
		log.Error(err)
		return custody.Failed(err.Error())
	}
	if !created && entry.Status == models.EntryStatusSettled {
		r.metrics.Duplicates.Inc()
		return custody.Already(intent.ID)
	}
	if created {
		r.metrics.Credits.Inc()
	}

	wallet, err := r.wallets.ByUserID(intent.UserID)
	if err != nil {
		log.Error(err)
		return custody.Failed(err.Error())
	}
	if wallet == nil {
		// Fatal for this event: the credit stays on the ledger, the mint
		// is resolved by manual reconciliation.
		log.Errorf("wallet not found for user %v, deposit needs manual reconciliation", intent.UserID)
		return custody.Failed("wallet not found for user " + intent.UserID)
	}

	mintCtx, cancel := context.WithTimeout(ctx, r.gatewayCfg.MintTimeout)
	defer cancel()
	minted, err := r.minter.Mint(mintCtx, wallet.Address, credited)
	if err != nil {
		// A timed-out or failed mint leaves the entry credited, never
		// settled, so a redelivery retries from a clean state.
		log.Error(err)
		return custody.Failed(err.Error())
	}
	r.metrics.Mints.Inc()

	if err := r.ledger.Settle(entry.ID, r.chainCfg.TokenSymbol+" minted"); err != nil {
		log.WithField("tx_hash", minted.TxHash).
			Errorf("mint succeeded but settlement persistence failed, run ledger reconciliation: %v", err)
		return custody.Failed(err.Error())
	}
	if err := r.intents.MarkMinted(intent.ID, credited.String()); err != nil {
		log.WithField("tx_hash", minted.TxHash).
			Errorf("mint succeeded but intent update failed, run ledger reconciliation: %v", err)
		return custody.Failed(err.Error())
	}
	r.metrics.Settlements.Inc()

	record := &models.Transaction{
		UserID:       intent.UserID,
		Chain:        r.chainCfg.Chain,
		Network:      r.chainCfg.Network,
		FromAddress:  "treasury",
		ToAddress:    wallet.Address,
		AssetType:    models.TxAssetToken,
		TokenAddress: r.chainCfg.TokenAddress,
		Symbol:       r.chainCfg.TokenSymbol,
		Decimals:     r.chainCfg.TokenDecimals,
		Amount:       credited.String(),
		Direction:    models.TxDirectionIn,
		Type:         models.TxTypeMint,
		Status:       models.TxStatusPending,
		RawTx:        ev.RawPayload,
	}
	if minted.Mock {
		// No confirmation will ever arrive for a synthetic mint.
		record.Status = models.TxStatusConfirmed
	} else {
		hash := minted.TxHash
		record.TxHash = &hash
	}
	if err := r.transactions.Insert(record); err != nil {
		// the settlement itself is durable, only the audit row is lost
		log.Error(err)
	}

	return custody.Processed(intent.ID, entry.ID, minted.TxHash)
}

func (r *Reconciler) handleFailed(ev custody.GatewayEvent) custody.Result {
	intent, res := r.lookupIntent(ev)
	if intent == nil {
		if res.Status == custody.StatusFailed {
			return res
		}
		r.log.WithField("payment_id", ev.GatewayPaymentID).
			Warn("failure event for unknown deposit, flagging for manual review")
		return custody.Failed("no deposit for payment " + ev.GatewayPaymentID)
	}
	// A failure arriving after settlement is a stale redelivery; minted
	// stays terminal.
	if intent.FiatStatus == models.FiatStatusMinted {
		r.metrics.Duplicates.Inc()
		return custody.Already(intent.ID)
	}
	reason := ev.Reason
	if reason == "" {
		reason = "payment failed"
	}
	if err := r.intents.MarkFiatFailed(intent.ID, reason); err != nil {
		r.log.Error(err)
		return custody.Failed(err.Error())
	}
	return custody.Result{Status: custody.StatusProcessed, IntentID: intent.ID, Reason: reason}
}

// ManualCredit applies an operator-approved credit outside the gateway
// flow. The amount is denominated in the ledger currency and runs through
// the same credit, mint and settle sequence as a gateway deposit so the
// ledger and the token supply stay aligned.
func (r *Reconciler) ManualCredit(ctx context.Context, userID string, amount decimal.Decimal, notes string) custody.Result {
	if !amount.IsPositive() {
		return custody.Invalid("amount must be greater than zero")
	}
	log := r.log.WithField("user_id", userID)

	wallet, err := r.wallets.ByUserID(userID)
	if err != nil {
		log.Error(err)
		return custody.Failed(err.Error())
	}
	if wallet == nil {
		return custody.Failed("wallet not found for user " + userID)
	}

	intent := &models.DepositIntent{
		UserID:         userID,
		WalletAddress:  wallet.Address,
		TokenSymbol:    r.chainCfg.TokenSymbol,
		Network:        r.chainCfg.Network,
		ExpectedAmount: amount.String(),
		FiatCurrency:   r.converter.LedgerCurrency,
		Status:         models.IntentStatusWaiting,
		FiatStatus:     models.FiatStatusCredited,
		Type:           models.IntentTypeManual,
	}
	if err := r.intents.Create(intent); err != nil {
		log.Error(err)
		return custody.Failed(err.Error())
	}
	r.metrics.Intents.Inc()

	entry, _, err := r.ledger.CreateOrFetch(&models.LedgerEntry{
		UserID:     userID,
		Type:       models.EntryTypeCredit,
		Source:     models.EntrySourceManual,
		Amount:     amount.String(),
		Currency:   r.converter.LedgerCurrency,
		Status:     models.EntryStatusCredited,
		Notes:      notes,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		log.Error(err)
		return custody.Failed(err.Error())
	}
	r.metrics.Credits.Inc()

	mintCtx, cancel := context.WithTimeout(ctx, r.gatewayCfg.MintTimeout)
	defer cancel()
	minted, err := r.minter.Mint(mintCtx, wallet.Address, amount)
	if err != nil {
		log.Error(err)
		return custody.Failed(err.Error())
	}
	r.metrics.Mints.Inc()

	settleNote := notes
	if settleNote == "" {
		settleNote = "manual credit"
	}
	if err := r.ledger.Settle(entry.ID, settleNote); err != nil {
		log.Errorf("mint succeeded but settlement persistence failed, run ledger reconciliation: %v", err)
		return custody.Failed(err.Error())
	}
	if err := r.intents.MarkMinted(intent.ID, amount.String()); err != nil {
		log.Errorf("mint succeeded but intent update failed, run ledger reconciliation: %v", err)
		return custody.Failed(err.Error())
	}
	r.metrics.Settlements.Inc()

	record := &models.Transaction{
		UserID:       userID,
		Chain:        r.chainCfg.Chain,
		Network:      r.chainCfg.Network,
		FromAddress:  "treasury",
		ToAddress:    wallet.Address,
		AssetType:    models.TxAssetToken,
		TokenAddress: r.chainCfg.TokenAddress,
		Symbol:       r.chainCfg.TokenSymbol,
		Decimals:     r.chainCfg.TokenDecimals,
		Amount:       amount.String(),
		Direction:    models.TxDirectionIn,
		Type:         models.TxTypeMint,
		Status:       models.TxStatusPending,
	}
	if minted.Mock {
		record.Status = models.TxStatusConfirmed
	} else {
		hash := minted.TxHash
		record.TxHash = &hash
	}
	if err := r.transactions.Insert(record); err != nil {
		log.Error(err)
	}

	return custody.Processed(intent.ID, entry.ID, minted.TxHash)
}

// lookupIntent finds an existing intent by payment id, then by customer
// correlation. It never creates one.
func (r *Reconciler) lookupIntent(ev custody.GatewayEvent) (*models.DepositIntent, custody.Result) {
	if ev.GatewayPaymentID != "" {
		intent, err := r.intents.ByGatewayPaymentID(ev.GatewayPaymentID)
		if err != nil {
			r.log.Error(err)
			return nil, custody.Failed(err.Error())
		}
		if intent != nil {
			return intent, custody.Result{}
		}
	}
	if ev.CustomerReference != "" {
		intent, err := r.intents.LatestByCustomerReference(ev.CustomerReference)
		if err != nil {
			r.log.Error(err)
			return nil, custody.Failed(err.Error())
		}
		if intent != nil {
			return intent, custody.Result{}
		}
	}
	return nil, custody.Result{}
}

// resolveIntent finds the target intent or lazily creates one for a
// gateway-initiated deposit with no prior user-created intent.
func (r *Reconciler) resolveIntent(ev custody.GatewayEvent) (*models.DepositIntent, custody.Result) {
	intent, res := r.lookupIntent(ev)
	if intent != nil || res.Status == custody.StatusFailed {
		return intent, res
	}

	wallet, err := r.resolveWallet(ev.CustomerReference)
	if err != nil {
		r.log.Error(err)
		return nil, custody.Failed(err.Error())
	}
	if wallet == nil {
		r.log.WithField("customer_reference", ev.CustomerReference).
			Error("no account mapped for gateway event, flagging for manual review")
		return nil, custody.Failed("no account mapped for reference " + ev.CustomerReference)
	}

	intent = &models.DepositIntent{
		UserID:            wallet.UserID,
		WalletAddress:     wallet.Address,
		TokenSymbol:       r.chainCfg.TokenSymbol,
		Network:           r.chainCfg.Network,
		ExpectedAmount:    currency.FromMinorUnits(ev.Amount, ev.Currency).String(),
		FiatCurrency:      strings.ToUpper(ev.Currency),
		Status:            models.IntentStatusWaiting,
		FiatStatus:        models.FiatStatusPending,
		Type:              models.IntentTypeRequest,
		CustomerReference: ev.CustomerReference,
	}
	if err := r.intents.Create(intent); err != nil {
		r.log.Error(err)
		return nil, custody.Failed(err.Error())
	}
	r.metrics.Intents.Inc()
	return intent, custody.Result{}
}

func (r *Reconciler) resolveWallet(customerReference string) (*models.Wallet, error) {
	if customerReference == "" {
		return nil, nil
	}
	wallet, err := r.wallets.ByVirtualAccountID(customerReference)
	if err != nil || wallet != nil {
		return wallet, err
	}
	// payment-intent style references carry the user id directly
	return r.wallets.ByUserID(customerReference)
}
