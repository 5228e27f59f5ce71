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

// Package tracker follows on-chain deposits until they gather enough
// confirmations or provably never will.
package tracker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/kapitor/custody/configuration"
	"github.com/kapitor/custody/internal/app/custody/postgres"
	"github.com/kapitor/custody/internal/models"
	"github.com/kapitor/custody/observability"
)

// ChainReader is the slice of the Ethereum client the tracker needs.
// *ethclient.Client satisfies it.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type IntentStore interface {
	ListPendingConfirmation() ([]models.DepositIntent, error)
	UpdateConfirmations(id string, confirmations int64) error
	Confirm(id string, confirmations int64) error
	MarkChainFailed(id string, reason string) error
	IncrementMiss(id string) (int64, error)
}

type TransactionStore interface {
	ListPending() ([]models.Transaction, error)
	UpdateByHash(txHash, chain string, upd postgres.TxUpdate) error
}

type Tracker struct {
	log      *logrus.Logger
	cfg      configuration.Tracker
	chainCfg configuration.Chain

	intents      IntentStore
	transactions TransactionStore
	chain        ChainReader

	metrics  *observability.TrackerMetrics
	sweeping int32
	stop     chan struct{}
	done     chan struct{}
}

// New builds a tracker. A nil chain reader puts the tracker into degraded
// mode: the loop still runs but every sweep is a no-op.
func New(
	cfg *configuration.Custody,
	obs *observability.Observability,
	intents IntentStore,
	transactions TransactionStore,
	chain ChainReader,
) *Tracker {
	return &Tracker{
		log:      obs.Log(),
		cfg:      cfg.Tracker,
		chainCfg: cfg.Chain,

		intents:      intents,
		transactions: transactions,
		chain:        chain,

		metrics: observability.MakeTrackerMetrics(obs),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (t *Tracker) Start() {
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				t.Sweep(context.Background())
			}
		}
	}()
}

func (t *Tracker) Stop() {
	close(t.stop)
	<-t.done
}

// Sweep walks every deposit awaiting confirmation and every pending
// transaction record once. Sweeps never overlap: if the previous one is
// still running the call returns immediately.
func (t *Tracker) Sweep(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&t.sweeping, 0, 1) {
		t.log.Debug("previous sweep still running, skipping")
		return
	}
	defer atomic.StoreInt32(&t.sweeping, 0)

	if t.chain == nil {
		t.log.Debug("no chain client, skipping confirmation sweep")
		return
	}

	started := time.Now()
	defer func() {
		t.metrics.SweepDuration.Set(time.Since(started).Seconds())
	}()

	headCtx, cancel := context.WithTimeout(ctx, t.cfg.IntentTimeout)
	head, err := t.chain.BlockNumber(headCtx)
	cancel()
	if err != nil {
		t.log.Errorf("failed to fetch chain head: %v", err)
		return
	}

	intents, err := t.intents.ListPendingConfirmation()
	if err != nil {
		t.log.Error(err)
		return
	}
	for i := range intents {
		// one bad deposit must not block the rest of the sweep
		t.trackIntent(ctx, head, &intents[i])
	}

	pending, err := t.transactions.ListPending()
	if err != nil {
		t.log.Error(err)
		return
	}
	for i := range pending {
		t.trackTransaction(ctx, head, &pending[i])
	}
}

func (t *Tracker) trackIntent(ctx context.Context, head uint64, intent *models.DepositIntent) {
	log := t.log.WithField("intent_id", intent.ID).WithField("tx_hash", *intent.TxHash)

	receipt, err := t.lookupReceipt(ctx, *intent.TxHash)
	if err == ethereum.NotFound {
		misses, err := t.intents.IncrementMiss(intent.ID)
		if err != nil {
			log.Error(err)
			return
		}
		if misses >= t.cfg.MissThreshold {
			log.Warnf("receipt still missing after %d sweeps, dropping deposit", misses)
			if err := t.intents.MarkChainFailed(intent.ID, "transaction not found on chain"); err != nil {
				log.Error(err)
				return
			}
			t.metrics.Dropped.Inc()
		}
		return
	}
	if err != nil {
		log.Errorf("receipt lookup failed: %v", err)
		return
	}

	if receipt.Status == types.ReceiptStatusFailed {
		log.Warn("deposit transaction reverted")
		if err := t.intents.MarkChainFailed(intent.ID, "transaction reverted"); err != nil {
			log.Error(err)
			return
		}
		t.metrics.Dropped.Inc()
		return
	}

	confirmations := confirmationCount(head, receipt.BlockNumber.Uint64())
	if confirmations >= t.cfg.ConfirmationTarget {
		if err := t.intents.Confirm(intent.ID, confirmations); err != nil {
			log.Error(err)
			return
		}
		t.metrics.Confirmed.Inc()
		log.Infof("deposit confirmed at %d confirmations", confirmations)
		return
	}
	// confirmations only ever grow; a lagging node must not rewind them.
	// The receipt was still seen, so the miss streak resets either way.
	if confirmations <= intent.Confirmations {
		if err := t.intents.UpdateConfirmations(intent.ID, intent.Confirmations); err != nil {
			log.Error(err)
		}
		return
	}
	if err := t.intents.UpdateConfirmations(intent.ID, confirmations); err != nil {
		log.Error(err)
	}
}

func (t *Tracker) trackTransaction(ctx context.Context, head uint64, tx *models.Transaction) {
	log := t.log.WithField("tx_hash", *tx.TxHash)

	receipt, err := t.lookupReceipt(ctx, *tx.TxHash)
	if err == ethereum.NotFound {
		return
	}
	if err != nil {
		log.Errorf("receipt lookup failed: %v", err)
		return
	}

	block := int64(receipt.BlockNumber.Uint64())
	upd := postgres.TxUpdate{
		BlockNumber:   &block,
		Confirmations: confirmationCount(head, receipt.BlockNumber.Uint64()),
		Status:        models.TxStatusPending,
	}
	switch {
	case receipt.Status == types.ReceiptStatusFailed:
		upd.Status = models.TxStatusFailed
		upd.FailureReason = "transaction reverted"
	case upd.Confirmations >= t.cfg.ConfirmationTarget:
		upd.Status = models.TxStatusConfirmed
	case upd.Confirmations <= tx.Confirmations:
		return
	}
	if err := t.transactions.UpdateByHash(*tx.TxHash, tx.Chain, upd); err != nil {
		log.Error(err)
	}
}

func (t *Tracker) lookupReceipt(ctx context.Context, hash string) (*types.Receipt, error) {
	receiptCtx, cancel := context.WithTimeout(ctx, t.cfg.IntentTimeout)
	defer cancel()
	return t.chain.TransactionReceipt(receiptCtx, common.HexToHash(hash))
}

// confirmationCount is inclusive of the block that mined the transaction.
func confirmationCount(head, block uint64) int64 {
	if head < block {
		return 0
	}
	return int64(head-block) + 1
}
