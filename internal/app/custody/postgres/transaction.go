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

package postgres

import (
	"github.com/go-pg/pg"
	"github.com/go-pg/pg/orm"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/kapitor/custody/internal/models"
	"github.com/kapitor/custody/observability"
)

type TransactionStorage struct {
	log          *logrus.Logger
	errorCounter prometheus.Counter
	db           orm.DB
}

func NewTransactionStorage(obs *observability.Observability, db orm.DB) *TransactionStorage {
	errorCounter := obs.Counter(prometheus.CounterOpts{
		Name: "custody_transaction_storage_error_counter",
		Help: "",
	})
	return &TransactionStorage{
		log:          obs.Log(),
		errorCounter: errorCounter,
		db:           db,
	}
}

// Insert logs an on-chain action. The partial unique index on
// (tx_hash, chain) makes observing the same transaction twice a silent
// no-op rather than an error.
func (s *TransactionStorage) Insert(tx *models.Transaction) error {
	if tx == nil {
		s.log.Warnf("trying to insert nil transaction")
		return nil
	}
	query := s.db.Model(tx)
	if tx.TxHash != nil {
		query = query.OnConflict("(tx_hash, chain) WHERE tx_hash IS NOT NULL DO NOTHING")
	}
	res, err := query.Insert()
	if err != nil {
		s.errorCounter.Inc()
		return errors.Wrap(err, "failed to insert transaction")
	}
	if res.RowsAffected() == 0 {
		s.log.WithField("tx_hash", tx.TxHash).Debugf("transaction already logged")
	}
	return nil
}

// TxUpdate carries tracker-owned columns.
type TxUpdate struct {
	BlockNumber   *int64
	Confirmations int64
	Status        string
	FailureReason string
}

func (s *TransactionStorage) UpdateByHash(txHash, chain string, upd TxUpdate) error {
	query := s.db.Model(&models.Transaction{}).
		Where("tx_hash = ?", txHash).
		Where("chain = ?", chain).
		Set("confirmations = ?", upd.Confirmations).
		Set("status = ?", upd.Status)
	if upd.BlockNumber != nil {
		query = query.Set("block_number = ?", *upd.BlockNumber)
	}
	if upd.FailureReason != "" {
		query = query.Set("failure_reason = ?", upd.FailureReason)
	}
	_, err := query.Update()
	if err != nil {
		return errors.Wrapf(err, "failed to update transaction %v", txHash)
	}
	return nil
}

func (s *TransactionStorage) ByHash(txHash, chain string) (*models.Transaction, error) {
	tx := &models.Transaction{}
	err := s.db.Model(tx).
		Where("tx_hash = ?", txHash).
		Where("chain = ?", chain).
		Select()
	if err == pg.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to select transaction %v", txHash)
	}
	return tx, nil
}

func (s *TransactionStorage) ListPending() ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.Model(&txs).
		Where("status = ?", models.TxStatusPending).
		Where("tx_hash is not null").
		Order("created_at ASC").
		Select()
	if err != nil {
		return nil, errors.Wrap(err, "failed to select pending transactions")
	}
	return txs, nil
}

func (s *TransactionStorage) ListByUser(userID string, limit, offset int) ([]models.Transaction, int, error) {
	var txs []models.Transaction
	count, err := s.db.Model(&txs).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		SelectAndCount()
	if err != nil {
		return nil, 0, errors.Wrapf(err, "failed to list transactions for user %v", userID)
	}
	return txs, count, nil
}
