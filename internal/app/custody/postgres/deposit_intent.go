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
	"time"

	"github.com/go-pg/pg"
	"github.com/go-pg/pg/orm"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/kapitor/custody/internal/models"
	"github.com/kapitor/custody/observability"
)

type DepositIntentStorage struct {
	log          *logrus.Logger
	errorCounter prometheus.Counter
	db           orm.DB
}

func NewDepositIntentStorage(obs *observability.Observability, db orm.DB) *DepositIntentStorage {
	errorCounter := obs.Counter(prometheus.CounterOpts{
		Name: "custody_deposit_intent_storage_error_counter",
		Help: "",
	})
	return &DepositIntentStorage{
		log:          obs.Log(),
		errorCounter: errorCounter,
		db:           db,
	}
}

func (s *DepositIntentStorage) Create(intent *models.DepositIntent) error {
	if intent == nil {
		s.log.Warnf("trying to insert nil deposit intent")
		return nil
	}
	if intent.ID == "" {
		intent.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if intent.RequestedAt.IsZero() {
		intent.RequestedAt = now
	}
	intent.CreatedAt = now
	intent.UpdatedAt = now

	err := s.db.Insert(intent)
	if err != nil {
		s.errorCounter.Inc()
		return errors.Wrapf(err, "failed to insert deposit intent %v", intent.ID)
	}
	return nil
}

func (s *DepositIntentStorage) ByID(id string) (*models.DepositIntent, error) {
	intent := &models.DepositIntent{}
	err := s.db.Model(intent).Where("id = ?", id).Select()
	if err == pg.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to select deposit intent %v", id)
	}
	return intent, nil
}

func (s *DepositIntentStorage) ByGatewayPaymentID(paymentID string) (*models.DepositIntent, error) {
	intent := &models.DepositIntent{}
	err := s.db.Model(intent).Where("gateway_payment_id = ?", paymentID).Select()
	if err == pg.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to select deposit intent by payment id %v", paymentID)
	}
	return intent, nil
}

func (s *DepositIntentStorage) LatestByCustomerReference(ref string) (*models.DepositIntent, error) {
	intent := &models.DepositIntent{}
	err := s.db.Model(intent).
		Where("customer_reference = ?", ref).
		Order("created_at DESC").
		Limit(1).
		Select()
	if err == pg.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to select deposit intent by customer reference %v", ref)
	}
	return intent, nil
}

// GatewayInfo carries the fiat-side fields the reconciler owns.
type GatewayInfo struct {
	GatewayPaymentID   string
	GatewayReferenceID string
	Amount             string
	Currency           string
	ReceivedAt         time.Time
}

// AttachGatewayInfo updates only fiat-side columns and flips the fiat
// status to credited. On-chain columns are never touched here so a
// concurrent tracker update cannot be lost.
func (s *DepositIntentStorage) AttachGatewayInfo(id string, info GatewayInfo) error {
	res, err := s.db.Model(&models.DepositIntent{}).
		Where("id = ?", id).
		Set("gateway_payment_id = ?", info.GatewayPaymentID).
		Set("gateway_reference_id = ?", info.GatewayReferenceID).
		Set("expected_amount = ?", info.Amount).
		Set("fiat_currency = ?", info.Currency).
		Set("fiat_status = ?", models.FiatStatusCredited).
		Set("received_at = ?", info.ReceivedAt).
		Set("updated_at = now()").
		Update()
	if err != nil {
		return errors.Wrapf(err, "failed to attach gateway info to intent %v", id)
	}
	if res.RowsAffected() == 0 {
		s.errorCounter.Inc()
		s.log.WithField("intent_id", id).Errorf("failed to attach gateway info, intent not found")
		return errors.New("failed to attach gateway info, affected is 0")
	}
	return nil
}

func (s *DepositIntentStorage) MarkMinted(id string, actualAmount string) error {
	res, err := s.db.Model(&models.DepositIntent{}).
		Where("id = ?", id).
		Set("fiat_status = ?", models.FiatStatusMinted).
		Set("status = ?", models.IntentStatusConfirmed).
		Set("actual_amount = ?", actualAmount).
		Set("updated_at = now()").
		Update()
	if err != nil {
		return errors.Wrapf(err, "failed to mark intent %v minted", id)
	}
	if res.RowsAffected() == 0 {
		s.errorCounter.Inc()
		return errors.New("failed to mark minted, affected is 0")
	}
	return nil
}

// MarkFiatFailed records a gateway failure. Minted is terminal on the fiat
// side; a late failure redelivery for a settled deposit must not flip it.
func (s *DepositIntentStorage) MarkFiatFailed(id string, reason string) error {
	res, err := s.db.Model(&models.DepositIntent{}).
		Where("id = ?", id).
		Where("fiat_status != ?", models.FiatStatusMinted).
		Set("fiat_status = ?", models.FiatStatusFailed).
		Set("status = ?", models.IntentStatusFailed).
		Set("failure_reason = ?", reason).
		Set("updated_at = now()").
		Update()
	if err != nil {
		return errors.Wrapf(err, "failed to mark intent %v failed", id)
	}
	if res.RowsAffected() == 0 {
		s.log.WithField("intent_id", id).Warnf("fiat-fail skipped, deposit already minted")
	}
	return nil
}

// SetTxInfo attaches the on-chain transaction to an intent and moves it
// under the confirmation tracker.
func (s *DepositIntentStorage) SetTxInfo(id string, txHash string, amount string) error {
	res, err := s.db.Model(&models.DepositIntent{}).
		Where("id = ?", id).
		Set("tx_hash = ?", txHash).
		Set("actual_amount = ?", amount).
		Set("status = ?", models.IntentStatusPendingConfirmation).
		Set("received_at = now()").
		Set("updated_at = now()").
		Update()
	if err != nil {
		return errors.Wrapf(err, "failed to set tx info on intent %v", id)
	}
	if res.RowsAffected() == 0 {
		s.errorCounter.Inc()
		return errors.New("failed to set tx info, affected is 0")
	}
	return nil
}

func (s *DepositIntentStorage) ListPendingConfirmation() ([]models.DepositIntent, error) {
	var intents []models.DepositIntent
	err := s.db.Model(&intents).
		Where("status = ?", models.IntentStatusPendingConfirmation).
		Where("tx_hash is not null").
		Order("created_at ASC").
		Select()
	if err != nil {
		return nil, errors.Wrap(err, "failed to select pending confirmation intents")
	}
	return intents, nil
}

func (s *DepositIntentStorage) ListFiatPendingByUser(userID string) ([]models.DepositIntent, error) {
	var intents []models.DepositIntent
	err := s.db.Model(&intents).
		Where("user_id = ?", userID).
		Where("fiat_status in (?)", pg.In([]string{
			models.FiatStatusInitiated,
			models.FiatStatusPending,
			models.FiatStatusCredited,
		})).
		Order("created_at DESC").
		Select()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to select pending deposits for user %v", userID)
	}
	return intents, nil
}

// UpdateConfirmations persists tracker progress. It is the only regular
// writer of the confirmation count and resets the receipt miss counter.
func (s *DepositIntentStorage) UpdateConfirmations(id string, confirmations int64) error {
	_, err := s.db.Model(&models.DepositIntent{}).
		Where("id = ?", id).
		Set("confirmations = ?", confirmations).
		Set("miss_count = 0").
		Set("updated_at = now()").
		Update()
	if err != nil {
		return errors.Wrapf(err, "failed to update confirmations on intent %v", id)
	}
	return nil
}

// Confirm finalizes the on-chain side once the confirmation target is met.
// The filter on the current status keeps confirmed terminal.
func (s *DepositIntentStorage) Confirm(id string, confirmations int64) error {
	res, err := s.db.Model(&models.DepositIntent{}).
		Where("id = ?", id).
		Where("status = ?", models.IntentStatusPendingConfirmation).
		Set("status = ?", models.IntentStatusConfirmed).
		Set("confirmations = ?", confirmations).
		Set("miss_count = 0").
		Set("updated_at = now()").
		Update()
	if err != nil {
		return errors.Wrapf(err, "failed to confirm intent %v", id)
	}
	if res.RowsAffected() == 0 {
		s.log.WithField("intent_id", id).Warnf("confirm skipped, intent no longer pending")
	}
	return nil
}

func (s *DepositIntentStorage) MarkChainFailed(id string, reason string) error {
	res, err := s.db.Model(&models.DepositIntent{}).
		Where("id = ?", id).
		Where("status = ?", models.IntentStatusPendingConfirmation).
		Set("status = ?", models.IntentStatusFailed).
		Set("failure_reason = ?", reason).
		Set("updated_at = now()").
		Update()
	if err != nil {
		return errors.Wrapf(err, "failed to mark intent %v chain-failed", id)
	}
	if res.RowsAffected() == 0 {
		s.log.WithField("intent_id", id).Warnf("chain-fail skipped, intent no longer pending")
	}
	return nil
}

// IncrementMiss bumps the consecutive receipt-miss counter and returns the
// new value so the tracker can apply its escalation threshold.
func (s *DepositIntentStorage) IncrementMiss(id string) (int64, error) {
	var count int64
	_, err := s.db.Query(pg.Scan(&count), `
		update deposit_intents
		set miss_count = miss_count + 1, updated_at = now()
		where id = ?
		returning miss_count`,
		id,
	)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to increment miss count on intent %v", id)
	}
	return count, nil
}
