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
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kapitor/custody/internal/models"
	"github.com/kapitor/custody/observability"
)

type LedgerStorage struct {
	log          *logrus.Logger
	errorCounter prometheus.Counter
	db           orm.DB
}

func NewLedgerStorage(obs *observability.Observability, db orm.DB) *LedgerStorage {
	errorCounter := obs.Counter(prometheus.CounterOpts{
		Name: "custody_ledger_storage_error_counter",
		Help: "",
	})
	return &LedgerStorage{
		log:          obs.Log(),
		errorCounter: errorCounter,
		db:           db,
	}
}

// CreateOrFetch inserts the entry unless one already exists for the same
// gateway payment id. The partial unique index on gateway_payment_id is
// the arbiter, so two concurrent webhook deliveries cannot both insert;
// the loser fetches the winner's row. Returns the surviving entry and
// whether this call created it.
func (s *LedgerStorage) CreateOrFetch(entry *models.LedgerEntry) (*models.LedgerEntry, bool, error) {
	if entry == nil {
		s.log.Warnf("trying to insert nil ledger entry")
		return nil, false, errors.New("nil ledger entry")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = now
	}
	entry.CreatedAt = now

	if entry.GatewayPaymentID == nil {
		err := s.db.Insert(entry)
		if err != nil {
			s.errorCounter.Inc()
			return nil, false, errors.Wrap(err, "failed to insert ledger entry")
		}
		return entry, true, nil
	}

	res, err := s.db.Model(entry).
		OnConflict("(gateway_payment_id) WHERE gateway_payment_id IS NOT NULL DO NOTHING").
		Insert()
	if err != nil {
		s.errorCounter.Inc()
		return nil, false, errors.Wrapf(err, "failed to upsert ledger entry for payment %v", *entry.GatewayPaymentID)
	}
	if res.RowsAffected() == 0 {
		existing, err := s.ByGatewayPaymentID(*entry.GatewayPaymentID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, errors.Errorf("ledger entry for payment %v vanished after conflict", *entry.GatewayPaymentID)
		}
		return existing, false, nil
	}
	return entry, true, nil
}

func (s *LedgerStorage) ByGatewayPaymentID(paymentID string) (*models.LedgerEntry, error) {
	entry := &models.LedgerEntry{}
	err := s.db.Model(entry).Where("gateway_payment_id = ?", paymentID).Select()
	if err == pg.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to select ledger entry by payment id %v", paymentID)
	}
	return entry, nil
}

// Settle moves a credited entry to settled. Settled entries are immutable,
// so the update filters on the current status; settling an already settled
// entry is a no-op, anything else is an error.
func (s *LedgerStorage) Settle(id string, notes string) error {
	res, err := s.db.Model(&models.LedgerEntry{}).
		Where("id = ?", id).
		Where("status = ?", models.EntryStatusCredited).
		Set("status = ?", models.EntryStatusSettled).
		Set("notes = ?", notes).
		Update()
	if err != nil {
		return errors.Wrapf(err, "failed to settle ledger entry %v", id)
	}
	if res.RowsAffected() == 0 {
		entry := &models.LedgerEntry{}
		err := s.db.Model(entry).Where("id = ?", id).Select()
		if err != nil {
			s.errorCounter.Inc()
			return errors.Wrapf(err, "failed to settle ledger entry %v, entry not found", id)
		}
		if entry.Status == models.EntryStatusSettled {
			return nil
		}
		s.errorCounter.Inc()
		return errors.Errorf("ledger entry %v is %v, cannot settle", id, entry.Status)
	}
	return nil
}

// Balance is the user's available fiat balance: credits minus debits over
// entries in credited or settled state.
func (s *LedgerStorage) Balance(userID string) (decimal.Decimal, error) {
	var total string
	_, err := s.db.Query(pg.Scan(&total), `
		select coalesce(sum(
			case when type = ? then amount::numeric else -amount::numeric end
		), 0)::text
		from ledger_entries
		where user_id = ? and status in (?, ?)`,
		models.EntryTypeCredit, userID, models.EntryStatusCredited, models.EntryStatusSettled,
	)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to sum ledger for user %v", userID)
	}
	balance, err := decimal.NewFromString(total)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to parse ledger sum %q", total)
	}
	return balance, nil
}

func (s *LedgerStorage) ListByUser(userID string, limit, offset int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.db.Model(&entries).
		Where("user_id = ?", userID).
		Order("occurred_at DESC").
		Limit(limit).
		Offset(offset).
		Select()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list ledger entries for user %v", userID)
	}
	return entries, nil
}
