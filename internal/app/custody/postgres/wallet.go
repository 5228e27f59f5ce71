// Copyright 2026 Kapitor Technologies Ltd.
// All rights reserved.
// This material is licensed under the Apache License 2.0,
// available at https://github.com/kapitor/custody/blob/master/LICENSE.md.

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

type WalletStorage struct {
	log          *logrus.Logger
	errorCounter prometheus.Counter
	db           orm.DB
}

func NewWalletStorage(obs *observability.Observability, db orm.DB) *WalletStorage {
	errorCounter := obs.Counter(prometheus.CounterOpts{
		Name: "custody_wallet_storage_error_counter",
		Help: "",
	})
	return &WalletStorage{
		log:          obs.Log(),
		errorCounter: errorCounter,
		db:           db,
	}
}

func (s *WalletStorage) Insert(wallet *models.Wallet) error {
	if wallet == nil {
		s.log.Warnf("trying to insert nil wallet")
		return nil
	}
	err := s.db.Insert(wallet)
	if err != nil {
		s.errorCounter.Inc()
		return errors.Wrapf(err, "failed to insert wallet for user %v", wallet.UserID)
	}
	return nil
}

func (s *WalletStorage) ByUserID(userID string) (*models.Wallet, error) {
	wallet := &models.Wallet{}
	err := s.db.Model(wallet).Where("user_id = ?", userID).Select()
	if err == pg.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to select wallet for user %v", userID)
	}
	return wallet, nil
}

func (s *WalletStorage) ByVirtualAccountID(vaID string) (*models.Wallet, error) {
	wallet := &models.Wallet{}
	err := s.db.Model(wallet).Where("virtual_account_id = ?", vaID).Select()
	if err == pg.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to select wallet by virtual account %v", vaID)
	}
	return wallet, nil
}
