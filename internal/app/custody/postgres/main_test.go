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
	"os"
	"testing"

	"github.com/go-pg/pg"

	"github.com/kapitor/custody/configuration"
	"github.com/kapitor/custody/internal/models"
	"github.com/kapitor/custody/internal/testutils"
	"github.com/kapitor/custody/observability"
)

var db *pg.DB

func TestMain(m *testing.M) {
	var cleaner func()
	db, _, cleaner = testutils.SetupDB("../../../../scripts/migrations")

	code := m.Run()
	cleaner()
	os.Exit(code)
}

func makeStorages(t *testing.T) (*DepositIntentStorage, *LedgerStorage, *TransactionStorage, *WalletStorage) {
	t.Helper()
	testutils.TruncateTables(t, db, []interface{}{
		&models.DepositIntent{},
		&models.LedgerEntry{},
		&models.Transaction{},
		&models.Wallet{},
	})
	obs := observability.Make(configuration.Default().Log)
	return NewDepositIntentStorage(obs, db),
		NewLedgerStorage(obs, db),
		NewTransactionStorage(obs, db),
		NewWalletStorage(obs, db)
}
