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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kapitor/custody/internal/models"
)

func creditEntry(userID, paymentID, amount string) *models.LedgerEntry {
	entry := &models.LedgerEntry{
		UserID:   userID,
		Type:     models.EntryTypeCredit,
		Source:   models.EntrySourceDeposit,
		Amount:   amount,
		Currency: "USD",
		Status:   models.EntryStatusCredited,
	}
	if paymentID != "" {
		id := paymentID
		entry.GatewayPaymentID = &id
	}
	return entry
}

func TestLedgerStorage_CreateOrFetch(t *testing.T) {
	t.Run("duplicate payment id resolves to the first entry", func(t *testing.T) {
		_, ledger, _, _ := makeStorages(t)

		first, created, err := ledger.CreateOrFetch(creditEntry("uid_1", "pay_1", "100"))
		require.NoError(t, err)
		require.True(t, created)

		second, created, err := ledger.CreateOrFetch(creditEntry("uid_1", "pay_1", "100"))
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, first.ID, second.ID)

		count, err := db.Model(&models.LedgerEntry{}).Count()
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("entries without a payment id always insert", func(t *testing.T) {
		_, ledger, _, _ := makeStorages(t)

		_, created, err := ledger.CreateOrFetch(creditEntry("uid_1", "", "10"))
		require.NoError(t, err)
		require.True(t, created)

		_, created, err = ledger.CreateOrFetch(creditEntry("uid_1", "", "10"))
		require.NoError(t, err)
		require.True(t, created)

		count, err := db.Model(&models.LedgerEntry{}).Count()
		require.NoError(t, err)
		require.Equal(t, 2, count)
	})
}

func TestLedgerStorage_Settle(t *testing.T) {
	_, ledger, _, _ := makeStorages(t)

	entry, _, err := ledger.CreateOrFetch(creditEntry("uid_1", "pay_1", "100"))
	require.NoError(t, err)

	require.NoError(t, ledger.Settle(entry.ID, "KPT minted"))

	settled, err := ledger.ByGatewayPaymentID("pay_1")
	require.NoError(t, err)
	require.Equal(t, models.EntryStatusSettled, settled.Status)
	require.Equal(t, "KPT minted", settled.Notes)

	// settling twice is an explicit no-op
	require.NoError(t, ledger.Settle(entry.ID, "KPT minted"))

	// anything that is not credited cannot be settled
	pending := creditEntry("uid_1", "pay_2", "50")
	pending.Status = models.EntryStatusPending
	entry, _, err = ledger.CreateOrFetch(pending)
	require.NoError(t, err)
	require.Error(t, ledger.Settle(entry.ID, ""))
}

func TestLedgerStorage_Balance(t *testing.T) {
	_, ledger, _, _ := makeStorages(t)

	_, _, err := ledger.CreateOrFetch(creditEntry("uid_1", "pay_1", "100.50"))
	require.NoError(t, err)

	settledCredit, _, err := ledger.CreateOrFetch(creditEntry("uid_1", "pay_2", "49.50"))
	require.NoError(t, err)
	require.NoError(t, ledger.Settle(settledCredit.ID, ""))

	debit := creditEntry("uid_1", "", "30")
	debit.Type = models.EntryTypeDebit
	debit.Source = models.EntrySourceWithdrawal
	_, _, err = ledger.CreateOrFetch(debit)
	require.NoError(t, err)

	// pending entries do not count towards the available balance
	uncounted := creditEntry("uid_1", "", "1000")
	uncounted.Status = models.EntryStatusPending
	_, _, err = ledger.CreateOrFetch(uncounted)
	require.NoError(t, err)

	// other users do not leak in
	_, _, err = ledger.CreateOrFetch(creditEntry("uid_2", "pay_3", "77"))
	require.NoError(t, err)

	balance, err := ledger.Balance("uid_1")
	require.NoError(t, err)
	require.Equal(t, "120", balance.String())

	empty, err := ledger.Balance("uid_nobody")
	require.NoError(t, err)
	require.True(t, empty.IsZero())
}

func TestLedgerStorage_ListByUser(t *testing.T) {
	_, ledger, _, _ := makeStorages(t)

	for _, paymentID := range []string{"pay_1", "pay_2", "pay_3"} {
		_, _, err := ledger.CreateOrFetch(creditEntry("uid_1", paymentID, "10"))
		require.NoError(t, err)
	}
	_, _, err := ledger.CreateOrFetch(creditEntry("uid_2", "pay_9", "10"))
	require.NoError(t, err)

	page, err := ledger.ListByUser("uid_1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)

	rest, err := ledger.ListByUser("uid_1", 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Equal(t, "uid_1", rest[0].UserID)
}
