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

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kapitor/custody/configuration"
	"github.com/kapitor/custody/internal/app/custody"
	"github.com/kapitor/custody/internal/app/custody/token"
	"github.com/kapitor/custody/internal/models"
	"github.com/kapitor/custody/observability"
)

type fakeEvents struct {
	received []custody.GatewayEvent
	result   custody.Result

	credits      []decimal.Decimal
	creditResult custody.Result
}

func (f *fakeEvents) HandleVerifiedEvent(ctx context.Context, ev custody.GatewayEvent) custody.Result {
	f.received = append(f.received, ev)
	return f.result
}

func (f *fakeEvents) ManualCredit(ctx context.Context, userID string, amount decimal.Decimal, notes string) custody.Result {
	f.credits = append(f.credits, amount)
	return f.creditResult
}

type fakeIntents struct {
	created []*models.DepositIntent
	byID    map[string]*models.DepositIntent
	pending []models.DepositIntent
}

func (f *fakeIntents) Create(intent *models.DepositIntent) error {
	intent.ID = "int_1"
	f.created = append(f.created, intent)
	return nil
}

func (f *fakeIntents) ByID(id string) (*models.DepositIntent, error) {
	return f.byID[id], nil
}

func (f *fakeIntents) ListFiatPendingByUser(userID string) ([]models.DepositIntent, error) {
	return f.pending, nil
}

type fakeLedger struct {
	balance decimal.Decimal
}

func (f *fakeLedger) Balance(userID string) (decimal.Decimal, error) {
	return f.balance, nil
}

type fakeTransactions struct {
	inserted []*models.Transaction
	listed   []models.Transaction
}

func (f *fakeTransactions) Insert(tx *models.Transaction) error {
	f.inserted = append(f.inserted, tx)
	return nil
}

func (f *fakeTransactions) ListByUser(userID string, limit, offset int) ([]models.Transaction, int, error) {
	return f.listed, len(f.listed), nil
}

type fakeWallets struct {
	wallets map[string]*models.Wallet
}

func (f *fakeWallets) ByUserID(userID string) (*models.Wallet, error) {
	return f.wallets[userID], nil
}

type fakeTokens struct {
	balance     decimal.Decimal
	transferred []string
	transferErr error
	mock        bool
}

func (f *fakeTokens) Mint(ctx context.Context, address string, amount decimal.Decimal) (*token.Result, error) {
	return nil, nil
}

func (f *fakeTokens) Transfer(ctx context.Context, privateKeyHex, to string, amount decimal.Decimal) (*token.Result, error) {
	if f.transferErr != nil {
		return nil, f.transferErr
	}
	f.transferred = append(f.transferred, to)
	if f.mock {
		return &token.Result{Amount: amount, Mock: true}, nil
	}
	return &token.Result{TxHash: "0xsend1", Amount: amount}, nil
}

func (f *fakeTokens) BalanceOf(ctx context.Context, address string) (decimal.Decimal, error) {
	return f.balance, nil
}

type serverFixture struct {
	server       *CustodyServer
	events       *fakeEvents
	intents      *fakeIntents
	ledger       *fakeLedger
	transactions *fakeTransactions
	wallets      *fakeWallets
	tokens       *fakeTokens
}

func makeServer() *serverFixture {
	cfg := configuration.Default()
	obs := observability.Make(cfg.Log)

	f := &serverFixture{
		events: &fakeEvents{
			result:       custody.Processed("int_1", "led_1", "0xmint1"),
			creditResult: custody.Processed("int_2", "led_2", "0xmint2"),
		},
		intents: &fakeIntents{byID: map[string]*models.DepositIntent{}},
		ledger:  &fakeLedger{balance: decimal.RequireFromString("150.25")},
		transactions: &fakeTransactions{},
		wallets: &fakeWallets{wallets: map[string]*models.Wallet{
			"uid_1": {
				UserID:           "uid_1",
				Address:          "0x1111111111111111111111111111111111111111",
				VirtualAccountID: "va_1",
				AccountHolder:    "Kapitor Escrow",
				BankName:         "Yes Bank",
				IFSC:             "YESB0CMSNOC",
			},
		}},
		tokens: &fakeTokens{balance: decimal.RequireFromString("12.5")},
	}
	f.server = NewCustodyServer(cfg, obs, f.events, f.intents, f.ledger, f.transactions, f.wallets, f.tokens)
	return f
}

func doRequest(t *testing.T, f *serverFixture, method, target, body string) *httptest.ResponseRecorder {
	router := echo.New()
	RegisterHandlers(router, f.server)

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestFiatWebhook(t *testing.T) {
	t.Run("handled event is acknowledged with the result", func(t *testing.T) {
		f := makeServer()

		rec := doRequest(t, f, http.MethodPost, "/api/v1/fiat/webhook",
			`{"type":"PAYMENT_SUCCEEDED","payment_id":"pay_1","amount":10000,"currency":"usd","customer_reference":"uid_1"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		require.Len(t, f.events.received, 1)
		require.Equal(t, custody.KindSucceeded, f.events.received[0].Kind)

		result := custody.Result{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		require.Equal(t, custody.StatusProcessed, result.Status)
	})

	t.Run("validation failure maps to 400", func(t *testing.T) {
		f := makeServer()
		f.events.result = custody.Invalid("amount must be greater than zero")

		rec := doRequest(t, f, http.MethodPost, "/api/v1/fiat/webhook",
			`{"type":"PAYMENT_SUCCEEDED","payment_id":"pay_1","amount":0,"currency":"usd"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("internal failure is still acknowledged", func(t *testing.T) {
		f := makeServer()
		f.events.result = custody.Failed("wallet not found for user uid_1")

		rec := doRequest(t, f, http.MethodPost, "/api/v1/fiat/webhook",
			`{"type":"PAYMENT_SUCCEEDED","payment_id":"pay_1","amount":10000,"currency":"usd"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestCreateDeposit(t *testing.T) {
	t.Run("returns bank instructions for the user's virtual account", func(t *testing.T) {
		f := makeServer()

		rec := doRequest(t, f, http.MethodPost, "/api/v1/fiat/deposits",
			`{"userId":"uid_1","amount":"2500.00","currency":"inr"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		resp := CreateDepositResponse{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "int_1", resp.IntentID)
		require.Equal(t, models.IntentStatusWaiting, resp.Status)
		require.Equal(t, models.FiatStatusInitiated, resp.FiatStatus)
		require.Equal(t, "INR", resp.Currency)
		require.NotNil(t, resp.Instructions)
		require.Equal(t, "va_1", resp.Instructions.VirtualAccountID)
		require.Equal(t, "Yes Bank", resp.Instructions.BankName)

		require.Len(t, f.intents.created, 1)
		require.Equal(t, models.IntentTypeRequest, f.intents.created[0].Type)
	})

	t.Run("rejects a non-positive amount", func(t *testing.T) {
		f := makeServer()

		rec := doRequest(t, f, http.MethodPost, "/api/v1/fiat/deposits",
			`{"userId":"uid_1","amount":"-5","currency":"inr"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Empty(t, f.intents.created)
	})

	t.Run("unknown user gets 404", func(t *testing.T) {
		f := makeServer()

		rec := doRequest(t, f, http.MethodPost, "/api/v1/fiat/deposits",
			`{"userId":"uid_unknown","amount":"100","currency":"usd"}`)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDepositStatus(t *testing.T) {
	f := makeServer()
	hash := "0xdeadbeef"
	f.intents.byID["int_9"] = &models.DepositIntent{
		ID:            "int_9",
		Status:        models.IntentStatusPendingConfirmation,
		FiatStatus:    models.FiatStatusMinted,
		Confirmations: 4,
		TxHash:        &hash,
	}

	rec := doRequest(t, f, http.MethodGet, "/api/v1/deposits/int_9", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := DepositStatusResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, models.IntentStatusPendingConfirmation, resp.Status)
	require.EqualValues(t, 4, resp.Confirmations)
	require.Equal(t, hash, resp.TxHash)

	rec = doRequest(t, f, http.MethodGet, "/api/v1/deposits/int_missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBalances(t *testing.T) {
	f := makeServer()
	f.intents.pending = []models.DepositIntent{
		{ID: "int_1", ExpectedAmount: "40"},
		{ID: "int_2", ExpectedAmount: "9.75"},
	}

	rec := doRequest(t, f, http.MethodGet, "/api/v1/balances/uid_1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := BalancesResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "150.25", resp.Available)
	require.Equal(t, "49.75", resp.PendingFiat)
	require.Equal(t, "12.5", resp.TokenBalance)
	require.Equal(t, "USD", resp.Currency)
}

func TestTransactions(t *testing.T) {
	f := makeServer()
	hash := "0xmint1"
	f.transactions.listed = []models.Transaction{{
		Chain:     "ethereum",
		TxHash:    &hash,
		Symbol:    "KPT",
		Amount:    "100",
		Direction: models.TxDirectionIn,
		Type:      models.TxTypeMint,
		Status:    models.TxStatusConfirmed,
	}}

	rec := doRequest(t, f, http.MethodGet, "/api/v1/transactions/uid_1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := TransactionListResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	require.Equal(t, hash, resp.Transactions[0].TxHash)

	rec = doRequest(t, f, http.MethodGet, "/api/v1/transactions/uid_1?limit=5000", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenSend(t *testing.T) {
	t.Run("success writes an outgoing transaction record", func(t *testing.T) {
		f := makeServer()

		rec := doRequest(t, f, http.MethodPost, "/api/v1/token/send",
			`{"userId":"uid_1","to":"0x2222222222222222222222222222222222222222","amount":"7.5","privateKey":"aa"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := TokenSendResponse{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "0xsend1", resp.TxHash)

		require.Len(t, f.transactions.inserted, 1)
		record := f.transactions.inserted[0]
		require.Equal(t, models.TxDirectionOut, record.Direction)
		require.Equal(t, models.TxTypeTransfer, record.Type)
		require.Equal(t, models.TxStatusPending, record.Status)
	})

	t.Run("invalid destination maps to 400", func(t *testing.T) {
		f := makeServer()
		f.tokens.transferErr = token.ErrInvalidAddress

		rec := doRequest(t, f, http.MethodPost, "/api/v1/token/send",
			`{"userId":"uid_1","to":"garbage","amount":"7.5","privateKey":"aa"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Empty(t, f.transactions.inserted)
	})

	t.Run("bad signing key maps to 401", func(t *testing.T) {
		f := makeServer()
		f.tokens.transferErr = token.ErrAuthenticationFailed

		rec := doRequest(t, f, http.MethodPost, "/api/v1/token/send",
			`{"userId":"uid_1","to":"0x2222222222222222222222222222222222222222","amount":"7.5","privateKey":"bad"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("degraded gateway reports a mock result", func(t *testing.T) {
		f := makeServer()
		f.tokens.mock = true

		rec := doRequest(t, f, http.MethodPost, "/api/v1/token/send",
			`{"userId":"uid_1","to":"0x2222222222222222222222222222222222222222","amount":"7.5","privateKey":"aa"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := TokenSendResponse{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.True(t, resp.Mock)
		require.Empty(t, resp.TxHash)
		require.Equal(t, models.TxStatusConfirmed, resp.Status)
	})
}

func TestManualCredit(t *testing.T) {
	t.Run("applies the credit and reports the settlement", func(t *testing.T) {
		f := makeServer()

		rec := doRequest(t, f, http.MethodPost, "/api/v1/admin/credits",
			`{"userId":"uid_1","amount":"250","notes":"gateway outage 2026-08-12"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		result := custody.Result{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		require.Equal(t, custody.StatusProcessed, result.Status)
		require.Equal(t, "led_2", result.LedgerEntryID)

		require.Len(t, f.events.credits, 1)
		require.True(t, decimal.NewFromInt(250).Equal(f.events.credits[0]))
	})

	t.Run("rejects a non-positive amount before reaching the reconciler", func(t *testing.T) {
		f := makeServer()

		rec := doRequest(t, f, http.MethodPost, "/api/v1/admin/credits",
			`{"userId":"uid_1","amount":"0"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Empty(t, f.events.credits)
	})

	t.Run("reconciler failure maps to 500", func(t *testing.T) {
		f := makeServer()
		f.events.creditResult = custody.Failed("wallet not found for user uid_1")

		rec := doRequest(t, f, http.MethodPost, "/api/v1/admin/credits",
			`{"userId":"uid_1","amount":"10"}`)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestTokenReceive(t *testing.T) {
	f := makeServer()

	rec := doRequest(t, f, http.MethodGet, "/api/v1/token/receive/uid_1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := TokenReceiveResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "0x1111111111111111111111111111111111111111", resp.Address)
	require.Equal(t, "KPT", resp.TokenSymbol)

	rec = doRequest(t, f, http.MethodGet, "/api/v1/token/receive/uid_ghost", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
