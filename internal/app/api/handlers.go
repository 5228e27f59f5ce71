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
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/kapitor/custody/internal/app/custody"
	"github.com/kapitor/custody/internal/app/custody/token"
	"github.com/kapitor/custody/internal/models"
)

// FiatWebhook ingests one verified gateway notification. Anything short of
// a validation failure is acknowledged with 200 so the gateway stops
// redelivering; internal failures are flagged in the response body and the
// logs instead.
func (s *CustodyServer) FiatWebhook(ctx echo.Context) error {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("failed to read request body"))
	}

	event := custody.ParseGatewayPayload(body)
	result := s.events.HandleVerifiedEvent(ctx.Request().Context(), event)
	if result.Status == custody.StatusInvalid {
		return ctx.JSON(http.StatusBadRequest, result)
	}
	return ctx.JSON(http.StatusOK, result)
}

func (s *CustodyServer) CreateDeposit(ctx echo.Context) error {
	req := CreateDepositRequest{}
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("invalid request body"))
	}
	if req.UserID == "" {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("`userId` is required"))
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("`amount` should be a positive decimal"))
	}
	if req.Currency == "" {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("`currency` is required"))
	}

	wallet, err := s.wallets.ByUserID(req.UserID)
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}
	if wallet == nil {
		return ctx.JSON(http.StatusNotFound, NewSingleMessageError("user has no wallet"))
	}

	intent := &models.DepositIntent{
		UserID:            req.UserID,
		WalletAddress:     wallet.Address,
		TokenSymbol:       s.chainCfg.TokenSymbol,
		Network:           s.chainCfg.Network,
		ExpectedAmount:    amount.String(),
		FiatCurrency:      strings.ToUpper(req.Currency),
		Status:            models.IntentStatusWaiting,
		FiatStatus:        models.FiatStatusInitiated,
		Type:              models.IntentTypeRequest,
		CustomerReference: wallet.VirtualAccountID,
		RequestedAt:       time.Now().UTC(),
	}
	if err := s.intents.Create(intent); err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}

	return ctx.JSON(http.StatusCreated, CreateDepositResponse{
		IntentID:   intent.ID,
		Status:     intent.Status,
		FiatStatus: intent.FiatStatus,
		Amount:     intent.ExpectedAmount,
		Currency:   intent.FiatCurrency,
		Instructions: &BankInstructions{
			AccountHolder:    wallet.AccountHolder,
			BankName:         wallet.BankName,
			IFSC:             wallet.IFSC,
			VirtualAccountID: wallet.VirtualAccountID,
			VirtualUPIID:     wallet.VirtualUPIID,
		},
	})
}

// DepositStatus exposes only the coarse lifecycle enums, never internal
// ledger detail.
func (s *CustodyServer) DepositStatus(ctx echo.Context) error {
	intent, err := s.intents.ByID(ctx.Param("id"))
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}
	if intent == nil {
		return ctx.JSON(http.StatusNotFound, NewSingleMessageError("deposit not found"))
	}

	resp := DepositStatusResponse{
		IntentID:       intent.ID,
		Status:         intent.Status,
		FiatStatus:     intent.FiatStatus,
		ExpectedAmount: intent.ExpectedAmount,
		ActualAmount:   intent.ActualAmount,
		Currency:       intent.FiatCurrency,
		Confirmations:  intent.Confirmations,
		RequestedAt:    intent.RequestedAt,
		ReceivedAt:     intent.ReceivedAt,
	}
	if intent.TxHash != nil {
		resp.TxHash = *intent.TxHash
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (s *CustodyServer) Balances(ctx echo.Context) error {
	userID := ctx.Param("userID")

	available, err := s.ledger.Balance(userID)
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}

	pending := decimal.Zero
	intents, err := s.intents.ListFiatPendingByUser(userID)
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}
	for _, intent := range intents {
		amount, err := decimal.NewFromString(intent.ExpectedAmount)
		if err != nil {
			s.log.WithField("intent_id", intent.ID).Warnf("unparsable expected amount %q", intent.ExpectedAmount)
			continue
		}
		pending = pending.Add(amount)
	}

	// token balance is best effort, a degraded gateway reads as zero
	tokenBalance := decimal.Zero
	wallet, err := s.wallets.ByUserID(userID)
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}
	if wallet != nil {
		tokenBalance, err = s.tokens.BalanceOf(ctx.Request().Context(), wallet.Address)
		if err != nil {
			s.log.Error(err)
			tokenBalance = decimal.Zero
		}
	}

	return ctx.JSON(http.StatusOK, BalancesResponse{
		UserID:       userID,
		Currency:     s.ledgerCcy,
		Available:    available.String(),
		PendingFiat:  pending.String(),
		TokenSymbol:  s.chainCfg.TokenSymbol,
		TokenBalance: tokenBalance.String(),
	})
}

func (s *CustodyServer) Transactions(ctx echo.Context) error {
	userID := ctx.Param("userID")

	limit := 20
	if raw := ctx.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("`limit` should be in range [1, 1000]"))
		}
		limit = parsed
	}
	offset := 0
	if raw := ctx.QueryParam("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("`offset` should be non-negative"))
		}
		offset = parsed
	}

	txs, total, err := s.transactions.ListByUser(userID, limit, offset)
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}

	resp := TransactionListResponse{Total: total, Transactions: make([]TransactionResponse, len(txs))}
	for i, tx := range txs {
		item := TransactionResponse{
			Chain:         tx.Chain,
			Network:       tx.Network,
			AssetType:     tx.AssetType,
			Symbol:        tx.Symbol,
			Amount:        tx.Amount,
			Direction:     tx.Direction,
			Type:          tx.Type,
			Status:        tx.Status,
			Confirmations: tx.Confirmations,
			CreatedAt:     tx.CreatedAt,
		}
		if tx.TxHash != nil {
			item.TxHash = *tx.TxHash
		}
		resp.Transactions[i] = item
	}
	return ctx.JSON(http.StatusOK, resp)
}

// ManualCredit is the operator escape hatch for deposits the gateway
// never reported. Authentication is enforced upstream on the admin route.
func (s *CustodyServer) ManualCredit(ctx echo.Context) error {
	req := ManualCreditRequest{}
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("invalid request body"))
	}
	if req.UserID == "" {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("`userId` is required"))
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("`amount` should be a positive decimal"))
	}

	result := s.events.ManualCredit(ctx.Request().Context(), req.UserID, amount, req.Notes)
	switch result.Status {
	case custody.StatusInvalid:
		return ctx.JSON(http.StatusBadRequest, result)
	case custody.StatusFailed:
		return ctx.JSON(http.StatusInternalServerError, result)
	}
	return ctx.JSON(http.StatusCreated, result)
}

func (s *CustodyServer) TokenSend(ctx echo.Context) error {
	req := TokenSendRequest{}
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("invalid request body"))
	}
	if req.UserID == "" {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("`userId` is required"))
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError("`amount` should be a positive decimal"))
	}

	wallet, err := s.wallets.ByUserID(req.UserID)
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}
	if wallet == nil {
		return ctx.JSON(http.StatusNotFound, NewSingleMessageError("user has no wallet"))
	}

	result, err := s.tokens.Transfer(ctx.Request().Context(), req.PrivateKey, req.To, amount)
	switch errors.Cause(err) {
	case nil:
	case token.ErrInvalidAddress, token.ErrInvalidAmount:
		return ctx.JSON(http.StatusBadRequest, NewSingleMessageError(err.Error()))
	case token.ErrAuthenticationFailed:
		return ctx.JSON(http.StatusUnauthorized, NewSingleMessageError("invalid signing key"))
	default:
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}

	record := &models.Transaction{
		UserID:       req.UserID,
		Chain:        s.chainCfg.Chain,
		Network:      s.chainCfg.Network,
		FromAddress:  wallet.Address,
		ToAddress:    req.To,
		AssetType:    models.TxAssetToken,
		TokenAddress: s.chainCfg.TokenAddress,
		Symbol:       s.chainCfg.TokenSymbol,
		Decimals:     s.chainCfg.TokenDecimals,
		Amount:       amount.String(),
		Direction:    models.TxDirectionOut,
		Type:         models.TxTypeTransfer,
		Status:       models.TxStatusPending,
	}
	if result.Mock {
		record.Status = models.TxStatusConfirmed
	} else {
		hash := result.TxHash
		record.TxHash = &hash
	}
	if err := s.transactions.Insert(record); err != nil {
		s.log.Error(err)
	}

	return ctx.JSON(http.StatusOK, TokenSendResponse{
		TxHash: result.TxHash,
		Amount: result.Amount.String(),
		Status: record.Status,
		Mock:   result.Mock,
	})
}

func (s *CustodyServer) TokenReceive(ctx echo.Context) error {
	userID := ctx.Param("userID")
	wallet, err := s.wallets.ByUserID(userID)
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}
	if wallet == nil {
		return ctx.JSON(http.StatusNotFound, NewSingleMessageError("user has no wallet"))
	}

	return ctx.JSON(http.StatusOK, TokenReceiveResponse{
		UserID:       userID,
		Address:      wallet.Address,
		TokenSymbol:  s.chainCfg.TokenSymbol,
		TokenAddress: s.chainCfg.TokenAddress,
		Network:      s.chainCfg.Network,
	})
}
