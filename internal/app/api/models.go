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

import "time"

type ErrorMessage struct {
	Error []string `json:"error"`
}

func NewSingleMessageError(err string) ErrorMessage {
	return ErrorMessage{Error: []string{err}}
}

type CreateDepositRequest struct {
	UserID   string `json:"userId"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// BankInstructions tell the user where to wire the fiat leg of a deposit.
type BankInstructions struct {
	AccountHolder    string `json:"accountHolder,omitempty"`
	BankName         string `json:"bankName,omitempty"`
	IFSC             string `json:"ifsc,omitempty"`
	VirtualAccountID string `json:"virtualAccountId,omitempty"`
	VirtualUPIID     string `json:"virtualUpiId,omitempty"`
}

type CreateDepositResponse struct {
	IntentID     string            `json:"depositId"`
	Status       string            `json:"status"`
	FiatStatus   string            `json:"fiatStatus"`
	Amount       string            `json:"amount"`
	Currency     string            `json:"currency"`
	Instructions *BankInstructions `json:"instructions,omitempty"`
}

type DepositStatusResponse struct {
	IntentID       string     `json:"depositId"`
	Status         string     `json:"status"`
	FiatStatus     string     `json:"fiatStatus"`
	ExpectedAmount string     `json:"expectedAmount,omitempty"`
	ActualAmount   string     `json:"actualAmount,omitempty"`
	Currency       string     `json:"currency,omitempty"`
	Confirmations  int64      `json:"confirmations"`
	TxHash         string     `json:"txHash,omitempty"`
	RequestedAt    time.Time  `json:"requestedAt"`
	ReceivedAt     *time.Time `json:"receivedAt,omitempty"`
}

type BalancesResponse struct {
	UserID       string `json:"userId"`
	Currency     string `json:"currency"`
	Available    string `json:"available"`
	PendingFiat  string `json:"pendingFiat"`
	TokenSymbol  string `json:"tokenSymbol"`
	TokenBalance string `json:"tokenBalance"`
}

type TransactionResponse struct {
	Chain         string    `json:"chain"`
	Network       string    `json:"network"`
	TxHash        string    `json:"txHash,omitempty"`
	AssetType     string    `json:"assetType"`
	Symbol        string    `json:"symbol"`
	Amount        string    `json:"amount"`
	Direction     string    `json:"direction"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	Confirmations int64     `json:"confirmations"`
	CreatedAt     time.Time `json:"createdAt"`
}

type TransactionListResponse struct {
	Total        int                   `json:"total"`
	Transactions []TransactionResponse `json:"transactions"`
}

type ManualCreditRequest struct {
	UserID string `json:"userId"`
	// Amount in the ledger currency
	Amount string `json:"amount"`
	Notes  string `json:"notes"`
}

type TokenSendRequest struct {
	UserID     string `json:"userId"`
	To         string `json:"to"`
	Amount     string `json:"amount"`
	PrivateKey string `json:"privateKey"`
}

type TokenSendResponse struct {
	TxHash string `json:"txHash,omitempty"`
	Amount string `json:"amount"`
	Status string `json:"status"`
	Mock   bool   `json:"mock,omitempty"`
}

type TokenReceiveResponse struct {
	UserID       string `json:"userId"`
	Address      string `json:"address"`
	TokenSymbol  string `json:"tokenSymbol"`
	TokenAddress string `json:"tokenAddress,omitempty"`
	Network      string `json:"network"`
}
