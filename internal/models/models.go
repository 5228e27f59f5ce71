// Copyright 2026 Kapitor Technologies Ltd.
// All rights reserved.
// This material is licensed under the Apache License 2.0,
// available at https://github.com/kapitor/custody/blob/master/LICENSE.md.

package models

import "time"

// On-chain dimension of a deposit intent.
const (
	IntentStatusWaiting             = "waiting"
	IntentStatusPendingConfirmation = "pending_confirmation"
	IntentStatusConfirmed           = "confirmed"
	IntentStatusFailed              = "failed"
	IntentStatusManual              = "manual"
)

// Fiat dimension of a deposit intent.
const (
	FiatStatusInitiated = "initiated"
	FiatStatusPending   = "pending"
	FiatStatusCredited  = "credited"
	FiatStatusMinted    = "minted"
	FiatStatusFailed    = "failed"
)

const (
	IntentTypeRequest = "request"
	IntentTypeManual  = "manual"
)

const (
	EntryTypeCredit = "credit"
	EntryTypeDebit  = "debit"
)

const (
	EntrySourceDeposit    = "deposit"
	EntrySourceManual     = "manual"
	EntrySourceFees       = "fees"
	EntrySourceWithdrawal = "withdrawal"
)

const (
	EntryStatusPending  = "pending"
	EntryStatusCredited = "credited"
	EntryStatusSettled  = "settled"
	EntryStatusFailed   = "failed"
)

const (
	TxStatusPending   = "pending"
	TxStatusConfirmed = "confirmed"
	TxStatusFailed    = "failed"
)

const (
	TxDirectionIn  = "in"
	TxDirectionOut = "out"
)

const (
	TxAssetNative = "native"
	TxAssetToken  = "token"
)

const (
	TxTypeTransfer = "transfer"
	TxTypeSwap     = "swap"
	TxTypeMint     = "mint"
	TxTypeBurn     = "burn"
	TxTypeStake    = "stake"
	TxTypeUnstake  = "unstake"
	TxTypeReward   = "reward"
	TxTypeInternal = "internal"
)

// DepositIntent has two independent lifecycles on one row: the reconciler
// owns the fiat-side columns, the confirmation tracker owns the on-chain
// columns. Updates must stay field-scoped to the owning actor.
type DepositIntent struct {
	tableName struct{} `sql:"deposit_intents"` //nolint: unused,structcheck

	ID            string `sql:"id,pk"`
	UserID        string `sql:"user_id,notnull"`
	WalletAddress string `sql:"wallet_address,notnull"`
	TokenSymbol   string `sql:"token_symbol,notnull"`
	Network       string `sql:"network,notnull"`

	ExpectedAmount string `sql:"expected_amount"`
	ActualAmount   string `sql:"actual_amount"`
	FiatCurrency   string `sql:"fiat_currency"`

	TxHash        *string `sql:"tx_hash"`
	Confirmations int64   `sql:"confirmations,notnull"`
	MissCount     int64   `sql:"miss_count,notnull"`

	Status     string `sql:"status,notnull"`
	FiatStatus string `sql:"fiat_status,notnull"`
	Type       string `sql:"type,notnull"`

	GatewayPaymentID   *string `sql:"gateway_payment_id"`
	GatewayReferenceID string  `sql:"gateway_reference_id"`
	CustomerReference  string  `sql:"customer_reference"`

	FailureReason string `sql:"failure_reason"`

	RequestedAt time.Time  `sql:"requested_at,notnull"`
	ReceivedAt  *time.Time `sql:"received_at"`
	CreatedAt   time.Time  `sql:"created_at,notnull,default:now()"`
	UpdatedAt   time.Time  `sql:"updated_at,notnull,default:now()"`
}

// LedgerEntry rows are append-only; gateway_payment_id carries a partial
// unique index and is the idempotency key for webhook-driven credits.
type LedgerEntry struct {
	tableName struct{} `sql:"ledger_entries"` //nolint: unused,structcheck

	ID       string `sql:"id,pk"`
	UserID   string `sql:"user_id,notnull"`
	Type     string `sql:"type,notnull"`
	Source   string `sql:"source,notnull"`
	Amount   string `sql:"amount,notnull"`
	Currency string `sql:"currency,notnull"`
	Status   string `sql:"status,notnull"`

	GatewayPaymentID *string `sql:"gateway_payment_id"`
	ReferenceID      string  `sql:"reference_id"`
	Notes            string  `sql:"notes"`

	OccurredAt time.Time `sql:"occurred_at,notnull"`
	CreatedAt  time.Time `sql:"created_at,notnull,default:now()"`
}

// Transaction is the immutable on-chain action log; (tx_hash, chain) is
// unique for rows that carry a hash, degraded-mode rows carry none.
type Transaction struct {
	tableName struct{} `sql:"transactions"` //nolint: unused,structcheck

	ID      int64  `sql:"id,pk"`
	UserID  string `sql:"user_id,notnull"`
	Chain   string `sql:"chain,notnull"`
	Network string `sql:"network,notnull"`

	TxHash      *string `sql:"tx_hash"`
	BlockNumber *int64  `sql:"block_number"`

	FromAddress string `sql:"from_address,notnull"`
	ToAddress   string `sql:"to_address,notnull"`

	AssetType    string `sql:"asset_type,notnull"`
	TokenAddress string `sql:"token_address"`
	Symbol       string `sql:"symbol"`
	Decimals     int    `sql:"decimals"`

	Amount string `sql:"amount,notnull"`
	Fee    string `sql:"fee"`

	Direction string `sql:"direction,notnull"`
	Type      string `sql:"type,notnull"`

	Status        string `sql:"status,notnull"`
	Confirmations int64  `sql:"confirmations,notnull"`
	FailureReason string `sql:"failure_reason"`

	RawTx string `sql:"raw_tx"`

	CreatedAt time.Time `sql:"created_at,notnull,default:now()"`
}

// Wallet is the custodial receiving wallet plus the virtual funding
// account the payment gateway settles into.
type Wallet struct {
	tableName struct{} `sql:"wallets"` //nolint: unused,structcheck

	UserID  string `sql:"user_id,pk"`
	Address string `sql:"address,notnull"`

	VirtualAccountID string `sql:"virtual_account_id"`
	VirtualUPIID     string `sql:"virtual_upi_id"`
	AccountHolder    string `sql:"account_holder"`
	BankName         string `sql:"bank_name"`
	IFSC             string `sql:"ifsc"`

	CreatedAt time.Time `sql:"created_at,notnull,default:now()"`
}
