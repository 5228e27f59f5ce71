// Copyright 2026 Kapitor Technologies Ltd.
// All rights reserved.
// This material is licensed under the Apache License 2.0,
// available at https://github.com/kapitor/custody/blob/master/LICENSE.md.

package custody

const (
	StatusProcessed        = "processed"
	StatusAlreadyProcessed = "already_processed"
	StatusIgnored          = "ignored"
	StatusInvalid          = "invalid"
	StatusFailed           = "failed"
)

// Result is what a single webhook event reduces to. Errors never escape the
// reconciler's event boundary; they come back here as StatusFailed.
type Result struct {
	Status           string `json:"status"`
	Reason           string `json:"reason,omitempty"`
	AlreadyProcessed bool   `json:"alreadyProcessed,omitempty"`
	Ignored          bool   `json:"ignored,omitempty"`
	IntentID         string `json:"depositId,omitempty"`
	LedgerEntryID    string `json:"ledgerId,omitempty"`
	TxHash           string `json:"txHash,omitempty"`
}

func Processed(intentID, ledgerID, txHash string) Result {
	return Result{Status: StatusProcessed, IntentID: intentID, LedgerEntryID: ledgerID, TxHash: txHash}
}

func Already(intentID string) Result {
	return Result{Status: StatusAlreadyProcessed, AlreadyProcessed: true, IntentID: intentID}
}

func Ignored(reason string) Result {
	return Result{Status: StatusIgnored, Ignored: true, Reason: reason}
}

func Invalid(reason string) Result {
	return Result{Status: StatusInvalid, Reason: reason}
}

func Failed(reason string) Result {
	return Result{Status: StatusFailed, Reason: reason}
}
