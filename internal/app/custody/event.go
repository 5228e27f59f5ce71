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

package custody

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kapitor/custody/internal/app/custody/currency"
)

type EventKind string

const (
	KindSucceeded EventKind = "succeeded"
	KindFailed    EventKind = "failed"
	KindUnhandled EventKind = "unhandled"
)

// GatewayEvent is the normalized form every provider payload is reduced to
// before it reaches the reconciler. Amount is in the currency's minor units.
type GatewayEvent struct {
	Kind              EventKind
	GatewayPaymentID  string
	Amount            int64
	Currency          string
	CustomerReference string
	ReferenceID       string
	Reason            string
	OccurredAt        time.Time
	RawPayload        string
}

// ParseGatewayPayload turns a raw webhook body into a GatewayEvent. Both
// integration styles the gateway has shipped are folded into one union:
// virtual-account payloads (flat or wrapped in "data") and payment-intent
// payloads carrying a typed "event" field.
func ParseGatewayPayload(body []byte) GatewayEvent {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		return GatewayEvent{Kind: KindUnhandled, Reason: "malformed payload", RawPayload: string(body)}
	}

	event := GatewayEvent{RawPayload: string(body), OccurredAt: time.Now().UTC()}

	data := payload
	if nested, ok := payload["data"].(map[string]interface{}); ok {
		data = nested
		if object, ok := nested["object"].(map[string]interface{}); ok {
			data = object
		}
	}

	event.GatewayPaymentID = firstString(data,
		"payment_reference_id", "cf_payment_id", "payment_id", "id")
	event.CustomerReference = firstString(data,
		"vAccountId", "virtual_account_id", "virtualAccountId", "customer", "customer_reference")
	event.ReferenceID = firstString(data, "referenceId", "bank_reference", "utr")
	event.Currency = strings.ToUpper(firstString(data, "currency"))
	if ts := firstString(data, "event_time", "created_at"); ts != "" {
		if at, err := time.Parse(time.RFC3339, ts); err == nil {
			event.OccurredAt = at.UTC()
		}
	}
	// virtual-account payloads quote amounts in major units, payment-intent
	// payloads in integer minor units
	vaStyle := firstString(data, "vAccountId", "virtual_account_id", "virtualAccountId") != ""
	event.Amount = minorAmount(data, event.Currency, vaStyle)

	status := strings.ToUpper(firstString(data, "status"))
	if status == "" {
		status = strings.ToUpper(firstString(payload, "event", "type"))
	}
	switch {
	case statusSucceeded(status):
		event.Kind = KindSucceeded
	case statusFailed(status):
		event.Kind = KindFailed
		event.Reason = firstString(data, "failure_reason", "error_description", "reason")
		if event.Reason == "" {
			event.Reason = strings.ToLower(status)
		}
	default:
		event.Kind = KindUnhandled
		event.Reason = "status " + status
	}
	return event
}

func statusSucceeded(status string) bool {
	switch status {
	case "SUCCESS", "VA_CREDIT", "COMPLETED", "PAID",
		"PAYMENT_INTENT.SUCCEEDED", "PAYMENT_SUCCEEDED":
		return true
	}
	return false
}

func statusFailed(status string) bool {
	switch status {
	case "FAILED", "CANCELLED", "CANCELED", "EXPIRED",
		"PAYMENT_INTENT.PAYMENT_FAILED", "PAYMENT_INTENT.CANCELED",
		"PAYMENT_FAILED", "PAYMENT_CANCELED":
		return true
	}
	return false
}

// minorAmount normalizes the payload amount to minor units. The unit an
// amount is quoted in depends on the integration style, never on the
// numeric shape: virtual-account amounts are major units (a whole-rupee
// credit of 8287 is ₹8287), payment-intent amounts are integer minor
// units. String amounts are always decimal major units.
func minorAmount(data map[string]interface{}, code string, majorUnits bool) int64 {
	for _, key := range []string{"amount", "order_amount", "amount_received"} {
		switch v := data[key].(type) {
		case string:
			major, err := decimal.NewFromString(v)
			if err != nil {
				continue
			}
			return major.Mul(currency.MinorUnitDivisor(code)).IntPart()
		case float64:
			d := decimal.NewFromFloat(v)
			if !majorUnits && d.IsInteger() {
				return d.IntPart()
			}
			return d.Mul(currency.MinorUnitDivisor(code)).IntPart()
		}
	}
	return 0
}

func firstString(data map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := data[key].(string); ok && v != "" {
			return v
		}
		if v, ok := data[key].(float64); ok {
			return decimal.NewFromFloat(v).String()
		}
	}
	return ""
}
