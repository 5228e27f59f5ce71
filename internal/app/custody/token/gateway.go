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

// Package token abstracts the platform token contract. When the signing
// key or the RPC endpoint is not configured the gateway runs in degraded
// mode: mutating calls return synthetic results flagged Mock=true and
// balance reads return zero instead of failing.
package token

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAddress       = errors.New("invalid address")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// Result of a mutating token call. TxHash is empty when Mock is set;
// callers must record such actions as confirmed immediately since no real
// confirmation will ever arrive.
type Result struct {
	TxHash string
	Amount decimal.Decimal
	Mock   bool
}

type Gateway interface {
	Mint(ctx context.Context, address string, amount decimal.Decimal) (*Result, error)
	Transfer(ctx context.Context, privateKeyHex, to string, amount decimal.Decimal) (*Result, error)
	BalanceOf(ctx context.Context, address string) (decimal.Decimal, error)
}
