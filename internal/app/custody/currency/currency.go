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

// Package currency centralizes minor-unit math and FX conversion so no
// call site carries its own per-currency divisor.
package currency

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ISO 4217 currencies without a minor unit.
var zeroDecimal = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {},
	"KMF": {}, "KRW": {}, "PYG": {}, "RWF": {}, "UGX": {},
	"VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// MinorUnitDivisor returns the factor between a currency's minor and major
// units: 1 for zero-decimal currencies, 100 for everything else.
func MinorUnitDivisor(code string) decimal.Decimal {
	if _, ok := zeroDecimal[strings.ToUpper(code)]; ok {
		return one
	}
	return hundred
}

// Exponent returns the number of decimal places of the major unit.
func Exponent(code string) int32 {
	if _, ok := zeroDecimal[strings.ToUpper(code)]; ok {
		return 0
	}
	return 2
}

// FromMinorUnits converts a minor-unit amount to the major unit.
func FromMinorUnits(minor int64, code string) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(MinorUnitDivisor(code))
}

// RateSource quotes FX rates. Rate(base, quote) is the amount of quote
// currency equal to one unit of base currency.
type RateSource interface {
	Rate(base, quote string) (decimal.Decimal, error)
}

type Converter struct {
	// LedgerCurrency is the unit of account every ledger entry is
	// denominated in.
	LedgerCurrency string

	rates RateSource
}

func NewConverter(ledgerCurrency string, rates RateSource) *Converter {
	return &Converter{LedgerCurrency: strings.ToUpper(ledgerCurrency), rates: rates}
}

// ToLedgerUnit converts a major-unit amount in the given currency into the
// ledger's unit of account, rounded to that currency's exponent.
func (c *Converter) ToLedgerUnit(amount decimal.Decimal, code string) (decimal.Decimal, error) {
	code = strings.ToUpper(code)
	if code == c.LedgerCurrency || code == "" {
		return amount.Round(Exponent(c.LedgerCurrency)), nil
	}
	if c.rates == nil {
		return decimal.Zero, errors.Errorf("no rate source configured for %s->%s", code, c.LedgerCurrency)
	}
	rate, err := c.rates.Rate(c.LedgerCurrency, code)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to quote %s/%s", c.LedgerCurrency, code)
	}
	if rate.Sign() <= 0 {
		return decimal.Zero, errors.Errorf("non-positive rate %s for %s/%s", rate, c.LedgerCurrency, code)
	}
	return amount.Div(rate).Round(Exponent(c.LedgerCurrency)), nil
}
