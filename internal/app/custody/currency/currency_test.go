// Copyright 2026 Kapitor Technologies Ltd.
// All rights reserved.
// This material is licensed under the Apache License 2.0,
// available at https://github.com/kapitor/custody/blob/master/LICENSE.md.

package currency

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFromMinorUnits(t *testing.T) {
	t.Run("two_decimal", func(t *testing.T) {
		require.True(t, decimal.RequireFromString("100").Equal(FromMinorUnits(10000, "USD")))
		require.True(t, decimal.RequireFromString("8287").Equal(FromMinorUnits(828700, "INR")))
	})

	t.Run("zero_decimal", func(t *testing.T) {
		require.True(t, decimal.NewFromInt(500).Equal(FromMinorUnits(500, "JPY")))
	})

	t.Run("case_insensitive", func(t *testing.T) {
		require.True(t, decimal.NewFromInt(100).Equal(FromMinorUnits(10000, "usd")))
	})
}

func TestConverter_ToLedgerUnit(t *testing.T) {
	rates, err := NewStaticRateSource(map[string]string{"USD/INR": "82.87"})
	require.NoError(t, err)
	conv := NewConverter("USD", rates)

	t.Run("same_currency", func(t *testing.T) {
		got, err := conv.ToLedgerUnit(decimal.RequireFromString("100"), "USD")
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(100).Equal(got))
	})

	t.Run("inr_to_usd", func(t *testing.T) {
		got, err := conv.ToLedgerUnit(decimal.RequireFromString("8287.00"), "INR")
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(100).Equal(got), "got %s", got)
	})

	t.Run("missing_rate", func(t *testing.T) {
		_, err := conv.ToLedgerUnit(decimal.NewFromInt(10), "EUR")
		require.Error(t, err)
	})

	t.Run("no_rate_source", func(t *testing.T) {
		bare := NewConverter("USD", nil)
		_, err := bare.ToLedgerUnit(decimal.NewFromInt(10), "INR")
		require.Error(t, err)
	})
}

type countingSource struct {
	calls int
	rate  decimal.Decimal
	err   error
}

func (s *countingSource) Rate(base, quote string) (decimal.Decimal, error) {
	s.calls++
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.rate, nil
}

func TestCachedRateSource(t *testing.T) {
	t.Run("caches_within_ttl", func(t *testing.T) {
		inner := &countingSource{rate: decimal.RequireFromString("82.87")}
		cached, err := NewCachedRateSource(inner, nil, 16, time.Minute)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			rate, err := cached.Rate("USD", "INR")
			require.NoError(t, err)
			require.True(t, inner.rate.Equal(rate))
		}
		require.Equal(t, 1, inner.calls)
	})

	t.Run("refetches_after_ttl", func(t *testing.T) {
		inner := &countingSource{rate: decimal.RequireFromString("82.87")}
		cached, err := NewCachedRateSource(inner, nil, 16, time.Minute)
		require.NoError(t, err)

		now := time.Now()
		cached.now = func() time.Time { return now }
		_, err = cached.Rate("USD", "INR")
		require.NoError(t, err)

		cached.now = func() time.Time { return now.Add(2 * time.Minute) }
		_, err = cached.Rate("USD", "INR")
		require.NoError(t, err)
		require.Equal(t, 2, inner.calls)
	})

	t.Run("falls_back_when_source_down", func(t *testing.T) {
		inner := &countingSource{err: errors.New("rate provider unreachable")}
		fallback, err := NewStaticRateSource(map[string]string{"USD/INR": "83"})
		require.NoError(t, err)
		cached, err := NewCachedRateSource(inner, fallback, 16, time.Minute)
		require.NoError(t, err)

		rate, err := cached.Rate("USD", "INR")
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(83).Equal(rate))
	})

	t.Run("errors_with_no_fallback", func(t *testing.T) {
		inner := &countingSource{err: errors.New("rate provider unreachable")}
		cached, err := NewCachedRateSource(inner, nil, 16, time.Minute)
		require.NoError(t, err)

		_, err = cached.Rate("USD", "INR")
		require.Error(t, err)
	})
}
