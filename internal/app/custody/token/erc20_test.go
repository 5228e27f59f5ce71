// Copyright 2026 Kapitor Technologies Ltd.
// All rights reserved.
// This material is licensed under the Apache License 2.0,
// available at https://github.com/kapitor/custody/blob/master/LICENSE.md.

package token

import (
	"context"
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kapitor/custody/configuration"
	"github.com/kapitor/custody/observability"
)

const (
	goodAddress = "0x8Ba1f109551bD432803012645Ac136ddd64DBA72"
	// well-known throwaway key, never funded
	testKey = "4c0883a69102937d6231471b5dbb6204fe512961708279feb1be6ae5538da033"
)

func degradedGateway(t *testing.T) *ERC20Gateway {
	cfg := configuration.Default()
	obs := observability.Make(cfg.Log)
	gw, err := NewERC20Gateway(cfg.Chain, obs, nil)
	require.NoError(t, err)
	return gw
}

func TestERC20Gateway_Mint(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects_bad_address", func(t *testing.T) {
		gw := degradedGateway(t)
		_, err := gw.Mint(ctx, "", decimal.NewFromInt(10))
		require.True(t, errors.Is(err, ErrInvalidAddress))

		_, err = gw.Mint(ctx, "treasury", decimal.NewFromInt(10))
		require.True(t, errors.Is(err, ErrInvalidAddress))
	})

	t.Run("rejects_non_positive_amount", func(t *testing.T) {
		gw := degradedGateway(t)
		_, err := gw.Mint(ctx, goodAddress, decimal.Zero)
		require.True(t, errors.Is(err, ErrInvalidAmount))

		_, err = gw.Mint(ctx, goodAddress, decimal.NewFromInt(-5))
		require.True(t, errors.Is(err, ErrInvalidAmount))
	})

	t.Run("degraded_mode_is_explicit", func(t *testing.T) {
		gw := degradedGateway(t)
		res, err := gw.Mint(ctx, goodAddress, decimal.NewFromInt(100))
		require.NoError(t, err)
		require.True(t, res.Mock)
		require.Empty(t, res.TxHash)
		require.True(t, decimal.NewFromInt(100).Equal(res.Amount))
	})
}

func TestERC20Gateway_Transfer(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects_bad_key_material", func(t *testing.T) {
		gw := degradedGateway(t)
		_, err := gw.Transfer(ctx, "not-a-key", goodAddress, decimal.NewFromInt(1))
		require.True(t, errors.Is(err, ErrAuthenticationFailed))
	})

	t.Run("degraded_mode_after_key_check", func(t *testing.T) {
		gw := degradedGateway(t)
		res, err := gw.Transfer(ctx, testKey, goodAddress, decimal.NewFromInt(1))
		require.NoError(t, err)
		require.True(t, res.Mock)
		require.Empty(t, res.TxHash)
	})

	t.Run("rejects_bad_address", func(t *testing.T) {
		gw := degradedGateway(t)
		_, err := gw.Transfer(ctx, testKey, "nowhere", decimal.NewFromInt(1))
		require.True(t, errors.Is(err, ErrInvalidAddress))
	})
}

func TestERC20Gateway_BalanceOf(t *testing.T) {
	ctx := context.Background()

	t.Run("degraded_returns_zero_not_error", func(t *testing.T) {
		gw := degradedGateway(t)
		balance, err := gw.BalanceOf(ctx, goodAddress)
		require.NoError(t, err)
		require.True(t, balance.IsZero())
	})

	t.Run("rejects_bad_address", func(t *testing.T) {
		gw := degradedGateway(t)
		_, err := gw.BalanceOf(ctx, "bogus")
		require.True(t, errors.Is(err, ErrInvalidAddress))
	})
}

func TestERC20Gateway_toTokenUnits(t *testing.T) {
	gw := degradedGateway(t)
	units := gw.toTokenUnits(decimal.RequireFromString("100.5"))
	// default token carries 6 decimals
	require.Equal(t, big.NewInt(100500000), units)
}

func TestNewERC20Gateway_rejectsBadConfig(t *testing.T) {
	cfg := configuration.Default()
	obs := observability.Make(cfg.Log)

	t.Run("bad_token_address", func(t *testing.T) {
		chain := cfg.Chain
		chain.TokenAddress = "not-an-address"
		_, err := NewERC20Gateway(chain, obs, nil)
		require.Error(t, err)
	})

	t.Run("bad_treasury_key", func(t *testing.T) {
		chain := cfg.Chain
		chain.TreasuryKey = "zz"
		_, err := NewERC20Gateway(chain, obs, nil)
		require.Error(t, err)
	})
}
