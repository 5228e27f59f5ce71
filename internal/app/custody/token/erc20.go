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

package token

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kapitor/custody/configuration"
	"github.com/kapitor/custody/observability"
)

const erc20ABI = `[
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"mint","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

type ERC20Gateway struct {
	log         *logrus.Logger
	client      *ethclient.Client
	abi         abi.ABI
	token       common.Address
	treasuryKey *ecdsa.PrivateKey
	chainID     *big.Int
	decimals    int
	gasLimit    uint64
	callTimeout time.Duration
}

func NewERC20Gateway(cfg configuration.Chain, obs *observability.Observability, client *ethclient.Client) (*ERC20Gateway, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse erc20 abi")
	}

	g := &ERC20Gateway{
		log:         obs.Log(),
		client:      client,
		abi:         parsed,
		chainID:     big.NewInt(cfg.ChainID),
		decimals:    cfg.TokenDecimals,
		gasLimit:    cfg.GasLimit,
		callTimeout: cfg.CallTimeout,
	}
	if cfg.TokenAddress != "" {
		if !common.IsHexAddress(cfg.TokenAddress) {
			return nil, errors.Errorf("bad token address %q", cfg.TokenAddress)
		}
		g.token = common.HexToAddress(cfg.TokenAddress)
	}
	if cfg.TreasuryKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.TreasuryKey, "0x"))
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse treasury key")
		}
		g.treasuryKey = key
	}
	if g.degraded() {
		g.log.Warn("token gateway running in degraded mode, minting is mocked")
	}
	return g, nil
}

func (g *ERC20Gateway) degraded() bool {
	return g.client == nil || g.token == (common.Address{}) || g.treasuryKey == nil
}

// readDegraded covers balance reads, which only need the RPC client.
func (g *ERC20Gateway) readDegraded() bool {
	return g.client == nil || g.token == (common.Address{})
}

func (g *ERC20Gateway) Mint(ctx context.Context, address string, amount decimal.Decimal) (*Result, error) {
	if !common.IsHexAddress(address) {
		return nil, errors.Wrapf(ErrInvalidAddress, "mint target %q", address)
	}
	if amount.Sign() <= 0 {
		return nil, errors.Wrapf(ErrInvalidAmount, "mint amount %s", amount)
	}
	if g.degraded() {
		return &Result{Mock: true, Amount: amount}, nil
	}

	data, err := g.abi.Pack("mint", common.HexToAddress(address), g.toTokenUnits(amount))
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack mint call")
	}
	hash, err := g.send(ctx, g.treasuryKey, data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send mint")
	}
	return &Result{TxHash: hash, Amount: amount}, nil
}

func (g *ERC20Gateway) Transfer(ctx context.Context, privateKeyHex, to string, amount decimal.Decimal) (*Result, error) {
	if !common.IsHexAddress(to) {
		return nil, errors.Wrapf(ErrInvalidAddress, "transfer target %q", to)
	}
	if amount.Sign() <= 0 {
		return nil, errors.Wrapf(ErrInvalidAmount, "transfer amount %s", amount)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(ErrAuthenticationFailed, "key material does not derive a signer")
	}
	if g.readDegraded() {
		return &Result{Mock: true, Amount: amount}, nil
	}

	data, err := g.abi.Pack("transfer", common.HexToAddress(to), g.toTokenUnits(amount))
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack transfer call")
	}
	hash, err := g.send(ctx, key, data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send transfer")
	}
	return &Result{TxHash: hash, Amount: amount}, nil
}

// BalanceOf returns zero in degraded mode rather than failing; balance
// reads must not block callers on missing chain access.
func (g *ERC20Gateway) BalanceOf(ctx context.Context, address string) (decimal.Decimal, error) {
	if !common.IsHexAddress(address) {
		return decimal.Zero, errors.Wrapf(ErrInvalidAddress, "balance target %q", address)
	}
	if g.readDegraded() {
		return decimal.Zero, nil
	}

	data, err := g.abi.Pack("balanceOf", common.HexToAddress(address))
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to pack balanceOf call")
	}
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()
	out, err := g.client.CallContract(ctx, ethereum.CallMsg{To: &g.token, Data: data}, nil)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "balanceOf call failed")
	}
	unpacked, err := g.abi.Unpack("balanceOf", out)
	if err != nil || len(unpacked) == 0 {
		return decimal.Zero, errors.Wrap(err, "failed to unpack balanceOf result")
	}
	raw, ok := unpacked[0].(*big.Int)
	if !ok {
		return decimal.Zero, errors.New("unexpected balanceOf result type")
	}
	return decimal.NewFromBigInt(raw, -int32(g.decimals)), nil
}

func (g *ERC20Gateway) toTokenUnits(amount decimal.Decimal) *big.Int {
	return amount.Shift(int32(g.decimals)).BigInt()
}

func (g *ERC20Gateway) send(ctx context.Context, key *ecdsa.PrivateKey, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	from := crypto.PubkeyToAddress(key.PublicKey)
	nonce, err := g.client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch nonce")
	}
	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to suggest gas price")
	}
	tx := types.NewTransaction(nonce, g.token, big.NewInt(0), g.gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(g.chainID), key)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign transaction")
	}
	if err := g.client.SendTransaction(ctx, signed); err != nil {
		return "", errors.Wrap(err, "failed to broadcast transaction")
	}
	return signed.Hash().Hex(), nil
}
