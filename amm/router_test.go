// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/bridgekit/token"
)

var (
	owner      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	provider   = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	routerAddr = common.HexToAddress("0x0000000000000000000000000000000000007001")
	now        = time.Unix(1_700_000_000, 0)
)

func u(n uint64) *uint256.Int { return uint256.NewInt(n) }

func setup(t *testing.T) (*Router, *token.Token, *token.Token) {
	t.Helper()
	tokA := token.New(common.HexToAddress("0x00000000000000000000000000000000000000f1"), "LUXB", 18, owner)
	tokB := token.New(common.HexToAddress("0x00000000000000000000000000000000000000f2"), "USDT", 6, owner)
	for _, tok := range []*token.Token{tokA, tokB} {
		require.NoError(t, tok.Mint(owner, provider, u(1_000_000_000)))
		require.NoError(t, tok.Approve(provider, routerAddr, u(1_000_000_000)))
	}
	r := NewRouter(routerAddr, func() time.Time { return now })
	r.RegisterToken(tokA)
	r.RegisterToken(tokB)
	return r, tokA, tokB
}

func deadline() uint64 { return uint64(now.Unix()) + 60 }

func TestSortAndPairAddress(t *testing.T) {
	a := common.HexToAddress("0x02")
	b := common.HexToAddress("0x01")

	t0, t1, err := SortTokens(a, b)
	require.NoError(t, err)
	require.Equal(t, b, t0)
	require.Equal(t, a, t1)

	_, _, err = SortTokens(a, a)
	require.ErrorIs(t, err, ErrIdenticalTokens)

	ab, err := PairAddress(a, b)
	require.NoError(t, err)
	ba, err := PairAddress(b, a)
	require.NoError(t, err)
	require.Equal(t, ab, ba)
	require.NotEqual(t, common.Address{}, ab)
}

func TestQuote(t *testing.T) {
	out, err := Quote(u(100), u(1_000), u(4_000))
	require.NoError(t, err)
	require.Equal(t, uint64(400), out.Uint64())

	_, err = Quote(u(0), u(1), u(1))
	require.ErrorIs(t, err, ErrInsufficientAmount)
	_, err = Quote(u(1), u(0), u(1))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestAddLiquidity(t *testing.T) {
	r, tokA, tokB := setup(t)
	require.Equal(t, common.Address{}, r.GetPair(tokA.Address(), tokB.Address()))

	// First deposit sets the price: sqrt(1e6 * 4e6) - 1000.
	a, b, liq, err := r.AddLiquidity(provider, tokA.Address(), tokB.Address(),
		u(1_000_000), u(4_000_000), u(0), u(0), provider, deadline())
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), a.Uint64())
	require.Equal(t, uint64(4_000_000), b.Uint64())
	require.Equal(t, uint64(2_000_000-1_000), liq.Uint64())

	pairAddr := r.GetPair(tokB.Address(), tokA.Address())
	require.NotEqual(t, common.Address{}, pairAddr)
	pair, ok := r.Pair(pairAddr)
	require.True(t, ok)
	require.Equal(t, uint64(2_000_000), pair.TotalSupply().Uint64())
	require.Equal(t, uint64(1_000_000), tokA.BalanceOf(pairAddr).Uint64())

	// Second deposit is trimmed to the pool ratio.
	a, b, liq, err = r.AddLiquidity(provider, tokA.Address(), tokB.Address(),
		u(1_000), u(10_000), u(0), u(0), provider, deadline())
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), a.Uint64())
	require.Equal(t, uint64(4_000), b.Uint64())
	require.Equal(t, uint64(2_000), liq.Uint64())
	require.Equal(t, uint64(1_999_000+2_000), pair.BalanceOf(provider).Uint64())

	// B side is the binding one here.
	a, b, _, err = r.AddLiquidity(provider, tokA.Address(), tokB.Address(),
		u(10_000), u(4_000), u(0), u(0), provider, deadline())
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), a.Uint64())
	require.Equal(t, uint64(4_000), b.Uint64())
}

func TestAddLiquidityRejects(t *testing.T) {
	r, tokA, tokB := setup(t)

	_, _, _, err := r.AddLiquidity(provider, tokA.Address(), tokB.Address(),
		u(1_000_000), u(1_000_000), u(0), u(0), provider, uint64(now.Unix())-1)
	require.ErrorIs(t, err, ErrExpired)

	_, _, _, err = r.AddLiquidity(provider, tokA.Address(), common.Address{0x99},
		u(1_000_000), u(1_000_000), u(0), u(0), provider, deadline())
	require.ErrorIs(t, err, ErrUnknownToken)

	// Too small for the minimum liquidity; nothing moves.
	_, _, _, err = r.AddLiquidity(provider, tokA.Address(), tokB.Address(),
		u(10), u(10), u(0), u(0), provider, deadline())
	require.ErrorIs(t, err, ErrInsufficientLiquidityMinted)
	require.Equal(t, uint64(1_000_000_000), tokA.BalanceOf(provider).Uint64())

	_, _, _, err = r.AddLiquidity(provider, tokA.Address(), tokB.Address(),
		u(1_000_000), u(1_000_000), u(0), u(0), provider, deadline())
	require.NoError(t, err)

	// Slippage floor on B.
	_, _, _, err = r.AddLiquidity(provider, tokA.Address(), tokB.Address(),
		u(1_000), u(5_000), u(0), u(1_500), provider, deadline())
	require.ErrorIs(t, err, ErrInsufficientBAmount)

	// Failed second leg returns the first.
	poor := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	require.NoError(t, tokA.Mint(owner, poor, u(500)))
	require.NoError(t, tokA.Approve(poor, routerAddr, u(500)))
	_, _, _, err = r.AddLiquidity(poor, tokA.Address(), tokB.Address(),
		u(500), u(500), u(0), u(0), poor, deadline())
	require.ErrorIs(t, err, token.ErrInsufficientAllowance)
	require.Equal(t, uint64(500), tokA.BalanceOf(poor).Uint64())
}

func TestPairShares(t *testing.T) {
	r, tokA, tokB := setup(t)
	_, _, liq, err := r.AddLiquidity(provider, tokA.Address(), tokB.Address(),
		u(1_000_000), u(1_000_000), u(0), u(0), provider, deadline())
	require.NoError(t, err)
	pair, _ := r.Pair(r.GetPair(tokA.Address(), tokB.Address()))

	locker := common.HexToAddress("0x0000000000000000000000000000000000007002")
	require.ErrorIs(t, pair.TransferFrom(locker, provider, locker, liq), ErrInsufficientAllowance)
	require.NoError(t, pair.Approve(provider, locker, liq))
	require.NoError(t, pair.TransferFrom(locker, provider, locker, liq))
	require.Equal(t, liq, pair.BalanceOf(locker))
	require.ErrorIs(t, pair.Transfer(provider, locker, u(1)), ErrInsufficientShares)
}
