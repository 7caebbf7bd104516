// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// MinimumLiquidity is burned on the first mint of every pair.
var MinimumLiquidity = uint256.NewInt(1000)

// deadAddress holds the burned minimum liquidity.
var deadAddress = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

// SortTokens orders two token addresses, token0 < token1.
func SortTokens(tokenA, tokenB common.Address) (common.Address, common.Address, error) {
	switch c := bytes.Compare(tokenA.Bytes(), tokenB.Bytes()); {
	case c == 0:
		return common.Address{}, common.Address{}, ErrIdenticalTokens
	case c < 0:
		return tokenA, tokenB, nil
	default:
		return tokenB, tokenA, nil
	}
}

// PairAddress derives the address of the pair for two tokens.
// Address: last 20 bytes of BLAKE3("pair" || token0 || token1)
func PairAddress(tokenA, tokenB common.Address) (common.Address, error) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	h := blake3.New()
	h.Write([]byte("pair"))
	h.Write(token0.Bytes())
	h.Write(token1.Bytes())

	var id [32]byte
	h.Digest().Read(id[:])
	return common.BytesToAddress(id[12:]), nil
}

// Pair is a constant-product pool. Its liquidity shares are themselves a
// token, so they can be transferred and locked.
type Pair struct {
	address common.Address
	token0  common.Address
	token1  common.Address

	reserve0    *uint256.Int
	reserve1    *uint256.Int
	totalSupply *uint256.Int
	shares      map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int

	mu sync.RWMutex
}

func newPair(token0, token1 common.Address) (*Pair, error) {
	addr, err := PairAddress(token0, token1)
	if err != nil {
		return nil, err
	}
	return &Pair{
		address:     addr,
		token0:      token0,
		token1:      token1,
		reserve0:    new(uint256.Int),
		reserve1:    new(uint256.Int),
		totalSupply: new(uint256.Int),
		shares:      make(map[common.Address]*uint256.Int),
		allowances:  make(map[common.Address]map[common.Address]*uint256.Int),
	}, nil
}

func (p *Pair) Address() common.Address { return p.address }
func (p *Pair) Token0() common.Address  { return p.token0 }
func (p *Pair) Token1() common.Address  { return p.token1 }

// GetReserves returns the reserves in token0, token1 order.
func (p *Pair) GetReserves() (*uint256.Int, *uint256.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.reserve0.Clone(), p.reserve1.Clone()
}

// TotalSupply returns the outstanding liquidity shares.
func (p *Pair) TotalSupply() *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.totalSupply.Clone()
}

// BalanceOf returns owner's liquidity shares.
func (p *Pair) BalanceOf(owner common.Address) *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.balanceOf(owner).Clone()
}

// Approve lets spender move owner's shares.
func (p *Pair) Approve(owner, spender common.Address, amount *uint256.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.allowances[owner] == nil {
		p.allowances[owner] = make(map[common.Address]*uint256.Int)
	}
	p.allowances[owner][spender] = amount.Clone()
	return nil
}

// Transfer moves shares.
func (p *Pair) Transfer(from, to common.Address, amount *uint256.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.transfer(from, to, amount)
}

// TransferFrom moves shares under spender's allowance.
func (p *Pair) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	allowed := p.allowances[from][spender]
	if allowed == nil || allowed.Lt(amount) {
		return fmt.Errorf("%w: shares of %s", ErrInsufficientAllowance, from)
	}
	if err := p.transfer(from, to, amount); err != nil {
		return err
	}
	allowed.Sub(allowed, amount)
	return nil
}

func (p *Pair) balanceOf(owner common.Address) *uint256.Int {
	if b, ok := p.shares[owner]; ok {
		return b
	}
	return new(uint256.Int)
}

func (p *Pair) transfer(from, to common.Address, amount *uint256.Int) error {
	bal := p.balanceOf(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s shares, needs %s", ErrInsufficientShares, from, bal.Dec(), amount.Dec())
	}
	p.shares[from] = new(uint256.Int).Sub(bal, amount)
	p.shares[to] = new(uint256.Int).Add(p.balanceOf(to), amount)
	return nil
}

// liquidityFor returns the shares a deposit of amount0/amount1 would mint.
// The first deposit also reports the minimum liquidity that gets burned.
func (p *Pair) liquidityFor(amount0, amount1 *uint256.Int) (*uint256.Int, bool, error) {
	if p.totalSupply.IsZero() {
		product, overflow := new(uint256.Int).MulOverflow(amount0, amount1)
		if overflow {
			return nil, false, ErrOverflow
		}
		root := new(uint256.Int).Sqrt(product)
		if !root.Gt(MinimumLiquidity) {
			return nil, false, ErrInsufficientLiquidityMinted
		}
		return root.Sub(root, MinimumLiquidity), true, nil
	}

	l0, overflow0 := new(uint256.Int).MulDivOverflow(amount0, p.totalSupply, p.reserve0)
	l1, overflow1 := new(uint256.Int).MulDivOverflow(amount1, p.totalSupply, p.reserve1)
	if overflow0 || overflow1 {
		return nil, false, ErrOverflow
	}
	liquidity := l0
	if l1.Lt(l0) {
		liquidity = l1
	}
	if liquidity.IsZero() {
		return nil, false, ErrInsufficientLiquidityMinted
	}
	return liquidity, false, nil
}

// PreviewMint returns the shares a deposit would mint without changing the
// pair.
func (p *Pair) PreviewMint(amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	liquidity, _, err := p.liquidityFor(amount0, amount1)
	return liquidity, err
}

// mint adds amount0/amount1 to the reserves and credits to with the
// resulting shares. The caller has already moved the tokens.
func (p *Pair) mint(to common.Address, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	liquidity, first, err := p.liquidityFor(amount0, amount1)
	if err != nil {
		return nil, err
	}
	if first {
		p.shares[deadAddress] = MinimumLiquidity.Clone()
		p.totalSupply = MinimumLiquidity.Clone()
	}
	p.reserve0 = new(uint256.Int).Add(p.reserve0, amount0)
	p.reserve1 = new(uint256.Int).Add(p.reserve1, amount1)
	p.totalSupply = new(uint256.Int).Add(p.totalSupply, liquidity)
	p.shares[to] = new(uint256.Int).Add(p.balanceOf(to), liquidity)
	return liquidity.Clone(), nil
}
