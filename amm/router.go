// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package amm is a constant-product router and pair set. Liquidity is added
// at the pool ratio; the first deposit sets the price.
package amm

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/bridgekit/faults"
)

var (
	ErrIdenticalTokens             = faults.New(faults.IntegrityViolation, "amm: identical tokens")
	ErrUnknownToken                = faults.New(faults.IntegrityViolation, "amm: token not registered")
	ErrExpired                     = faults.New(faults.PolicyViolation, "amm: deadline expired")
	ErrInsufficientAmount          = faults.New(faults.PolicyViolation, "amm: insufficient amount")
	ErrInsufficientLiquidity       = faults.New(faults.StateConflict, "amm: insufficient liquidity")
	ErrInsufficientAAmount         = faults.New(faults.PolicyViolation, "amm: insufficient A amount")
	ErrInsufficientBAmount         = faults.New(faults.PolicyViolation, "amm: insufficient B amount")
	ErrInsufficientLiquidityMinted = faults.New(faults.PolicyViolation, "amm: insufficient liquidity minted")
	ErrInsufficientShares          = faults.New(faults.ExternalCapabilityFailure, "amm: insufficient liquidity shares")
	ErrInsufficientAllowance       = faults.New(faults.ExternalCapabilityFailure, "amm: insufficient allowance")
	ErrOverflow                    = faults.New(faults.PolicyViolation, "amm: arithmetic overflow")
)

// Token is what the router needs from a pooled token.
type Token interface {
	Address() common.Address
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
}

// Router creates pairs and routes liquidity into them.
type Router struct {
	address common.Address
	clock   func() time.Time

	tokens map[common.Address]Token
	pairs  map[common.Address]*Pair

	mu sync.RWMutex
}

// NewRouter creates a router. clock defaults to time.Now.
func NewRouter(address common.Address, clock func() time.Time) *Router {
	if clock == nil {
		clock = time.Now
	}
	return &Router{
		address: address,
		clock:   clock,
		tokens:  make(map[common.Address]Token),
		pairs:   make(map[common.Address]*Pair),
	}
}

// Address is the spender callers approve before AddLiquidity.
func (r *Router) Address() common.Address { return r.address }

// RegisterToken makes token poolable.
func (r *Router) RegisterToken(token Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[token.Address()] = token
}

// CreatePair creates the pair for two registered tokens, or returns the
// existing one.
func (r *Router) CreatePair(tokenA, tokenB common.Address) (*Pair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.createPair(tokenA, tokenB)
}

func (r *Router) createPair(tokenA, tokenB common.Address) (*Pair, error) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	for _, t := range []common.Address{token0, token1} {
		if _, ok := r.tokens[t]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownToken, t)
		}
	}
	addr, err := PairAddress(token0, token1)
	if err != nil {
		return nil, err
	}
	if p, ok := r.pairs[addr]; ok {
		return p, nil
	}
	p, err := newPair(token0, token1)
	if err != nil {
		return nil, err
	}
	r.pairs[addr] = p
	return p, nil
}

// GetPair returns the pair address for two tokens, or the zero address if
// none exists.
func (r *Router) GetPair(tokenA, tokenB common.Address) common.Address {
	addr, err := PairAddress(tokenA, tokenB)
	if err != nil {
		return common.Address{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.pairs[addr]; !ok {
		return common.Address{}
	}
	return addr
}

// Pair returns the pair at addr.
func (r *Router) Pair(addr common.Address) (*Pair, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pairs[addr]
	return p, ok
}

// Quote returns the amount of B equivalent to amountA at the given reserves.
func (r *Router) Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	return Quote(amountA, reserveA, reserveB)
}

// Quote: amountB = amountA * reserveB / reserveA
func Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	if amountA == nil || amountA.IsZero() {
		return nil, ErrInsufficientAmount
	}
	if reserveA == nil || reserveB == nil || reserveA.IsZero() || reserveB.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	out, overflow := new(uint256.Int).MulDivOverflow(amountA, reserveB, reserveA)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// AddLiquidity pulls the optimal amounts of tokenA and tokenB from caller
// (who must have approved the router) and mints shares to `to`. Amounts
// used never exceed the desired amounts.
func (r *Router) AddLiquidity(
	caller common.Address,
	tokenA, tokenB common.Address,
	amountADesired, amountBDesired *uint256.Int,
	amountAMin, amountBMin *uint256.Int,
	to common.Address,
	deadline uint64,
) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if uint64(r.clock().Unix()) > deadline {
		return nil, nil, nil, ErrExpired
	}
	pair, err := r.createPair(tokenA, tokenB)
	if err != nil {
		return nil, nil, nil, err
	}

	amountA, amountB, err := optimalAmounts(pair, tokenA, amountADesired, amountBDesired, amountAMin, amountBMin)
	if err != nil {
		return nil, nil, nil, err
	}

	amount0, amount1 := amountA, amountB
	if tokenA != pair.token0 {
		amount0, amount1 = amountB, amountA
	}
	if _, err := pair.PreviewMint(amount0, amount1); err != nil {
		return nil, nil, nil, err
	}

	if err := r.tokens[tokenA].TransferFrom(r.address, caller, pair.address, amountA); err != nil {
		return nil, nil, nil, faults.External(err)
	}
	if err := r.tokens[tokenB].TransferFrom(r.address, caller, pair.address, amountB); err != nil {
		if undoErr := r.tokens[tokenA].Transfer(pair.address, caller, amountA); undoErr != nil {
			return nil, nil, nil, faults.External(errors.Join(err, undoErr))
		}
		return nil, nil, nil, faults.External(err)
	}

	liquidity, err := pair.mint(to, amount0, amount1)
	if err != nil {
		return nil, nil, nil, err
	}
	return amountA, amountB, liquidity, nil
}

func optimalAmounts(pair *Pair, tokenA common.Address, aDesired, bDesired, aMin, bMin *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	reserve0, reserve1 := pair.GetReserves()
	reserveA, reserveB := reserve0, reserve1
	if tokenA != pair.token0 {
		reserveA, reserveB = reserve1, reserve0
	}
	if reserveA.IsZero() && reserveB.IsZero() {
		return aDesired.Clone(), bDesired.Clone(), nil
	}

	bOptimal, err := Quote(aDesired, reserveA, reserveB)
	if err != nil {
		return nil, nil, err
	}
	if !bOptimal.Gt(bDesired) {
		if bOptimal.Lt(bMin) {
			return nil, nil, ErrInsufficientBAmount
		}
		return aDesired.Clone(), bOptimal, nil
	}
	aOptimal, err := Quote(bDesired, reserveB, reserveA)
	if err != nil {
		return nil, nil, err
	}
	if aOptimal.Gt(aDesired) {
		return nil, nil, ErrInsufficientAAmount
	}
	if aOptimal.Lt(aMin) {
		return nil, nil, ErrInsufficientAAmount
	}
	return aOptimal, bDesired.Clone(), nil
}
