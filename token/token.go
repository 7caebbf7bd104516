// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token is an in-memory fungible token with a cross-chain mint/burn
// extension. Exactly one bridge is authorized at a time and bridging can be
// paused independently of the bridge itself.
package token

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/bridgekit/custody"
	"github.com/luxfi/bridgekit/faults"
)

var (
	ErrUnauthorized          = faults.New(faults.AuthorizationFailure, "token: caller is not the owner")
	ErrZeroAddress           = faults.New(faults.IntegrityViolation, "token: zero address")
	ErrBridgePaused          = faults.New(faults.ExternalCapabilityFailure, "token: bridging paused")
	ErrInsufficientBalance   = faults.New(faults.ExternalCapabilityFailure, "token: transfer amount exceeds balance")
	ErrInsufficientAllowance = faults.New(faults.ExternalCapabilityFailure, "token: insufficient allowance")
	ErrSupplyOverflow        = faults.New(faults.ExternalCapabilityFailure, "token: total supply overflow")
)

// Token is an ERC20-style ledger.
type Token struct {
	address  common.Address
	symbol   string
	decimals uint8

	owner        common.Address
	bridge       common.Address
	bridgePaused bool

	totalSupply *uint256.Int
	balances    map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int

	mu sync.RWMutex
}

var _ custody.Token = (*Token)(nil)

// New creates an empty token owned by owner.
func New(address common.Address, symbol string, decimals uint8, owner common.Address) *Token {
	return &Token{
		address:     address,
		symbol:      symbol,
		decimals:    decimals,
		owner:       owner,
		totalSupply: new(uint256.Int),
		balances:    make(map[common.Address]*uint256.Int),
		allowances:  make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return t.decimals }

// SetBridge authorizes bridge for cross-chain mint and burn. Owner only.
func (t *Token) SetBridge(caller, bridge common.Address) error {
	if bridge == (common.Address{}) {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if caller != t.owner {
		return ErrUnauthorized
	}
	t.bridge = bridge
	return nil
}

// SetBridgePaused toggles cross-chain mint and burn. Owner only.
func (t *Token) SetBridgePaused(caller common.Address, paused bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if caller != t.owner {
		return ErrUnauthorized
	}
	t.bridgePaused = paused
	return nil
}

// AuthorizedBridge implements custody.Token.
func (t *Token) AuthorizedBridge() common.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.bridge
}

// IsBridgePaused implements custody.Token.
func (t *Token) IsBridgePaused() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.bridgePaused
}

// CrosschainMint implements custody.Token.
func (t *Token) CrosschainMint(to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bridgePaused {
		return ErrBridgePaused
	}
	return t.mint(to, amount)
}

// CrosschainBurn implements custody.Token.
func (t *Token) CrosschainBurn(from common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bridgePaused {
		return ErrBridgePaused
	}
	return t.burn(from, amount)
}

// Mint creates amount for to. Owner only.
func (t *Token) Mint(caller, to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if caller != t.owner {
		return ErrUnauthorized
	}
	return t.mint(to, amount)
}

// TotalSupply returns the circulating supply.
func (t *Token) TotalSupply() *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.totalSupply.Clone()
}

// BalanceOf returns account's balance.
func (t *Token) BalanceOf(account common.Address) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.balanceOf(account).Clone()
}

// Allowance returns what spender may move on behalf of owner.
func (t *Token) Allowance(owner, spender common.Address) *uint256.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if a, ok := t.allowances[owner][spender]; ok {
		return a.Clone()
	}
	return new(uint256.Int)
}

// Approve sets spender's allowance over owner's balance.
func (t *Token) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*uint256.Int)
	}
	t.allowances[owner][spender] = amount.Clone()
	return nil
}

// Transfer moves amount from from to to.
func (t *Token) Transfer(from, to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.transfer(from, to, amount)
}

// TransferFrom moves amount from from to to using spender's allowance.
func (t *Token) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	allowed := t.allowances[from][spender]
	if allowed == nil || allowed.Lt(amount) {
		return fmt.Errorf("%w: %s may spend %s of %s, needs %s",
			ErrInsufficientAllowance, spender, allowanceDec(allowed), from, amount.Dec())
	}
	if err := t.transfer(from, to, amount); err != nil {
		return err
	}
	allowed.Sub(allowed, amount)
	return nil
}

func (t *Token) balanceOf(account common.Address) *uint256.Int {
	if b, ok := t.balances[account]; ok {
		return b
	}
	return new(uint256.Int)
}

func (t *Token) transfer(from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	bal := t.balanceOf(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, bal.Dec(), amount.Dec())
	}
	t.balances[from] = new(uint256.Int).Sub(bal, amount)
	t.balances[to] = new(uint256.Int).Add(t.balanceOf(to), amount)
	return nil
}

func (t *Token) mint(to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	supply, overflow := new(uint256.Int).AddOverflow(t.totalSupply, amount)
	if overflow {
		return ErrSupplyOverflow
	}
	t.totalSupply = supply
	t.balances[to] = new(uint256.Int).Add(t.balanceOf(to), amount)
	return nil
}

func (t *Token) burn(from common.Address, amount *uint256.Int) error {
	bal := t.balanceOf(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, burn needs %s", ErrInsufficientBalance, from, bal.Dec(), amount.Dec())
	}
	t.balances[from] = new(uint256.Int).Sub(bal, amount)
	t.totalSupply = new(uint256.Int).Sub(t.totalSupply, amount)
	return nil
}

func allowanceDec(a *uint256.Int) string {
	if a == nil {
		return "0"
	}
	return a.Dec()
}
