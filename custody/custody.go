// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package custody moves value in and out of the bridge. Mintable burns on the
// source chain and mints on the destination; Native locks value attached to
// the call and releases it from the locked pool.
package custody

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/bridgekit/faults"
)

var (
	ErrTokenPaused               = faults.New(faults.ExternalCapabilityFailure, "token bridging is paused")
	ErrBridgeNotAuthorized       = faults.New(faults.AuthorizationFailure, "bridge is not the token's authorized bridge")
	ErrInsufficientBalance       = faults.New(faults.ExternalCapabilityFailure, "insufficient balance")
	ErrInsufficientPoolLiquidity = faults.New(faults.ExternalCapabilityFailure, "insufficient locked pool liquidity")
)

// Custody is the asset side of a bridge endpoint.
type Custody interface {
	// Ready fails when the asset cannot move right now.
	Ready() error
	// Debit takes amount from an initiating account.
	Debit(from common.Address, amount *uint256.Int) error
	// Credit pays amount to the recipient of a completed request.
	Credit(to common.Address, amount *uint256.Int) error
}

// Token is the capability a mintable bridged token exposes to its bridge.
type Token interface {
	CrosschainMint(to common.Address, amount *uint256.Int) error
	CrosschainBurn(from common.Address, amount *uint256.Int) error
	IsBridgePaused() bool
	AuthorizedBridge() common.Address
}

// Mintable is burn/mint custody over a Token.
type Mintable struct {
	token  Token
	bridge common.Address
}

var _ Custody = (*Mintable)(nil)

// NewMintable returns burn/mint custody for the bridge at address bridge.
func NewMintable(token Token, bridge common.Address) *Mintable {
	return &Mintable{token: token, bridge: bridge}
}

// Ready checks the token's own pause switch and that it recognizes this
// bridge. The token pause is independent of the bridge pause.
func (m *Mintable) Ready() error {
	if m.token.IsBridgePaused() {
		return ErrTokenPaused
	}
	if got := m.token.AuthorizedBridge(); got != m.bridge {
		return fmt.Errorf("%w: token expects %s, bridge is %s", ErrBridgeNotAuthorized, got, m.bridge)
	}
	return nil
}

// Debit burns amount from from.
func (m *Mintable) Debit(from common.Address, amount *uint256.Int) error {
	return faults.External(m.token.CrosschainBurn(from, amount))
}

// Credit mints amount to to.
func (m *Mintable) Credit(to common.Address, amount *uint256.Int) error {
	return faults.External(m.token.CrosschainMint(to, amount))
}

// Balances is native-asset accounting.
type Balances interface {
	GetBalance(addr common.Address) *uint256.Int
	AddBalance(addr common.Address, amount *uint256.Int)
	SubBalance(addr common.Address, amount *uint256.Int)
}

// Native is lock/release custody: locked value sits on the pool account.
type Native struct {
	balances Balances
	pool     common.Address
}

var _ Custody = (*Native)(nil)

// NewNative returns lock/release custody holding value on pool.
func NewNative(balances Balances, pool common.Address) *Native {
	return &Native{balances: balances, pool: pool}
}

// Ready implements Custody. Native value has no pause switch of its own.
func (n *Native) Ready() error { return nil }

// Debit locks the value attached to the call.
func (n *Native) Debit(from common.Address, amount *uint256.Int) error {
	if n.balances.GetBalance(from).Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from,
			n.balances.GetBalance(from).Dec(), amount.Dec())
	}
	n.balances.SubBalance(from, amount)
	n.balances.AddBalance(n.pool, amount)
	return nil
}

// Credit releases locked value after checking the pool covers it.
func (n *Native) Credit(to common.Address, amount *uint256.Int) error {
	locked := n.balances.GetBalance(n.pool)
	if locked.Lt(amount) {
		return fmt.Errorf("%w: pool holds %s, release needs %s", ErrInsufficientPoolLiquidity, locked.Dec(), amount.Dec())
	}
	n.balances.SubBalance(n.pool, amount)
	n.balances.AddBalance(to, amount)
	return nil
}

// Locked returns the value currently held for release.
func (n *Native) Locked() *uint256.Int {
	return n.balances.GetBalance(n.pool).Clone()
}

// Pool returns the account holding locked value.
func (n *Native) Pool() common.Address { return n.pool }
