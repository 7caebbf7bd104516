// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"

	"github.com/luxfi/bridgekit/access"
	"github.com/luxfi/bridgekit/custody"
	"github.com/luxfi/bridgekit/events"
	"github.com/luxfi/bridgekit/policy"
	"github.com/luxfi/bridgekit/requestid"
)

// SetChainSupport enables or disables chainID as a target. Admin only.
func (b *Bridge) SetChainSupport(caller common.Address, chainID uint64, enabled bool) error {
	if err := b.roles.Authorize(caller, access.Admin); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	txn := b.store.Begin()
	defer txn.Discard()

	if err := b.chains.SetSupport(txn, chainID, enabled); err != nil {
		return err
	}
	l, err := events.BridgeABI.Log(b.address, events.NameChainSupportUpdated, events.BigU64(chainID), enabled)
	if err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}

	b.emit(l)
	b.log.Info("chain support updated", "chainID", chainID, "enabled", enabled)
	return nil
}

// SetTransferLimits replaces the transfer policy. Admin only. The current
// daily window is kept; a lower daily limit takes effect on the next
// initiate.
func (b *Bridge) SetTransferLimits(caller common.Address, limits policy.Limits) error {
	if err := b.roles.Authorize(caller, access.Admin); err != nil {
		return err
	}
	if err := limits.Verify(); err != nil {
		return err
	}
	n := limits.Normalized()
	l, err := events.BridgeABI.Log(b.address, events.NameTransferLimitsUpdated,
		events.Big(n.Min), events.Big(n.Max), events.Big(n.Daily))
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.limits = n
	b.mu.Unlock()

	b.emit(l)
	b.log.Info("transfer limits updated",
		"min", n.Min,
		"max", n.Max,
		"daily", n.Daily,
	)
	return nil
}

// Pause stops Initiate and Complete. Pauser role.
func (b *Bridge) Pause(caller common.Address) error {
	return b.setPaused(caller, true)
}

// Unpause resumes the bridge. Pauser role.
func (b *Bridge) Unpause(caller common.Address) error {
	return b.setPaused(caller, false)
}

func (b *Bridge) setPaused(caller common.Address, paused bool) error {
	if err := b.roles.Authorize(caller, access.Pauser); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.paused == paused {
		if paused {
			return ErrPaused
		}
		return ErrNotPaused
	}

	name := events.NameUnpaused
	if paused {
		name = events.NamePaused
	}
	l, err := events.BridgeABI.Log(b.address, name, caller)
	if err != nil {
		return err
	}
	b.paused = paused

	b.emit(l)
	b.log.Info("bridge pause toggled", "paused", paused, "by", caller)
	return nil
}

// FundPool moves amount from caller into the release pool of a native
// bridge. Admin only.
func (b *Bridge) FundPool(caller common.Address, amount *uint256.Int) error {
	if err := b.roles.Authorize(caller, access.Admin); err != nil {
		return err
	}
	native, ok := b.custody.(*custody.Native)
	if !ok {
		return ErrNotNative
	}
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := native.Debit(caller, amount); err != nil {
		return err
	}
	b.log.Info("release pool funded", "by", caller, "amount", amount, "locked", native.Locked())
	return nil
}

// Queries

// IsProcessed reports whether id has completed on this endpoint.
func (b *Bridge) IsProcessed(id common.Hash) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.ledger.IsProcessed(b.store, id)
}

// Nonce returns the nonce account's next initiate will use.
func (b *Bridge) Nonce(account common.Address) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.ledger.Nonce(b.store, account)
}

// RemainingDailyLimit returns what can still be initiated today.
func (b *Bridge) RemainingDailyLimit() (*uint256.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	w, err := loadWindow(b.store)
	if err != nil {
		return nil, err
	}
	return b.limits.Remaining(w, b.clock()), nil
}

// IsChainSupported reports whether chainID is an enabled target.
func (b *Bridge) IsChainSupported(chainID uint64) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.chains.IsSupported(b.store, chainID)
}

// SupportedChains lists enabled target chains in ascending order.
func (b *Bridge) SupportedChains() ([]uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.chains.Supported(b.store)
}

// Limits returns the transfer policy.
func (b *Bridge) Limits() policy.Limits {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return policy.Limits{
		Min:   b.limits.Min.Clone(),
		Max:   b.limits.Max.Clone(),
		Daily: b.limits.Daily.Clone(),
	}
}

// Paused reports the bridge's own pause switch.
func (b *Bridge) Paused() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.paused
}

// Locked returns the release pool balance of a native bridge.
func (b *Bridge) Locked() (*uint256.Int, error) {
	native, ok := b.custody.(*custody.Native)
	if !ok {
		return nil, ErrNotNative
	}
	return native.Locked(), nil
}

func (b *Bridge) ChainID() uint64          { return b.chainID }
func (b *Bridge) Address() common.Address  { return b.address }
func (b *Bridge) Variant() Variant         { return b.variant }
func (b *Bridge) Scheme() requestid.Scheme { return b.scheme }

// ParseInitiated decodes a BridgeInitiated log emitted by this endpoint.
func (b *Bridge) ParseInitiated(l *types.Log) (*events.BridgeInitiated, error) {
	if l.Address != b.address {
		return nil, fmt.Errorf("log emitted by %s, not %s", l.Address, b.address)
	}
	return events.DecodeBridgeInitiated(l)
}
