// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package liquidity

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/bridgekit/access"
)

// SetRouter replaces the AMM router and the lookup for its pairs.
func (m *Manager) SetRouter(caller common.Address, router Router, pairs PairLookup) error {
	if err := m.roles.Authorize(caller, access.Admin); err != nil {
		return err
	}
	if router == nil || pairs == nil {
		return fmt.Errorf("%w: nil router", ErrInvalidConfig)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.router = router
	m.pairs = pairs
	m.log.Info("liquidity router updated", "router", router.Address())
	return nil
}

// SetLocker replaces the LP lock provider.
func (m *Manager) SetLocker(caller common.Address, locker Locker) error {
	if err := m.roles.Authorize(caller, access.Admin); err != nil {
		return err
	}
	if locker == nil {
		return fmt.Errorf("%w: nil locker", ErrInvalidConfig)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.locker = locker
	m.log.Info("liquidity locker updated", "locker", locker.Address())
	return nil
}

// SetLockDuration changes how long future LP locks last.
func (m *Manager) SetLockDuration(caller common.Address, seconds uint64) error {
	if err := m.roles.Authorize(caller, access.Admin); err != nil {
		return err
	}
	if seconds == 0 {
		return fmt.Errorf("%w: lock duration is zero", ErrInvalidConfig)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lockSeconds = seconds
	m.log.Info("liquidity lock duration updated", "seconds", seconds)
	return nil
}

// LockDuration returns the lock length in seconds.
func (m *Manager) LockDuration() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lockSeconds
}

// UserInfo returns account's balances and transaction count.
func (m *Manager) UserInfo(account common.Address) (*UserInfo, error) {
	return getUser(m.store, account)
}

// Transaction returns account's transaction at position pos.
func (m *Manager) Transaction(account common.Address, pos uint64) (*Transaction, error) {
	return getTx(m.store, account, pos)
}

// TransactionByRequest returns the transaction recorded for id and its owner.
func (m *Manager) TransactionByRequest(id common.Hash) (common.Address, *Transaction, error) {
	owner, pos, ok, err := getRecord(m.store, id)
	if err != nil {
		return common.Address{}, nil, err
	}
	if !ok {
		return common.Address{}, nil, fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	tx, err := getTx(m.store, owner, pos)
	return owner, tx, err
}

// ExpectedCounterpart quotes the tokenB amount matching amountA at the
// pair's current reserves.
func (m *Manager) ExpectedCounterpart(amountA *uint256.Int) (*uint256.Int, error) {
	m.mu.Lock()
	router, pairs := m.router, m.pairs
	m.mu.Unlock()

	if router == nil || pairs == nil {
		return nil, ErrNotConfigured
	}
	addr := router.GetPair(m.tokenA, m.tokenB)
	pair, ok := pairs(addr)
	if addr == (common.Address{}) || !ok {
		return nil, ErrNoPair
	}
	reserve0, reserve1 := pair.GetReserves()
	reserveA, reserveB := reserve0, reserve1
	if pair.Token0() != m.tokenA {
		reserveA, reserveB = reserve1, reserve0
	}
	return router.Quote(amountA, reserveA, reserveB)
}
