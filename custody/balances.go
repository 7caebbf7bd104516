// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package custody

import (
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// BalanceSheet is an in-memory Balances, standing in for chain state.
type BalanceSheet struct {
	balances map[common.Address]*uint256.Int
	mu       sync.RWMutex
}

var _ Balances = (*BalanceSheet)(nil)

// NewBalanceSheet creates an empty sheet.
func NewBalanceSheet() *BalanceSheet {
	return &BalanceSheet{balances: make(map[common.Address]*uint256.Int)}
}

// GetBalance returns a copy of addr's balance.
func (s *BalanceSheet) GetBalance(addr common.Address) *uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.balances[addr]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

// AddBalance credits addr.
func (s *BalanceSheet) AddBalance(addr common.Address, amount *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[addr]
	if !ok {
		b = new(uint256.Int)
		s.balances[addr] = b
	}
	b.Add(b, amount)
}

// SubBalance debits addr. Callers check the balance first.
func (s *BalanceSheet) SubBalance(addr common.Address, amount *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[addr]
	if !ok {
		b = new(uint256.Int)
		s.balances[addr] = b
	}
	b.Sub(b, amount)
}
