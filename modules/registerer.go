// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/luxfi/geth/common"
)

// AddressRange represents a continuous range of addresses
type AddressRange struct {
	Start common.Address
	End   common.Address
}

// Contains returns true iff [addr] is contained within the (inclusive)
// range of addresses defined by [a].
func (a *AddressRange) Contains(addr common.Address) bool {
	addrBytes := addr.Bytes()
	return bytes.Compare(addrBytes, a.Start[:]) >= 0 && bytes.Compare(addrBytes, a.End[:]) <= 0
}

// Reserved address ranges for bridge components
//
// LOW-BYTE RANGES (0x0000...XXXX):
// 0x6000-0x6FFF: Bridge endpoints
// 0x7000-0x7FFF: Liquidity manager, router, locker
var reservedRanges = []AddressRange{
	// Bridges (0x6000-0x6FFF)
	{
		Start: common.HexToAddress("0x0000000000000000000000000000000000006000"),
		End:   common.HexToAddress("0x0000000000000000000000000000000000006fff"),
	},
	// Liquidity (0x7000-0x7FFF)
	{
		Start: common.HexToAddress("0x0000000000000000000000000000000000007000"),
		End:   common.HexToAddress("0x0000000000000000000000000000000000007fff"),
	},
}

// ReservedAddress returns true if [addr] is in a reserved range for bridge
// components
func ReservedAddress(addr common.Address) bool {
	for _, reservedRange := range reservedRanges {
		if reservedRange.Contains(addr) {
			return true
		}
	}

	return false
}

// Registry holds endpoints sorted by address for deterministic iteration.
type Registry struct {
	modules []Module
	mu      sync.RWMutex
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make([]Module, 0)}
}

// RegisterModule registers a bridge endpoint
func (r *Registry) RegisterModule(stm Module) error {
	address := stm.Address
	key := stm.ConfigKey

	if stm.Endpoint == nil {
		return fmt.Errorf("module %s has no endpoint", key)
	}
	if stm.ChainID == 0 {
		return fmt.Errorf("module %s has chain id 0", key)
	}
	if !ReservedAddress(address) {
		return fmt.Errorf("address %s not in a reserved range", address)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, registeredModule := range r.modules {
		if registeredModule.ConfigKey == key {
			return fmt.Errorf("name %s already used by a bridge endpoint", key)
		}
		if registeredModule.Address == address {
			return fmt.Errorf("address %s already used by a bridge endpoint", address)
		}
		if registeredModule.ChainID == stm.ChainID {
			return fmt.Errorf("chain %d already served by %s", stm.ChainID, registeredModule.ConfigKey)
		}
	}
	// sort by address to ensure deterministic iteration
	r.modules = append(r.modules, stm)
	slices.SortFunc(r.modules, compareModules)
	return nil
}

func (r *Registry) GetModuleByAddress(address common.Address) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stm := range r.modules {
		if stm.Address == address {
			return stm, true
		}
	}
	return Module{}, false
}

func (r *Registry) GetModule(key string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stm := range r.modules {
		if stm.ConfigKey == key {
			return stm, true
		}
	}
	return Module{}, false
}

// GetModuleByChain returns the endpoint that completes requests targeting
// chainID.
func (r *Registry) GetModuleByChain(chainID uint64) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, stm := range r.modules {
		if stm.ChainID == chainID {
			return stm, true
		}
	}
	return Module{}, false
}

func (r *Registry) RegisteredModules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.modules)
}
