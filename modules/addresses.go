// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"github.com/luxfi/geth/common"

	"github.com/luxfi/bridgekit/chains"
)

// ============================================================================
// COMPONENT ADDRESS SCHEME
// ============================================================================
//
// Bridge components use trailing-significant 20-byte addresses:
//   Format: 0x0000000000000000000000000000000000PCII
//
//   P  = family page (6 = bridge endpoints, 7 = liquidity components)
//   C  = chain slot   (see ChainSlot)
//   II = item within the family and chain
//
// Example: the Lux bridge endpoint = P=6, C=7, II=00
//          Address = 0x0000000000000000000000000000000000006700

// Family is the P nibble of a component address.
type Family uint8

const (
	FamilyBridge    Family = 0x6
	FamilyLiquidity Family = 0x7
)

// Items within FamilyLiquidity.
const (
	ItemManager uint8 = 0x00
	ItemRouter  uint8 = 0x01
	ItemLocker  uint8 = 0x02
)

// slots assigns the C nibble per chain id
var slots = map[uint64]uint8{
	chains.ChainEthereum:  0x0,
	chains.ChainOptimism:  0x1,
	chains.ChainBSC:       0x2,
	chains.ChainPolygon:   0x3,
	chains.ChainBase:      0x4,
	chains.ChainArbitrum:  0x5,
	chains.ChainAvalanche: 0x6,
	chains.ChainLux:       0x7,
	chains.ChainLuxTest:   0x8,
}

// ChainSlot returns the C nibble for chainID.
func ChainSlot(chainID uint64) (uint8, bool) {
	slot, ok := slots[chainID]
	return slot, ok
}

// ComponentAddress builds the address for (family, slot, item). It returns
// the zero address when a nibble is out of range.
func ComponentAddress(family Family, slot, item uint8) common.Address {
	if family > 0xF || slot > 0xF {
		return common.Address{}
	}
	var addr common.Address
	addr[18] = byte(family)<<4 | slot
	addr[19] = item
	return addr
}

// EndpointAddress returns the bridge endpoint address for chainID.
func EndpointAddress(chainID uint64) (common.Address, bool) {
	slot, ok := ChainSlot(chainID)
	if !ok {
		return common.Address{}, false
	}
	return ComponentAddress(FamilyBridge, slot, 0), true
}
