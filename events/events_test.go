// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/bridgekit/requestid"
)

var testContract = common.HexToAddress("0x0000000000000000000000000000000000006010")

func TestBridgeInitiatedLog(t *testing.T) {
	req := &requestid.Request{
		From:        common.HexToAddress("0x1234567890123456789012345678901234567890"),
		To:          common.HexToAddress("0xABCDEFABCDEFABCDEFABCDEFABCDEFABCDEFABCD"),
		Amount:      uint256.MustFromDecimal("100000000000000000000"),
		SourceChain: 1,
		TargetChain: 56,
		Nonce:       4,
		Salt:        1_700_000_000,
	}
	id := requestid.Derive(requestid.Salted, req)

	log, err := PackBridgeInitiated(testContract, id, req)
	require.NoError(t, err)
	require.Equal(t, testContract, log.Address)
	require.Len(t, log.Topics, 4)
	require.Equal(t, BridgeABI.Events[NameBridgeInitiated].ID, log.Topics[0])
	require.Equal(t, id, log.Topics[1])

	ev, err := DecodeBridgeInitiated(log)
	require.NoError(t, err)
	require.Equal(t, id, ev.RequestID)
	require.Equal(t, req.From, ev.From)
	require.Equal(t, req.To, ev.To)
	require.Equal(t, req.Amount.Dec(), ev.Amount.Dec())
	require.Equal(t, req.Nonce, ev.Nonce)
	require.Equal(t, req.Salt, ev.Salt)

	// The decoded request hashes back to the emitted id.
	require.NoError(t, requestid.Verify(requestid.Salted, ev.Request(), id))
}

func TestDecodeWrongEvent(t *testing.T) {
	log, err := PackBridgeCompleted(testContract, common.HexToHash("0x01"), common.Address{1}, uint256.NewInt(5), 56)
	require.NoError(t, err)

	_, err = DecodeBridgeInitiated(log)
	require.Error(t, err)

	ev, err := DecodeBridgeCompleted(log)
	require.NoError(t, err)
	require.Equal(t, uint64(5), ev.Amount.Uint64())
	require.Equal(t, uint64(56), ev.TargetChain)
	require.Equal(t, common.Address{1}, ev.To)
}

func TestPackEventArgCount(t *testing.T) {
	_, _, err := BridgeABI.PackEvent(NamePaused)
	require.Error(t, err)
	_, _, err = BridgeABI.PackEvent("Missing", common.Address{})
	require.Error(t, err)
}

func TestChainSupportTopic(t *testing.T) {
	log, err := BridgeABI.Log(testContract, NameChainSupportUpdated, BigU64(56), true)
	require.NoError(t, err)
	require.Equal(t, common.BigToHash(BigU64(56)), log.Topics[1])

	_, values, err := BridgeABI.UnpackEvent(NameChainSupportUpdated, log)
	require.NoError(t, err)
	require.Equal(t, true, values[0])
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	for i := 0; i < 3; i++ {
		log, err := BridgeABI.Log(testContract, NamePaused, common.Address{byte(i)})
		require.NoError(t, err)
		r.Emit(log)
	}
	completed, err := PackBridgeCompleted(testContract, common.Hash{}, common.Address{}, uint256.NewInt(1), 1)
	require.NoError(t, err)
	r.Emit(completed)

	require.Equal(t, 4, r.Len())
	require.Len(t, r.Since(2), 2)
	require.Nil(t, r.Since(10))
	require.Equal(t, uint(3), r.Since(3)[0].Index)
	require.Len(t, r.Filter(BridgeABI, NamePaused), 3)
	require.Len(t, r.Filter(BridgeABI, NameBridgeCompleted), 1)
}
