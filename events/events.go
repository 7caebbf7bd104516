// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events encodes the logs produced by the bridge and the liquidity
// manager as EVM logs, so off-chain relayers and indexers consume them with
// the same ABI they would use against a deployed contract.
package events

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"

	"github.com/luxfi/bridgekit/requestid"
)

// Event names
const (
	NameBridgeInitiated       = "BridgeInitiated"
	NameBridgeCompleted       = "BridgeCompleted"
	NameChainSupportUpdated   = "ChainSupportUpdated"
	NameTransferLimitsUpdated = "TransferLimitsUpdated"
	NamePaused                = "Paused"
	NameUnpaused              = "Unpaused"
	NameValidatorApproved     = "ValidatorApproved"

	NameUserDeposit     = "UserDeposit"
	NameLiquidityAdded  = "LiquidityAdded"
	NameLiquidityLocked = "LiquidityLocked"
	NameClaimed         = "Claimed"
)

const bridgeABIJSON = `[
  {"type":"event","name":"BridgeInitiated","anonymous":false,"inputs":[
    {"name":"requestId","type":"bytes32","indexed":true},
    {"name":"from","type":"address","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"sourceChain","type":"uint256","indexed":false},
    {"name":"targetChain","type":"uint256","indexed":false},
    {"name":"nonce","type":"uint256","indexed":false},
    {"name":"salt","type":"uint256","indexed":false}]},
  {"type":"event","name":"BridgeCompleted","anonymous":false,"inputs":[
    {"name":"requestId","type":"bytes32","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"targetChain","type":"uint256","indexed":false}]},
  {"type":"event","name":"ChainSupportUpdated","anonymous":false,"inputs":[
    {"name":"chainId","type":"uint256","indexed":true},
    {"name":"enabled","type":"bool","indexed":false}]},
  {"type":"event","name":"TransferLimitsUpdated","anonymous":false,"inputs":[
    {"name":"minTransfer","type":"uint256","indexed":false},
    {"name":"maxTransfer","type":"uint256","indexed":false},
    {"name":"dailyLimit","type":"uint256","indexed":false}]},
  {"type":"event","name":"Paused","anonymous":false,"inputs":[
    {"name":"account","type":"address","indexed":false}]},
  {"type":"event","name":"Unpaused","anonymous":false,"inputs":[
    {"name":"account","type":"address","indexed":false}]},
  {"type":"event","name":"ValidatorApproved","anonymous":false,"inputs":[
    {"name":"requestId","type":"bytes32","indexed":true},
    {"name":"validator","type":"address","indexed":true},
    {"name":"approvals","type":"uint256","indexed":false}]}
]`

const liquidityABIJSON = `[
  {"type":"event","name":"BridgeCompleted","anonymous":false,"inputs":[
    {"name":"requestId","type":"bytes32","indexed":true},
    {"name":"user","type":"address","indexed":true},
    {"name":"tokenAAmount","type":"uint256","indexed":false},
    {"name":"tokenBAmount","type":"uint256","indexed":false}]},
  {"type":"event","name":"UserDeposit","anonymous":false,"inputs":[
    {"name":"requestId","type":"bytes32","indexed":true},
    {"name":"user","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"LiquidityAdded","anonymous":false,"inputs":[
    {"name":"requestId","type":"bytes32","indexed":true},
    {"name":"user","type":"address","indexed":true},
    {"name":"amountA","type":"uint256","indexed":false},
    {"name":"amountB","type":"uint256","indexed":false},
    {"name":"liquidity","type":"uint256","indexed":false},
    {"name":"slippageBps","type":"uint256","indexed":false}]},
  {"type":"event","name":"LiquidityLocked","anonymous":false,"inputs":[
    {"name":"requestId","type":"bytes32","indexed":true},
    {"name":"user","type":"address","indexed":true},
    {"name":"lockId","type":"uint256","indexed":false},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"unlockTime","type":"uint256","indexed":false}]},
  {"type":"event","name":"Claimed","anonymous":false,"inputs":[
    {"name":"user","type":"address","indexed":true},
    {"name":"token","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]}
]`

var (
	// BridgeABI describes the events of a bridge endpoint.
	BridgeABI = ParseABI(bridgeABIJSON)
	// LiquidityABI describes the events of the liquidity manager.
	LiquidityABI = ParseABI(liquidityABIJSON)
)

// Big converts a possibly nil uint256 to the *big.Int the ABI packer expects.
func Big(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}

// BigU64 converts a uint64 for a uint256 ABI slot.
func BigU64(n uint64) *big.Int {
	return new(big.Int).SetUint64(n)
}

func toUint256(v interface{}) (*uint256.Int, error) {
	b, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("expected *big.Int, got %T", v)
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("value %s overflows uint256", b)
	}
	return u, nil
}

func toUint64(v interface{}) (uint64, error) {
	b, ok := v.(*big.Int)
	if !ok {
		return 0, fmt.Errorf("expected *big.Int, got %T", v)
	}
	if !b.IsUint64() {
		return 0, fmt.Errorf("value %s overflows uint64", b)
	}
	return b.Uint64(), nil
}

func topicAddress(h common.Hash) common.Address {
	return common.BytesToAddress(h.Bytes())
}

// BridgeInitiated is the decoded initiated event.
type BridgeInitiated struct {
	RequestID   common.Hash
	From        common.Address
	To          common.Address
	Amount      *uint256.Int
	SourceChain uint64
	TargetChain uint64
	Nonce       uint64
	Salt        uint64
}

// Request rebuilds the canonical request the relayer submits on the
// destination chain.
func (e *BridgeInitiated) Request() *requestid.Request {
	return &requestid.Request{
		From:        e.From,
		To:          e.To,
		Amount:      e.Amount.Clone(),
		SourceChain: e.SourceChain,
		TargetChain: e.TargetChain,
		Nonce:       e.Nonce,
		Salt:        e.Salt,
	}
}

// PackBridgeInitiated builds the initiated log for req.
func PackBridgeInitiated(contract common.Address, id common.Hash, req *requestid.Request) (*types.Log, error) {
	return BridgeABI.Log(contract, NameBridgeInitiated,
		id, req.From, req.To,
		Big(req.Amount), BigU64(req.SourceChain), BigU64(req.TargetChain), BigU64(req.Nonce), BigU64(req.Salt),
	)
}

// DecodeBridgeInitiated parses an initiated log.
func DecodeBridgeInitiated(log *types.Log) (*BridgeInitiated, error) {
	topics, values, err := BridgeABI.UnpackEvent(NameBridgeInitiated, log)
	if err != nil {
		return nil, err
	}
	ev := &BridgeInitiated{
		RequestID: topics[0],
		From:      topicAddress(topics[1]),
		To:        topicAddress(topics[2]),
	}
	if ev.Amount, err = toUint256(values[0]); err != nil {
		return nil, err
	}
	nums := []*uint64{&ev.SourceChain, &ev.TargetChain, &ev.Nonce, &ev.Salt}
	for i, dst := range nums {
		if *dst, err = toUint64(values[i+1]); err != nil {
			return nil, err
		}
	}
	return ev, nil
}

// BridgeCompleted is the decoded completion event.
type BridgeCompleted struct {
	RequestID   common.Hash
	To          common.Address
	Amount      *uint256.Int
	TargetChain uint64
}

// PackBridgeCompleted builds the completion log.
func PackBridgeCompleted(contract common.Address, id common.Hash, to common.Address, amount *uint256.Int, targetChain uint64) (*types.Log, error) {
	return BridgeABI.Log(contract, NameBridgeCompleted, id, to, Big(amount), BigU64(targetChain))
}

// DecodeBridgeCompleted parses a completion log.
func DecodeBridgeCompleted(log *types.Log) (*BridgeCompleted, error) {
	topics, values, err := BridgeABI.UnpackEvent(NameBridgeCompleted, log)
	if err != nil {
		return nil, err
	}
	ev := &BridgeCompleted{RequestID: topics[0], To: topicAddress(topics[1])}
	if ev.Amount, err = toUint256(values[0]); err != nil {
		return nil, err
	}
	if ev.TargetChain, err = toUint64(values[1]); err != nil {
		return nil, err
	}
	return ev, nil
}

// Log packs the named event into a log emitted by contract.
func (e ExtendedABI) Log(contract common.Address, name string, args ...interface{}) (*types.Log, error) {
	topics, data, err := e.PackEvent(name, args...)
	if err != nil {
		return nil, err
	}
	return &types.Log{
		Address: contract,
		Topics:  topics,
		Data:    data,
	}, nil
}

// Is reports whether log is an instance of the named event in this ABI.
func (e ExtendedABI) Is(name string, log *types.Log) bool {
	event, ok := e.Events[name]
	return ok && len(log.Topics) > 0 && log.Topics[0] == event.ID
}
