// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge implements one endpoint of a two-chain token bridge.
//
// A request is initiated on the source endpoint, which debits the sender
// and emits BridgeInitiated carrying the request id. A relayer submits the
// same fields to the destination endpoint's Complete, which re-derives the
// id, marks it processed exactly once and credits the recipient. The three
// variants differ only in custody (burn/mint or lock/release) and in whether
// completion waits for validator quorum.
package bridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"

	"github.com/luxfi/bridgekit/access"
	"github.com/luxfi/bridgekit/chains"
	"github.com/luxfi/bridgekit/custody"
	"github.com/luxfi/bridgekit/events"
	"github.com/luxfi/bridgekit/ledger"
	"github.com/luxfi/bridgekit/policy"
	"github.com/luxfi/bridgekit/requestid"
	"github.com/luxfi/bridgekit/state"
)

var windowKey = state.Key([]byte("dwin"))

// Bridge is a single endpoint. Every state-changing call holds mu for its
// whole check-and-commit sequence; queries read committed state under the
// read lock.
type Bridge struct {
	chainID uint64
	address common.Address
	variant Variant
	scheme  requestid.Scheme

	limits policy.Limits
	paused bool

	custody custody.Custody
	gate    Gate

	store  *state.Store
	roles  access.Authorizer
	chains *chains.Registry
	ledger *ledger.Ledger
	sink   events.Sink
	log    log.Logger
	clock  func() time.Time

	mu sync.RWMutex
}

// NewMintable creates a burn/mint endpoint over token. The token must name
// cfg.Address as its authorized bridge for transfers to succeed.
func NewMintable(cfg Config, deps Deps, token custody.Token) (*Bridge, error) {
	return newBridge(cfg, deps, VariantMintable, requestid.Canonical,
		custody.NewMintable(token, cfg.Address), nil)
}

// NewNative creates a lock/release endpoint. Locked value is held on
// cfg.Address in balances.
func NewNative(cfg Config, deps Deps, balances custody.Balances) (*Bridge, error) {
	return newBridge(cfg, deps, VariantNative, requestid.Salted,
		custody.NewNative(balances, cfg.Address), nil)
}

// NewValidated creates a burn/mint endpoint whose completions also need
// quorum from gate.
func NewValidated(cfg Config, deps Deps, token custody.Token, gate Gate) (*Bridge, error) {
	if gate == nil {
		return nil, fmt.Errorf("%w: nil gate", ErrInvalidConfig)
	}
	return newBridge(cfg, deps, VariantValidated, requestid.Canonical,
		custody.NewMintable(token, cfg.Address), gate)
}

func newBridge(cfg Config, deps Deps, variant Variant, scheme requestid.Scheme, c custody.Custody, gate Gate) (*Bridge, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	if err := deps.defaults(); err != nil {
		return nil, err
	}
	return &Bridge{
		chainID: cfg.ChainID,
		address: cfg.Address,
		variant: variant,
		scheme:  scheme,
		limits:  cfg.Limits.Normalized(),
		paused:  cfg.Paused,
		custody: c,
		gate:    gate,
		store:   deps.Store,
		roles:   deps.Roles,
		chains:  chains.NewRegistry(cfg.ChainID),
		ledger:  ledger.New(),
		sink:    deps.Sink,
		log:     deps.Log,
		clock:   deps.Clock,
	}, nil
}

// Initiate debits amount from caller and emits BridgeInitiated for a
// transfer to `to` on targetChain. The nonce, the daily window and the
// debit commit together or not at all.
func (b *Bridge) Initiate(caller, to common.Address, amount *uint256.Int, targetChain uint64) (*requestid.Request, common.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	req, id, logs, err := b.initiate(caller, to, amount, targetChain)
	if err != nil {
		b.log.Debug("bridge initiate rejected",
			"from", caller,
			"to", to,
			"amount", amount,
			"targetChain", targetChain,
			"err", err,
		)
		return nil, common.Hash{}, err
	}

	b.emit(logs...)
	b.log.Info("bridge initiated",
		"requestID", id,
		"from", caller,
		"to", to,
		"amount", req.Amount,
		"targetChain", targetChain,
		"nonce", req.Nonce,
	)
	return req.Copy(), id, nil
}

func (b *Bridge) initiate(caller, to common.Address, amount *uint256.Int, targetChain uint64) (*requestid.Request, common.Hash, []*types.Log, error) {
	if b.paused {
		return nil, common.Hash{}, nil, ErrPaused
	}
	if err := b.custody.Ready(); err != nil {
		return nil, common.Hash{}, nil, err
	}
	if to == (common.Address{}) {
		return nil, common.Hash{}, nil, ErrZeroRecipient
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	if b.variant == VariantNative && amount.IsZero() {
		return nil, common.Hash{}, nil, ErrZeroAmount
	}

	txn := b.store.Begin()
	defer txn.Discard()

	supported, err := b.chains.IsSupported(txn, targetChain)
	if err != nil {
		return nil, common.Hash{}, nil, err
	}
	if !supported {
		return nil, common.Hash{}, nil, fmt.Errorf("%w: %d", ErrChainNotSupported, targetChain)
	}

	if err := b.limits.CheckBounds(amount); err != nil {
		return nil, common.Hash{}, nil, err
	}

	now := b.clock()
	window, err := loadWindow(txn)
	if err != nil {
		return nil, common.Hash{}, nil, err
	}
	if err := b.limits.Consume(&window, amount, now); err != nil {
		return nil, common.Hash{}, nil, err
	}
	storeWindow(txn, window)

	nonce, err := b.ledger.NextNonce(txn, caller)
	if err != nil {
		return nil, common.Hash{}, nil, err
	}

	req := &requestid.Request{
		From:        caller,
		To:          to,
		Amount:      amount.Clone(),
		SourceChain: b.chainID,
		TargetChain: targetChain,
		Nonce:       nonce,
	}
	if b.scheme == requestid.Salted {
		req.Salt = uint64(now.Unix())
	}
	id := requestid.Derive(b.scheme, req)

	initiated, err := events.PackBridgeInitiated(b.address, id, req)
	if err != nil {
		return nil, common.Hash{}, nil, err
	}

	if err := b.custody.Debit(caller, amount); err != nil {
		return nil, common.Hash{}, nil, err
	}
	if err := txn.Commit(); err != nil {
		return nil, common.Hash{}, nil, b.compensate(err, "initiate", func() error {
			return b.custody.Credit(caller, amount)
		})
	}
	return req, id, []*types.Log{initiated}, nil
}

// Complete credits req.To on this chain. caller must hold the operator
// role. Completing the same id twice fails with ledger.ErrAlreadyProcessed
// and credits nothing.
func (b *Bridge) Complete(caller common.Address, req *requestid.Request, id common.Hash) error {
	if err := b.roles.Authorize(caller, access.Operator); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	logs, err := b.complete(req, id)
	if err != nil {
		b.log.Debug("bridge complete rejected",
			"requestID", id,
			"operator", caller,
			"err", err,
		)
		return err
	}

	b.emit(logs...)
	b.log.Info("bridge completed",
		"requestID", id,
		"to", req.To,
		"amount", req.Amount,
		"sourceChain", req.SourceChain,
		"nonce", req.Nonce,
	)
	return nil
}

func (b *Bridge) complete(req *requestid.Request, id common.Hash) ([]*types.Log, error) {
	if req == nil {
		return nil, requestid.ErrInvalidRequest
	}
	if b.paused {
		return nil, ErrPaused
	}
	if err := b.custody.Ready(); err != nil {
		return nil, err
	}
	if req.TargetChain != b.chainID {
		return nil, fmt.Errorf("%w: request targets %d, this chain is %d", ErrWrongTargetChain, req.TargetChain, b.chainID)
	}

	txn := b.store.Begin()
	defer txn.Discard()

	processed, err := b.ledger.IsProcessed(txn, id)
	if err != nil {
		return nil, err
	}
	if processed {
		return nil, ledger.ErrAlreadyProcessed
	}

	if b.gate != nil {
		ok, err := b.gate.HasQuorum(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrQuorumNotReached
		}
	}

	if err := requestid.Verify(b.scheme, req, id); err != nil {
		return nil, err
	}
	if err := b.ledger.MarkProcessed(txn, id); err != nil {
		return nil, err
	}

	amount := req.Amount
	if amount == nil {
		amount = new(uint256.Int)
	}
	completed, err := events.PackBridgeCompleted(b.address, id, req.To, amount, req.TargetChain)
	if err != nil {
		return nil, err
	}

	if err := b.custody.Credit(req.To, amount); err != nil {
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		return nil, b.compensate(err, "complete", func() error {
			return b.custody.Debit(req.To, amount)
		})
	}
	return []*types.Log{completed}, nil
}

// compensate reverses a custody movement after the state commit failed.
func (b *Bridge) compensate(commitErr error, op string, undo func() error) error {
	if err := undo(); err != nil {
		b.log.Error("bridge compensation failed",
			"op", op,
			"commitErr", commitErr,
			"err", err,
		)
		return errors.Join(commitErr, err)
	}
	return commitErr
}

func (b *Bridge) emit(logs ...*types.Log) {
	for _, l := range logs {
		b.sink.Emit(l)
	}
}

// Window encoding: day (8 bytes) || accumulated (32 bytes)
func loadWindow(r state.Reader) (policy.Window, error) {
	v, ok, err := r.Get(windowKey)
	if err != nil {
		return policy.Window{}, err
	}
	w := policy.Window{Accumulated: new(uint256.Int)}
	if !ok {
		return w, nil
	}
	if len(v) != 40 {
		return policy.Window{}, fmt.Errorf("corrupt daily window: %d bytes", len(v))
	}
	w.Day = binary.BigEndian.Uint64(v[:8])
	w.Accumulated.SetBytes32(v[8:])
	return w, nil
}

func storeWindow(w state.Writer, window policy.Window) {
	acc := window.Accumulated
	if acc == nil {
		acc = new(uint256.Int)
	}
	v := make([]byte, 0, 40)
	v = append(v, state.Uint64Bytes(window.Day)...)
	word := acc.Bytes32()
	v = append(v, word[:]...)
	w.Put(windowKey, v)
}
