// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package locker escrows tokens until an unlock time. Lock records are
// RLP-encoded in the state store.
package locker

import (
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/rlp"

	"github.com/luxfi/bridgekit/faults"
	"github.com/luxfi/bridgekit/state"
)

var (
	ErrZeroAmount       = faults.New(faults.PolicyViolation, "locker: amount is zero")
	ErrZeroOwner        = faults.New(faults.IntegrityViolation, "locker: owner is zero")
	ErrUnlockInPast     = faults.New(faults.PolicyViolation, "locker: unlock time is not in the future")
	ErrUnknownAsset     = faults.New(faults.IntegrityViolation, "locker: unknown asset")
	ErrUnknownLock      = faults.New(faults.StateConflict, "locker: unknown lock")
	ErrNotOwner         = faults.New(faults.AuthorizationFailure, "locker: caller is not the lock owner")
	ErrStillLocked      = faults.New(faults.PolicyViolation, "locker: still locked")
	ErrAlreadyWithdrawn = faults.New(faults.StateConflict, "locker: already withdrawn")
)

var (
	lockPrefix = []byte("lock")
	countKey   = state.Key([]byte("lcnt"))
)

// Asset is a token the locker can hold.
type Asset interface {
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
}

// Resolver finds the Asset at an address.
type Resolver func(token common.Address) (Asset, bool)

// Lock is one escrow record.
type Lock struct {
	ID          uint64
	Owner       common.Address
	Token       common.Address
	IsLP        bool
	Amount      *uint256.Int
	UnlockTime  uint64
	Description string
	Withdrawn   bool
}

// Locker holds tokens on its own address.
type Locker struct {
	address common.Address
	store   *state.Store
	resolve Resolver
	clock   func() time.Time

	mu sync.Mutex
}

// New creates a locker. clock defaults to time.Now.
func New(address common.Address, store *state.Store, resolve Resolver, clock func() time.Time) *Locker {
	if clock == nil {
		clock = time.Now
	}
	return &Locker{
		address: address,
		store:   store,
		resolve: resolve,
		clock:   clock,
	}
}

// Address is the spender depositors approve before Lock.
func (l *Locker) Address() common.Address { return l.address }

func lockKey(id uint64) common.Hash {
	return state.Key(lockPrefix, state.Uint64Bytes(id))
}

// Lock pulls amount of token from caller and records it for owner until
// unlockTime. Returns the lock id.
func (l *Locker) Lock(
	caller common.Address,
	owner common.Address,
	token common.Address,
	isLP bool,
	amount *uint256.Int,
	unlockTime uint64,
	description string,
) (uint64, error) {
	if amount == nil || amount.IsZero() {
		return 0, ErrZeroAmount
	}
	if owner == (common.Address{}) {
		return 0, ErrZeroOwner
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if unlockTime <= uint64(l.clock().Unix()) {
		return 0, ErrUnlockInPast
	}
	asset, ok := l.resolve(token)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAsset, token)
	}

	txn := l.store.Begin()
	defer txn.Discard()

	id, err := state.GetUint64(txn, countKey)
	if err != nil {
		return 0, err
	}
	state.PutUint64(txn, countKey, id+1)
	if err := putLock(txn, &Lock{
		ID:          id,
		Owner:       owner,
		Token:       token,
		IsLP:        isLP,
		Amount:      amount.Clone(),
		UnlockTime:  unlockTime,
		Description: description,
	}); err != nil {
		return 0, err
	}

	if err := asset.TransferFrom(l.address, caller, l.address, amount); err != nil {
		return 0, faults.External(err)
	}
	if err := txn.Commit(); err != nil {
		if undoErr := asset.Transfer(l.address, caller, amount); undoErr != nil {
			return 0, fmt.Errorf("%w (refund failed: %v)", err, undoErr)
		}
		return 0, err
	}
	return id, nil
}

// Unlock releases an expired lock to its owner.
func (l *Locker) Unlock(caller common.Address, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	txn := l.store.Begin()
	defer txn.Discard()

	lock, err := getLock(txn, id)
	if err != nil {
		return err
	}
	if caller != lock.Owner {
		return ErrNotOwner
	}
	if lock.Withdrawn {
		return ErrAlreadyWithdrawn
	}
	if uint64(l.clock().Unix()) < lock.UnlockTime {
		return fmt.Errorf("%w until %d", ErrStillLocked, lock.UnlockTime)
	}
	asset, ok := l.resolve(lock.Token)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, lock.Token)
	}

	lock.Withdrawn = true
	if err := putLock(txn, lock); err != nil {
		return err
	}
	if err := asset.Transfer(l.address, lock.Owner, lock.Amount); err != nil {
		return faults.External(err)
	}
	return txn.Commit()
}

// Get returns lock id.
func (l *Locker) Get(id uint64) (*Lock, error) {
	return getLock(l.store, id)
}

// Count returns the number of locks ever created.
func (l *Locker) Count() (uint64, error) {
	return state.GetUint64(l.store, countKey)
}

func putLock(w state.Writer, lock *Lock) error {
	enc, err := rlp.EncodeToBytes(lock)
	if err != nil {
		return fmt.Errorf("encode lock %d: %w", lock.ID, err)
	}
	w.Put(lockKey(lock.ID), enc)
	return nil
}

func getLock(r state.Reader, id uint64) (*Lock, error) {
	enc, ok, err := r.Get(lockKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLock, id)
	}
	lock := new(Lock)
	if err := rlp.DecodeBytes(enc, lock); err != nil {
		return nil, fmt.Errorf("decode lock %d: %w", id, err)
	}
	return lock, nil
}
