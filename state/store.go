// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state is the keyed store behind the bridge counters: per-account
// nonces, processed request ids, the daily transfer window, chain support
// and validator approvals.
//
// Writes are staged in a Txn and reach the database in a single batch on
// Commit, so an operation that aborts halfway leaves nothing behind.
package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Reader is implemented by both Store (committed state) and Txn (committed
// state overlaid with staged writes).
type Reader interface {
	Get(key common.Hash) ([]byte, bool, error)
}

// Writer stages a write.
type Writer interface {
	Reader
	Put(key common.Hash, value []byte)
}

var (
	_ Reader = (*Store)(nil)
	_ Writer = (*Txn)(nil)
)

// Store wraps a database.Database.
type Store struct {
	db database.Database
}

// New returns a store over db.
func New(db database.Database) *Store {
	return &Store{db: db}
}

// Key derives a storage key from a prefix and identifier parts.
// Key: BLAKE3(prefix || part0 || part1 ...)
func Key(prefix []byte, parts ...[]byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	for _, p := range parts {
		h.Write(p)
	}
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// Get reads committed state.
func (s *Store) Get(key common.Hash) ([]byte, bool, error) {
	value, err := s.db.Get(key[:])
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("state get %s: %w", key, err)
	}
	return value, true, nil
}

// Begin starts a transaction. Nothing is visible to other readers until
// Commit.
func (s *Store) Begin() *Txn {
	return &Txn{
		store:  s,
		writes: make(map[common.Hash][]byte),
	}
}

// Txn buffers writes for one operation.
type Txn struct {
	store  *Store
	writes map[common.Hash][]byte
	order  []common.Hash
}

// Get returns the staged value for key if there is one, otherwise the
// committed value.
func (t *Txn) Get(key common.Hash) ([]byte, bool, error) {
	if v, ok := t.writes[key]; ok {
		return common.CopyBytes(v), true, nil
	}
	return t.store.Get(key)
}

// Put stages a write.
func (t *Txn) Put(key common.Hash, value []byte) {
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = common.CopyBytes(value)
}

// Len returns the number of staged keys.
func (t *Txn) Len() int { return len(t.order) }

// Commit writes every staged value in one batch.
func (t *Txn) Commit() error {
	if len(t.order) == 0 {
		return nil
	}
	batch := t.store.db.NewBatch()
	for _, key := range t.order {
		if err := batch.Put(key[:], t.writes[key]); err != nil {
			return fmt.Errorf("state batch put: %w", err)
		}
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state commit: %w", err)
	}
	t.Discard()
	return nil
}

// Discard drops all staged writes.
func (t *Txn) Discard() {
	t.writes = make(map[common.Hash][]byte)
	t.order = nil
}

// Typed helpers

// GetUint64 returns the big-endian uint64 at key, or 0 when unset.
func GetUint64(r Reader, key common.Hash) (uint64, error) {
	v, ok, err := r.Get(key)
	if err != nil || !ok {
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("state: corrupt uint64 at %s (%d bytes)", key, len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

// PutUint64 stages a big-endian uint64.
func PutUint64(w Writer, key common.Hash, n uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	w.Put(key, buf[:])
}

// GetUint256 returns the 32-byte value at key, or zero when unset.
func GetUint256(r Reader, key common.Hash) (*uint256.Int, error) {
	v, ok, err := r.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	if len(v) != 32 {
		return nil, fmt.Errorf("state: corrupt uint256 at %s (%d bytes)", key, len(v))
	}
	return new(uint256.Int).SetBytes32(v), nil
}

// PutUint256 stages a 32-byte value.
func PutUint256(w Writer, key common.Hash, n *uint256.Int) {
	b := n.Bytes32()
	w.Put(key, b[:])
}

// GetBool returns the flag at key, false when unset.
func GetBool(r Reader, key common.Hash) (bool, error) {
	v, ok, err := r.Get(key)
	if err != nil || !ok {
		return false, err
	}
	return len(v) == 1 && v[0] == 1, nil
}

// PutBool stages a flag.
func PutBool(w Writer, key common.Hash, flag bool) {
	if flag {
		w.Put(key, []byte{1})
		return
	}
	w.Put(key, []byte{0})
}

// Uint64Bytes is the 8-byte big-endian encoding used inside keys.
func Uint64Bytes(n uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return buf[:]
}
