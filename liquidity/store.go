// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package liquidity

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/rlp"

	"github.com/luxfi/bridgekit/state"
)

// Storage key prefixes
var (
	recordPrefix = []byte("lrec") // requestId -> owner || position
	txPrefix     = []byte("ltxn") // owner || position -> Transaction
	userPrefix   = []byte("lusr") // owner -> UserInfo
)

func recordKey(id common.Hash) common.Hash {
	return state.Key(recordPrefix, id.Bytes())
}

func txKey(owner common.Address, pos uint64) common.Hash {
	return state.Key(txPrefix, owner.Bytes(), state.Uint64Bytes(pos))
}

func userKey(owner common.Address) common.Hash {
	return state.Key(userPrefix, owner.Bytes())
}

// getRecord returns the owner and position of a recorded request.
func getRecord(r state.Reader, id common.Hash) (common.Address, uint64, bool, error) {
	v, ok, err := r.Get(recordKey(id))
	if err != nil || !ok {
		return common.Address{}, 0, false, err
	}
	if len(v) != common.AddressLength+8 {
		return common.Address{}, 0, false, fmt.Errorf("corrupt request index %s: %d bytes", id, len(v))
	}
	return common.BytesToAddress(v[:common.AddressLength]), binary.BigEndian.Uint64(v[common.AddressLength:]), true, nil
}

func putRecord(w state.Writer, id common.Hash, owner common.Address, pos uint64) {
	v := make([]byte, 0, common.AddressLength+8)
	v = append(v, owner.Bytes()...)
	v = append(v, state.Uint64Bytes(pos)...)
	w.Put(recordKey(id), v)
}

func getUser(r state.Reader, owner common.Address) (*UserInfo, error) {
	v, ok, err := r.Get(userKey(owner))
	if err != nil {
		return nil, err
	}
	if !ok {
		return newUserInfo(), nil
	}
	info := new(UserInfo)
	if err := rlp.DecodeBytes(v, info); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", owner, err)
	}
	return info, nil
}

func putUser(w state.Writer, owner common.Address, info *UserInfo) error {
	v, err := rlp.EncodeToBytes(info)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", owner, err)
	}
	w.Put(userKey(owner), v)
	return nil
}

func getTx(r state.Reader, owner common.Address, pos uint64) (*Transaction, error) {
	v, ok, err := r.Get(txKey(owner, pos))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s has no transaction %d", ErrUnknownRequest, owner, pos)
	}
	tx := new(Transaction)
	if err := rlp.DecodeBytes(v, tx); err != nil {
		return nil, fmt.Errorf("decode transaction %s/%d: %w", owner, pos, err)
	}
	if tx.Liquidity == nil {
		tx.Liquidity = new(uint256.Int)
	}
	return tx, nil
}

func putTx(w state.Writer, owner common.Address, pos uint64, tx *Transaction) error {
	v, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return fmt.Errorf("encode transaction %s/%d: %w", owner, pos, err)
	}
	w.Put(txKey(owner, pos), v)
	return nil
}
