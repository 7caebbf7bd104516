// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger is the bridge idempotence store: per-account outgoing
// nonces and the append-only set of processed request ids.
package ledger

import (
	"github.com/luxfi/geth/common"

	"github.com/luxfi/bridgekit/faults"
	"github.com/luxfi/bridgekit/state"
)

var ErrAlreadyProcessed = faults.New(faults.StateConflict, "request already processed")

// Storage key prefixes
var (
	noncePrefix     = []byte("nonc")
	processedPrefix = []byte("proc")
)

// Ledger has no state of its own; every call reads or stages through the
// supplied state.Reader / state.Writer so that nonce allocation and the
// processed mark commit together with the rest of the operation.
type Ledger struct{}

// New returns a ledger.
func New() *Ledger { return &Ledger{} }

func nonceKey(account common.Address) common.Hash {
	return state.Key(noncePrefix, account.Bytes())
}

func processedKey(id common.Hash) common.Hash {
	return state.Key(processedPrefix, id.Bytes())
}

// Nonce returns the next nonce account will use.
func (l *Ledger) Nonce(r state.Reader, account common.Address) (uint64, error) {
	return state.GetUint64(r, nonceKey(account))
}

// NextNonce returns the account's current nonce and stages current+1.
func (l *Ledger) NextNonce(w state.Writer, account common.Address) (uint64, error) {
	key := nonceKey(account)
	n, err := state.GetUint64(w, key)
	if err != nil {
		return 0, err
	}
	state.PutUint64(w, key, n+1)
	return n, nil
}

// IsProcessed reports whether id has been completed.
func (l *Ledger) IsProcessed(r state.Reader, id common.Hash) (bool, error) {
	return state.GetBool(r, processedKey(id))
}

// MarkProcessed is the idempotence gate: it fails with ErrAlreadyProcessed if
// id is already marked, otherwise stages the mark.
func (l *Ledger) MarkProcessed(w state.Writer, id common.Hash) error {
	key := processedKey(id)
	done, err := state.GetBool(w, key)
	if err != nil {
		return err
	}
	if done {
		return ErrAlreadyProcessed
	}
	state.PutBool(w, key, true)
	return nil
}
