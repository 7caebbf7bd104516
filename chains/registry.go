// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chains

import (
	"slices"

	"github.com/luxfi/geth/rlp"

	"github.com/luxfi/bridgekit/faults"
	"github.com/luxfi/bridgekit/state"
)

// Well-known chain ids.
const (
	ChainEthereum  uint64 = 1
	ChainOptimism  uint64 = 10
	ChainBSC       uint64 = 56
	ChainPolygon   uint64 = 137
	ChainBase      uint64 = 8453
	ChainArbitrum  uint64 = 42161
	ChainAvalanche uint64 = 43114
	ChainLux       uint64 = 96369
	ChainLuxTest   uint64 = 96368
)

var ErrLocalChain = faults.New(faults.IntegrityViolation, "cannot change support for the local chain")

var (
	supportPrefix = []byte("csup")
	knownKey      = state.Key([]byte("ckno"))
)

// Registry maps destination chain ids to an enabled flag. Toggling is a plain
// overwrite; there is no history. Every chain ever set is remembered in the
// store, in the same transaction as its flag.
type Registry struct {
	local uint64
}

// NewRegistry creates a registry for a bridge deployed on local.
func NewRegistry(local uint64) *Registry {
	return &Registry{local: local}
}

// Local returns the chain id the registry belongs to.
func (r *Registry) Local() uint64 { return r.local }

func supportKey(chainID uint64) []byte {
	return state.Uint64Bytes(chainID)
}

// SetSupport stages the flag for chainID.
func (r *Registry) SetSupport(w state.Writer, chainID uint64, enabled bool) error {
	if chainID == r.local {
		return ErrLocalChain
	}
	known, err := loadKnown(w)
	if err != nil {
		return err
	}
	if _, found := slices.BinarySearch(known, chainID); !found {
		known = append(known, chainID)
		slices.Sort(known)
		raw, err := rlp.EncodeToBytes(known)
		if err != nil {
			return err
		}
		w.Put(knownKey, raw)
	}
	state.PutBool(w, state.Key(supportPrefix, supportKey(chainID)), enabled)
	return nil
}

// IsSupported reports whether chainID is enabled.
func (r *Registry) IsSupported(rd state.Reader, chainID uint64) (bool, error) {
	if chainID == r.local {
		return false, nil
	}
	return state.GetBool(rd, state.Key(supportPrefix, supportKey(chainID)))
}

// Supported lists every chain ever set that is currently enabled, ascending.
func (r *Registry) Supported(rd state.Reader) ([]uint64, error) {
	known, err := loadKnown(rd)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(known))
	for _, id := range known {
		ok, err := r.IsSupported(rd, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func loadKnown(rd state.Reader) ([]uint64, error) {
	raw, ok, err := rd.Get(knownKey)
	if err != nil || !ok {
		return nil, err
	}
	var known []uint64
	if err := rlp.DecodeBytes(raw, &known); err != nil {
		return nil, err
	}
	return known, nil
}
