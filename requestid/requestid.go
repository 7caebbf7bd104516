// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package requestid derives and verifies bridge request identifiers.
//
// An id is keccak256 over the packed canonical fields, each at its natural
// fixed width (addresses 20 bytes, integers 32 bytes), matching Solidity's
// abi.encodePacked. Because every field is fixed width the encoding is
// injective, so distinct requests never share a preimage.
package requestid

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/bridgekit/faults"
)

// ErrInvalidRequest is returned when the supplied id does not match the
// request fields.
var ErrInvalidRequest = faults.New(faults.IntegrityViolation, "invalid request: id does not match fields")

// Scheme selects which fields are hashed.
type Scheme uint8

const (
	// Canonical hashes from, to, amount, sourceChain, targetChain, nonce.
	Canonical Scheme = iota
	// Salted additionally hashes Salt (the initiation timestamp on the
	// native-asset bridge).
	Salted
)

func (s Scheme) String() string {
	switch s {
	case Canonical:
		return "canonical"
	case Salted:
		return "salted"
	default:
		return fmt.Sprintf("scheme(%d)", uint8(s))
	}
}

// Request is the canonical description of one transfer. It is rebuilt by the
// relayer from the initiated event and checked against the claimed id; it is
// never trusted on its own.
type Request struct {
	From        common.Address `json:"from"`
	To          common.Address `json:"to"`
	Amount      *uint256.Int   `json:"amount"`
	SourceChain uint64         `json:"sourceChain"`
	TargetChain uint64         `json:"targetChain"`
	Nonce       uint64         `json:"nonce"`
	Salt        uint64         `json:"salt,omitempty"`
}

// Copy returns a deep copy.
func (r *Request) Copy() *Request {
	cp := *r
	if r.Amount != nil {
		cp.Amount = r.Amount.Clone()
	}
	return &cp
}

func word(n uint64) []byte {
	b := uint256.NewInt(n).Bytes32()
	return b[:]
}

// Encode returns the packed preimage for the scheme.
func Encode(scheme Scheme, r *Request) []byte {
	amount := new(uint256.Int)
	if r.Amount != nil {
		amount = r.Amount
	}
	amountWord := amount.Bytes32()

	size := 2*common.AddressLength + 4*32
	if scheme == Salted {
		size += 32
	}
	data := make([]byte, 0, size)
	data = append(data, r.From.Bytes()...)
	data = append(data, r.To.Bytes()...)
	data = append(data, amountWord[:]...)
	data = append(data, word(r.SourceChain)...)
	data = append(data, word(r.TargetChain)...)
	data = append(data, word(r.Nonce)...)
	if scheme == Salted {
		data = append(data, word(r.Salt)...)
	}
	return data
}

// Derive computes the id of r.
func Derive(scheme Scheme, r *Request) common.Hash {
	return common.BytesToHash(crypto.Keccak256(Encode(scheme, r)))
}

// Verify recomputes the id of r and compares it to claimed.
func Verify(scheme Scheme, r *Request, claimed common.Hash) error {
	if Derive(scheme, r) != claimed {
		return ErrInvalidRequest
	}
	return nil
}
