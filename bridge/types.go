// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"fmt"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/bridgekit/access"
	"github.com/luxfi/bridgekit/events"
	"github.com/luxfi/bridgekit/faults"
	"github.com/luxfi/bridgekit/policy"
	"github.com/luxfi/bridgekit/state"
)

// Variant names the custody strategy a bridge was built with.
type Variant uint8

const (
	VariantMintable Variant = iota
	VariantNative
	VariantValidated
)

func (v Variant) String() string {
	switch v {
	case VariantMintable:
		return "mintable"
	case VariantNative:
		return "native"
	case VariantValidated:
		return "validated"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

// Bridge errors
var (
	ErrPaused            = faults.New(faults.StateConflict, "bridge is paused")
	ErrNotPaused         = faults.New(faults.StateConflict, "bridge is not paused")
	ErrZeroRecipient     = faults.New(faults.IntegrityViolation, "recipient cannot be the zero address")
	ErrZeroAmount        = faults.New(faults.PolicyViolation, "amount must be greater than zero")
	ErrChainNotSupported = faults.New(faults.PolicyViolation, "target chain not supported")
	ErrWrongTargetChain  = faults.New(faults.IntegrityViolation, "wrong target chain")
	ErrQuorumNotReached  = faults.New(faults.StateConflict, "validator quorum not reached")
	ErrNotNative         = faults.New(faults.StateConflict, "operation requires the native variant")
	ErrInvalidConfig     = faults.New(faults.IntegrityViolation, "invalid bridge config")
)

// Config is the static configuration of one bridge endpoint.
type Config struct {
	// ChainID is the local chain. Requests completing here must target it.
	ChainID uint64 `json:"chainId"`
	// Address identifies the endpoint in emitted logs and in the token's
	// authorized-bridge check.
	Address common.Address `json:"address"`
	Limits  policy.Limits  `json:"limits"`
	Paused  bool           `json:"paused,omitempty"`
}

// Verify checks the config is usable.
func (c *Config) Verify() error {
	if c.ChainID == 0 {
		return fmt.Errorf("%w: chain id is zero", ErrInvalidConfig)
	}
	if c.Address == (common.Address{}) {
		return fmt.Errorf("%w: address is zero", ErrInvalidConfig)
	}
	if err := c.Limits.Verify(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Equal reports whether two configs are the same.
func (c *Config) Equal(other *Config) bool {
	if other == nil {
		return false
	}
	return c.ChainID == other.ChainID &&
		c.Address == other.Address &&
		c.Paused == other.Paused &&
		c.Limits.Equal(other.Limits)
}

// Deps are the collaborators shared by every bridge variant.
type Deps struct {
	// Store holds nonces, the processed set, chain support and the daily
	// window. One store per endpoint.
	Store *state.Store
	Roles access.Authorizer
	// Sink receives logs after commit. Defaults to events.Discard.
	Sink events.Sink
	// Log defaults to an info-level logger.
	Log log.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

func (d *Deps) defaults() error {
	if d.Store == nil {
		return fmt.Errorf("%w: nil store", ErrInvalidConfig)
	}
	if d.Roles == nil {
		return fmt.Errorf("%w: nil authorizer", ErrInvalidConfig)
	}
	if d.Sink == nil {
		d.Sink = events.Discard{}
	}
	if d.Log == nil {
		d.Log = log.NewTestLogger(log.InfoLevel)
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return nil
}

// Gate decides whether a request has enough independent approvals to
// complete.
type Gate interface {
	HasQuorum(id common.Hash) (bool, error)
}
