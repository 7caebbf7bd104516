// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package consensus counts independent validator approvals per request id.
// A validated bridge completes a request only once the count reaches the
// configured threshold.
package consensus

import (
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/bridgekit/access"
	"github.com/luxfi/bridgekit/events"
	"github.com/luxfi/bridgekit/faults"
	"github.com/luxfi/bridgekit/ledger"
	"github.com/luxfi/bridgekit/state"
)

var (
	ErrAlreadyApproved  = faults.New(faults.StateConflict, "validator already approved request")
	ErrInvalidThreshold = faults.New(faults.IntegrityViolation, "threshold must be greater than zero")
	ErrInvalidConfig    = faults.New(faults.IntegrityViolation, "invalid consensus config")
)

var (
	approvalPrefix = []byte("appr")
	countPrefix    = []byte("apct")
)

// Config holds the approval threshold.
type Config struct {
	Threshold uint64 `json:"threshold"`
}

// Verify checks the threshold is usable.
func (c *Config) Verify() error {
	if c.Threshold == 0 {
		return ErrInvalidThreshold
	}
	return nil
}

// Equal reports whether both configs match.
func (c *Config) Equal(other *Config) bool {
	return other != nil && c.Threshold == other.Threshold
}

// Supermajority returns 2/3+1 of n validators, the usual threshold for a
// validator set of size n.
func Supermajority(n int) uint64 {
	if n <= 0 {
		return 1
	}
	return uint64(n)*2/3 + 1
}

// Deps are the collaborators of a Consensus. Store must be the store of the
// bridge it gates so that approvals see that bridge's processed set.
type Deps struct {
	Store *state.Store
	Roles access.Authorizer
	Sink  events.Sink
	Log   log.Logger
}

// Consensus records approvals. It implements the bridge's quorum gate.
type Consensus struct {
	address   common.Address
	threshold uint64

	store  *state.Store
	roles  access.Authorizer
	ledger *ledger.Ledger
	sink   events.Sink
	log    log.Logger

	mu sync.RWMutex
}

// New creates a Consensus emitting logs as address.
func New(cfg Config, address common.Address, deps Deps) (*Consensus, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	if deps.Store == nil || deps.Roles == nil {
		return nil, fmt.Errorf("%w: store and authorizer are required", ErrInvalidConfig)
	}
	if deps.Sink == nil {
		deps.Sink = events.Discard{}
	}
	if deps.Log == nil {
		deps.Log = log.NewTestLogger(log.InfoLevel)
	}
	return &Consensus{
		address:   address,
		threshold: cfg.Threshold,
		store:     deps.Store,
		roles:     deps.Roles,
		ledger:    ledger.New(),
		sink:      deps.Sink,
		log:       deps.Log,
	}, nil
}

func approvalKey(id common.Hash, validator common.Address) common.Hash {
	return state.Key(approvalPrefix, id.Bytes(), validator.Bytes())
}

func countKey(id common.Hash) common.Hash {
	return state.Key(countPrefix, id.Bytes())
}

// Approve records caller's approval of id. Each validator counts once per
// id, and processed ids take no more approvals.
func (c *Consensus) Approve(caller common.Address, id common.Hash) error {
	if err := c.roles.Authorize(caller, access.Validator); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	txn := c.store.Begin()
	defer txn.Discard()

	processed, err := c.ledger.IsProcessed(txn, id)
	if err != nil {
		return err
	}
	if processed {
		return ledger.ErrAlreadyProcessed
	}

	key := approvalKey(id, caller)
	approved, err := state.GetBool(txn, key)
	if err != nil {
		return err
	}
	if approved {
		return ErrAlreadyApproved
	}
	count, err := state.GetUint64(txn, countKey(id))
	if err != nil {
		return err
	}
	count++
	state.PutBool(txn, key, true)
	state.PutUint64(txn, countKey(id), count)

	l, err := events.BridgeABI.Log(c.address, events.NameValidatorApproved, id, caller, events.BigU64(count))
	if err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}

	c.sink.Emit(l)
	c.log.Info("request approved",
		"requestID", id,
		"validator", caller,
		"approvals", count,
		"threshold", c.threshold,
	)
	return nil
}

// HasQuorum reports whether id has at least threshold approvals.
func (c *Consensus) HasQuorum(id common.Hash) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count, err := state.GetUint64(c.store, countKey(id))
	if err != nil {
		return false, err
	}
	return count >= c.threshold, nil
}

// Approvals returns the number of approvals recorded for id.
func (c *Consensus) Approvals(id common.Hash) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return state.GetUint64(c.store, countKey(id))
}

// HasApproved reports whether validator approved id.
func (c *Consensus) HasApproved(id common.Hash, validator common.Address) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return state.GetBool(c.store, approvalKey(id, validator))
}

// SetThreshold changes the quorum size. Admin only. Raising it does not
// revoke quorum from ids that already completed.
func (c *Consensus) SetThreshold(caller common.Address, threshold uint64) error {
	if err := c.roles.Authorize(caller, access.Admin); err != nil {
		return err
	}
	if threshold == 0 {
		return ErrInvalidThreshold
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Info("approval threshold updated", "from", c.threshold, "to", threshold)
	c.threshold = threshold
	return nil
}

// Threshold returns the quorum size.
func (c *Consensus) Threshold() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.threshold
}
