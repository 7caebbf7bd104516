// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package liquidity

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/bridgekit/access"
	"github.com/luxfi/bridgekit/events"
	"github.com/luxfi/bridgekit/faults"
	"github.com/luxfi/bridgekit/state"
)

// MaxSlippageBps is the largest slippage CommitLiquidity accepts (50%).
const MaxSlippageBps = 5000

const bpsDenominator = 10_000

var (
	ErrAlreadyRecorded       = faults.New(faults.StateConflict, "liquidity: request already recorded")
	ErrNotProcessedUpstream  = faults.New(faults.StateConflict, "liquidity: request not processed by the bridge")
	ErrUnknownRequest        = faults.New(faults.StateConflict, "liquidity: unknown request for account")
	ErrAlreadyDeposited      = faults.New(faults.StateConflict, "liquidity: counterpart already deposited")
	ErrNotDeposited          = faults.New(faults.StateConflict, "liquidity: counterpart not deposited")
	ErrLiquidityAlreadyAdded = faults.New(faults.StateConflict, "liquidity: liquidity already added")
	ErrZeroAmount            = faults.New(faults.PolicyViolation, "liquidity: amount is zero")
	ErrSlippageTooHigh       = faults.New(faults.PolicyViolation, "liquidity: slippage above maximum")
	ErrInsufficientBalance   = faults.New(faults.PolicyViolation, "liquidity: insufficient claimable balance")
	ErrUnknownAsset          = faults.New(faults.IntegrityViolation, "liquidity: unknown asset")
	ErrZeroAccount           = faults.New(faults.IntegrityViolation, "liquidity: account is zero")
	ErrRouterOverfill        = faults.New(faults.IntegrityViolation, "liquidity: router used more than desired")
	ErrNoPair                = faults.New(faults.StateConflict, "liquidity: pair does not exist")
	ErrNotConfigured         = faults.New(faults.StateConflict, "liquidity: router or locker not set")
	ErrInvalidConfig         = faults.New(faults.IntegrityViolation, "liquidity: invalid config")
)

// Token is a pooled ERC-20 as the manager uses it. Every call names the
// account acting on the token.
type Token interface {
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
	Approve(owner, spender common.Address, amount *uint256.Int) error
}

// Router is the AMM capability.
type Router interface {
	Address() common.Address
	Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error)
	AddLiquidity(
		caller common.Address,
		tokenA, tokenB common.Address,
		amountADesired, amountBDesired *uint256.Int,
		amountAMin, amountBMin *uint256.Int,
		to common.Address,
		deadline uint64,
	) (*uint256.Int, *uint256.Int, *uint256.Int, error)
	GetPair(tokenA, tokenB common.Address) common.Address
}

// Pair is the LP token of a router pair.
type Pair interface {
	Token0() common.Address
	GetReserves() (*uint256.Int, *uint256.Int)
	TotalSupply() *uint256.Int
	Approve(owner, spender common.Address, amount *uint256.Int) error
}

// PairLookup resolves a pair address returned by Router.GetPair.
type PairLookup func(addr common.Address) (Pair, bool)

// Locker escrows LP tokens.
type Locker interface {
	Address() common.Address
	Lock(caller, owner, token common.Address, isLP bool, amount *uint256.Int, unlockTime uint64, description string) (uint64, error)
}

// BridgeStatus is the upstream bridge's idempotence record.
type BridgeStatus interface {
	IsProcessed(id common.Hash) (bool, error)
}

// Config is the static configuration of a manager.
type Config struct {
	// Address holds bridged tokens, deposits and LP tokens until they are
	// locked or claimed.
	Address common.Address `json:"address"`
	TokenA  common.Address `json:"tokenA"`
	TokenB  common.Address `json:"tokenB"`
	// LockSeconds is how long minted LP tokens stay locked.
	LockSeconds uint64 `json:"lockSeconds"`
	// DeadlineSeconds bounds the router call relative to now.
	DeadlineSeconds uint64 `json:"deadlineSeconds"`
}

// Verify checks the config is usable.
func (c *Config) Verify() error {
	switch {
	case c.Address == (common.Address{}):
		return fmt.Errorf("%w: address is zero", ErrInvalidConfig)
	case c.TokenA == (common.Address{}) || c.TokenB == (common.Address{}):
		return fmt.Errorf("%w: token is zero", ErrInvalidConfig)
	case c.TokenA == c.TokenB:
		return fmt.Errorf("%w: identical tokens", ErrInvalidConfig)
	case c.LockSeconds == 0:
		return fmt.Errorf("%w: lock duration is zero", ErrInvalidConfig)
	case c.DeadlineSeconds == 0:
		return fmt.Errorf("%w: deadline window is zero", ErrInvalidConfig)
	}
	return nil
}

// Equal reports whether two configs are the same.
func (c *Config) Equal(other *Config) bool {
	if other == nil {
		return false
	}
	return *c == *other
}

// Deps are the manager's collaborators.
type Deps struct {
	Store    *state.Store
	Roles    access.Authorizer
	Upstream BridgeStatus
	TokenA   Token
	TokenB   Token
	// Router and Locker may be set later with SetRouter and SetLocker.
	Router Router
	Pairs  PairLookup
	Locker Locker
	Sink   events.Sink
	Log    log.Logger
	Clock  func() time.Time
}

func (d *Deps) defaults() error {
	switch {
	case d.Store == nil:
		return fmt.Errorf("%w: nil store", ErrInvalidConfig)
	case d.Roles == nil:
		return fmt.Errorf("%w: nil authorizer", ErrInvalidConfig)
	case d.Upstream == nil:
		return fmt.Errorf("%w: nil upstream bridge", ErrInvalidConfig)
	case d.TokenA == nil || d.TokenB == nil:
		return fmt.Errorf("%w: nil token", ErrInvalidConfig)
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

// Transaction is one bridged-in request. Each field moves from unset to
// set once: recorded, then Deposited, then Liquidity and LockID.
type Transaction struct {
	RequestID common.Hash
	AmountA   *uint256.Int
	AmountB   *uint256.Int
	Liquidity *uint256.Int
	Deposited bool
	Locked    bool
	LockID    uint64
}

// LiquidityAdded reports whether the liquidity stage has run.
func (t *Transaction) LiquidityAdded() bool {
	return t.Liquidity != nil && !t.Liquidity.IsZero()
}

// UserInfo is the per-account summary.
type UserInfo struct {
	BalanceA       *uint256.Int
	BalanceB       *uint256.Int
	TotalLiquidity *uint256.Int
	Transactions   uint64
}

func newUserInfo() *UserInfo {
	return &UserInfo{
		BalanceA:       new(uint256.Int),
		BalanceB:       new(uint256.Int),
		TotalLiquidity: new(uint256.Int),
	}
}
