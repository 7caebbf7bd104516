// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package liquidity

import (
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/bridgekit/access"
	"github.com/luxfi/bridgekit/amm"
	"github.com/luxfi/bridgekit/events"
	"github.com/luxfi/bridgekit/faults"
	"github.com/luxfi/bridgekit/locker"
	"github.com/luxfi/bridgekit/state"
	"github.com/luxfi/bridgekit/token"
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	operator = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	provider = common.HexToAddress("0x00000000000000000000000000000000000000a3")

	managerAddr = common.HexToAddress("0x0000000000000000000000000000000000007000")
	routerAddr  = common.HexToAddress("0x0000000000000000000000000000000000007001")
	lockerAddr  = common.HexToAddress("0x0000000000000000000000000000000000007002")

	now = time.Unix(1_700_000_000, 0)
)

func u(n uint64) *uint256.Int { return uint256.NewInt(n) }

func id(n byte) common.Hash { return common.Hash{n} }

type upstream map[common.Hash]bool

func (u upstream) IsProcessed(id common.Hash) (bool, error) { return u[id], nil }

type env struct {
	mgr      *Manager
	tokA     *token.Token
	tokB     *token.Token
	router   *amm.Router
	locker   *locker.Locker
	upstream upstream
	rec      *events.Recorder
}

func pairLookup(r *amm.Router) PairLookup {
	return func(addr common.Address) (Pair, bool) {
		p, ok := r.Pair(addr)
		if !ok {
			return nil, false
		}
		return p, true
	}
}

// newEnv seeds a 1:4 pool and a manager whose requests pair 1 A with 4 B.
func newEnv(t *testing.T) *env {
	t.Helper()
	tokA := token.New(common.HexToAddress("0x00000000000000000000000000000000000000f1"), "LUXB", 18, admin)
	tokB := token.New(common.HexToAddress("0x00000000000000000000000000000000000000f2"), "USDT", 6, admin)
	for _, tok := range []*token.Token{tokA, tokB} {
		require.NoError(t, tok.Mint(admin, provider, u(100_000_000)))
		require.NoError(t, tok.Approve(provider, routerAddr, u(100_000_000)))
	}
	require.NoError(t, tokB.Mint(admin, alice, u(1_000_000)))

	clock := func() time.Time { return now }
	router := amm.NewRouter(routerAddr, clock)
	router.RegisterToken(tokA)
	router.RegisterToken(tokB)
	_, _, _, err := router.AddLiquidity(provider, tokA.Address(), tokB.Address(),
		u(1_000_000), u(4_000_000), u(0), u(0), provider, uint64(now.Unix())+60)
	require.NoError(t, err)

	store := state.New(memdb.New())
	lk := locker.New(lockerAddr, store, func(addr common.Address) (locker.Asset, bool) {
		p, ok := router.Pair(addr)
		if !ok {
			return nil, false
		}
		return p, true
	}, clock)

	roles := access.NewRoles(admin)
	require.NoError(t, roles.Grant(admin, access.Manager, operator))

	e := &env{
		tokA:     tokA,
		tokB:     tokB,
		router:   router,
		locker:   lk,
		upstream: upstream{},
		rec:      events.NewRecorder(),
	}
	e.mgr, err = New(Config{
		Address:         managerAddr,
		TokenA:          tokA.Address(),
		TokenB:          tokB.Address(),
		LockSeconds:     30 * 24 * 3600,
		DeadlineSeconds: 300,
	}, Deps{
		Store:    store,
		Roles:    roles,
		Upstream: e.upstream,
		TokenA:   tokA,
		TokenB:   tokB,
		Router:   router,
		Pairs:    pairLookup(router),
		Locker:   lk,
		Sink:     e.rec,
		Clock:    clock,
	})
	require.NoError(t, err)
	return e
}

// bridgeIn delivers amountA to the manager the way a completed bridge
// request would and records it for alice.
func (e *env) bridgeIn(t *testing.T, reqID common.Hash, amountA, amountB uint64) {
	t.Helper()
	require.NoError(t, e.tokA.Mint(admin, managerAddr, u(amountA)))
	e.upstream[reqID] = true
	require.NoError(t, e.mgr.RecordBridgeCompletion(operator, reqID, alice, u(amountA), u(amountB)))
}

func (e *env) deposit(t *testing.T, reqID common.Hash, amount uint64) {
	t.Helper()
	require.NoError(t, e.tokB.Approve(alice, managerAddr, u(amount)))
	require.NoError(t, e.mgr.DepositCounterpart(alice, reqID))
}

func TestLifecycle(t *testing.T) {
	e := newEnv(t)
	e.bridgeIn(t, id(1), 1_000, 4_000)

	info, err := e.mgr.UserInfo(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), info.BalanceA.Uint64())
	require.Equal(t, uint64(1), info.Transactions)

	e.deposit(t, id(1), 4_000)
	require.Equal(t, uint64(996_000), e.tokB.BalanceOf(alice).Uint64())

	require.NoError(t, e.mgr.CommitLiquidity(operator, id(1), alice, 100))

	tx, err := e.mgr.Transaction(alice, 0)
	require.NoError(t, err)
	require.True(t, tx.Deposited)
	require.True(t, tx.Locked)
	require.Equal(t, uint64(2_000), tx.Liquidity.Uint64())
	require.Zero(t, tx.LockID)

	info, err = e.mgr.UserInfo(alice)
	require.NoError(t, err)
	require.True(t, info.BalanceA.IsZero())
	require.True(t, info.BalanceB.IsZero())
	require.Equal(t, uint64(2_000), info.TotalLiquidity.Uint64())

	lock, err := e.locker.Get(tx.LockID)
	require.NoError(t, err)
	require.Equal(t, alice, lock.Owner)
	require.True(t, lock.IsLP)
	require.Equal(t, uint64(now.Unix())+30*24*3600, lock.UnlockTime)
	pair, _ := e.router.Pair(lock.Token)
	require.Equal(t, uint64(2_000), pair.BalanceOf(lockerAddr).Uint64())
	require.True(t, pair.BalanceOf(managerAddr).IsZero())
	require.True(t, e.tokA.Allowance(managerAddr, routerAddr).IsZero())

	for _, name := range []string{
		events.NameBridgeCompleted,
		events.NameUserDeposit,
		events.NameLiquidityAdded,
		events.NameLiquidityLocked,
	} {
		require.Len(t, e.rec.Filter(events.LiquidityABI, name), 1, name)
	}
}

func TestStageOrdering(t *testing.T) {
	e := newEnv(t)
	e.bridgeIn(t, id(1), 1_000, 4_000)

	require.ErrorIs(t, e.mgr.CommitLiquidity(operator, id(1), alice, 100), ErrNotDeposited)

	e.deposit(t, id(1), 8_000)
	require.ErrorIs(t, e.mgr.DepositCounterpart(alice, id(1)), ErrAlreadyDeposited)
	require.Equal(t, uint64(996_000), e.tokB.BalanceOf(alice).Uint64())

	require.NoError(t, e.mgr.CommitLiquidity(operator, id(1), alice, 100))
	require.ErrorIs(t, e.mgr.CommitLiquidity(operator, id(1), alice, 100), ErrLiquidityAlreadyAdded)
	n, err := e.locker.Count()
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)
}

func TestRecordRejects(t *testing.T) {
	e := newEnv(t)

	err := e.mgr.RecordBridgeCompletion(alice, id(1), alice, u(1), u(1))
	require.ErrorIs(t, err, access.ErrUnauthorized)

	err = e.mgr.RecordBridgeCompletion(operator, id(1), alice, u(1), u(1))
	require.ErrorIs(t, err, ErrNotProcessedUpstream)

	err = e.mgr.RecordBridgeCompletion(operator, id(1), common.Address{}, u(1), u(1))
	require.ErrorIs(t, err, ErrZeroAccount)

	e.bridgeIn(t, id(1), 1_000, 4_000)
	err = e.mgr.RecordBridgeCompletion(operator, id(1), alice, u(1_000), u(4_000))
	require.ErrorIs(t, err, ErrAlreadyRecorded)
	err = e.mgr.RecordBridgeCompletion(operator, id(1), provider, u(1_000), u(4_000))
	require.ErrorIs(t, err, ErrAlreadyRecorded)

	info, err := e.mgr.UserInfo(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), info.BalanceA.Uint64())
	require.Equal(t, uint64(1), info.Transactions)
}

func TestDepositRejects(t *testing.T) {
	e := newEnv(t)
	require.ErrorIs(t, e.mgr.DepositCounterpart(alice, id(9)), ErrUnknownRequest)

	e.bridgeIn(t, id(1), 1_000, 0)
	require.ErrorIs(t, e.mgr.DepositCounterpart(alice, id(1)), ErrZeroAmount)

	e.bridgeIn(t, id(2), 1_000, 4_000)
	require.ErrorIs(t, e.mgr.DepositCounterpart(provider, id(2)), ErrUnknownRequest)

	// No allowance: the pull fails and nothing is staged.
	err := e.mgr.DepositCounterpart(alice, id(2))
	require.ErrorIs(t, err, token.ErrInsufficientAllowance)
	tx, err := e.mgr.Transaction(alice, 1)
	require.NoError(t, err)
	require.False(t, tx.Deposited)
}

func TestCommitRefundsUnused(t *testing.T) {
	e := newEnv(t)
	// 5000 B offered against 1000 A at a 1:4 pool: 1000 B is left over.
	e.bridgeIn(t, id(1), 1_000, 5_000)
	e.deposit(t, id(1), 5_000)

	require.NoError(t, e.mgr.CommitLiquidity(operator, id(1), alice, 2_000))
	require.True(t, e.tokA.Allowance(managerAddr, routerAddr).IsZero())
	require.True(t, e.tokB.Allowance(managerAddr, routerAddr).IsZero())

	info, err := e.mgr.UserInfo(alice)
	require.NoError(t, err)
	require.True(t, info.BalanceA.IsZero())
	require.Equal(t, uint64(1_000), info.BalanceB.Uint64())

	added := e.rec.Filter(events.LiquidityABI, events.NameLiquidityAdded)
	require.Len(t, added, 1)
	_, values, err := events.LiquidityABI.UnpackEvent(events.NameLiquidityAdded, added[0])
	require.NoError(t, err)
	require.Equal(t, uint64(4_000), values[1].(*big.Int).Uint64())

	require.NoError(t, e.mgr.Claim(alice, e.tokB.Address(), u(1_000)))
	require.Equal(t, uint64(1_000_000-5_000+1_000), e.tokB.BalanceOf(alice).Uint64())
}

func TestCommitRejects(t *testing.T) {
	e := newEnv(t)
	e.bridgeIn(t, id(1), 1_000, 4_000)
	e.deposit(t, id(1), 4_000)

	require.ErrorIs(t, e.mgr.CommitLiquidity(alice, id(1), alice, 100), access.ErrUnauthorized)
	require.ErrorIs(t, e.mgr.CommitLiquidity(operator, id(1), alice, MaxSlippageBps+1), ErrSlippageTooHigh)
	require.ErrorIs(t, e.mgr.CommitLiquidity(operator, id(1), provider, 100), ErrUnknownRequest)

	// Off-ratio request with no slippage allowance fails at the router and
	// leaves the balances alone.
	e.bridgeIn(t, id(2), 1_000, 8_000)
	e.deposit(t, id(2), 8_000)
	err := e.mgr.CommitLiquidity(operator, id(2), alice, 0)
	require.ErrorIs(t, err, amm.ErrInsufficientBAmount)
	info, err := e.mgr.UserInfo(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(2_000), info.BalanceA.Uint64())
	require.Equal(t, uint64(12_000), info.BalanceB.Uint64())

	// Claimed balances can no longer be committed.
	require.NoError(t, e.mgr.Claim(alice, e.tokA.Address(), u(1_001)))
	err = e.mgr.CommitLiquidity(operator, id(1), alice, 5_000)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	tx, err := e.mgr.Transaction(alice, 0)
	require.NoError(t, err)
	require.False(t, tx.LiquidityAdded())
}

type overfillRouter struct{ *amm.Router }

func (r overfillRouter) AddLiquidity(
	caller common.Address,
	tokenA, tokenB common.Address,
	amountADesired, amountBDesired *uint256.Int,
	amountAMin, amountBMin *uint256.Int,
	to common.Address,
	deadline uint64,
) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	return new(uint256.Int).AddUint64(amountADesired, 1), amountBDesired, u(1), nil
}

func TestRouterOverfill(t *testing.T) {
	e := newEnv(t)
	e.bridgeIn(t, id(1), 1_000, 4_000)
	e.deposit(t, id(1), 4_000)
	require.NoError(t, e.mgr.SetRouter(admin, overfillRouter{e.router}, pairLookup(e.router)))

	require.ErrorIs(t, e.mgr.CommitLiquidity(operator, id(1), alice, 100), ErrRouterOverfill)
	info, err := e.mgr.UserInfo(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), info.BalanceA.Uint64())
	require.Equal(t, uint64(4_000), info.BalanceB.Uint64())
}

type downLocker struct{}

func (downLocker) Address() common.Address { return lockerAddr }

func (downLocker) Lock(common.Address, common.Address, common.Address, bool, *uint256.Int, uint64, string) (uint64, error) {
	return 0, errors.New("locker down")
}

func TestCommitLockFailureKeepsPoolResult(t *testing.T) {
	e := newEnv(t)
	e.bridgeIn(t, id(1), 1_000, 4_000)
	e.deposit(t, id(1), 4_000)
	require.NoError(t, e.mgr.SetLocker(admin, downLocker{}))

	for i := 0; i < 2; i++ {
		err := e.mgr.CommitLiquidity(operator, id(1), alice, 100)
		require.ErrorIs(t, err, faults.ExternalCapabilityFailure)
	}

	// The router ran once; its result is on record and the tokens it took
	// are no longer claimable.
	tx, err := e.mgr.Transaction(alice, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(2_000), tx.Liquidity.Uint64())
	require.False(t, tx.Locked)
	info, err := e.mgr.UserInfo(alice)
	require.NoError(t, err)
	require.True(t, info.BalanceA.IsZero())
	require.True(t, info.BalanceB.IsZero())
	require.Equal(t, uint64(2_000), info.TotalLiquidity.Uint64())
	require.ErrorIs(t, e.mgr.Claim(alice, e.tokA.Address(), u(1)), ErrInsufficientBalance)
	require.True(t, e.tokA.BalanceOf(managerAddr).IsZero())

	pairAddr := e.router.GetPair(e.tokA.Address(), e.tokB.Address())
	pair, _ := e.router.Pair(pairAddr)
	require.Equal(t, uint64(2_000), pair.BalanceOf(managerAddr).Uint64())
	require.Len(t, e.rec.Filter(events.LiquidityABI, events.NameLiquidityAdded), 1)
	require.Empty(t, e.rec.Filter(events.LiquidityABI, events.NameLiquidityLocked))

	// With a working locker the retry only locks.
	require.NoError(t, e.mgr.SetLocker(admin, e.locker))
	require.NoError(t, e.mgr.CommitLiquidity(operator, id(1), alice, 100))
	require.ErrorIs(t, e.mgr.CommitLiquidity(operator, id(1), alice, 100), ErrLiquidityAlreadyAdded)

	tx, err = e.mgr.Transaction(alice, 0)
	require.NoError(t, err)
	require.True(t, tx.Locked)
	require.Equal(t, uint64(2_000), pair.BalanceOf(lockerAddr).Uint64())
	require.True(t, pair.BalanceOf(managerAddr).IsZero())
	info, err = e.mgr.UserInfo(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(2_000), info.TotalLiquidity.Uint64())
	require.Len(t, e.rec.Filter(events.LiquidityABI, events.NameLiquidityAdded), 1)
	require.Len(t, e.rec.Filter(events.LiquidityABI, events.NameLiquidityLocked), 1)
}

func TestConcurrentStagesRunOnce(t *testing.T) {
	e := newEnv(t)
	e.bridgeIn(t, id(1), 1_000, 4_000)
	require.NoError(t, e.tokB.Approve(alice, managerAddr, u(40_000)))

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		deposits int
		commits  int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if e.mgr.DepositCounterpart(alice, id(1)) == nil {
				mu.Lock()
				deposits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if e.mgr.CommitLiquidity(operator, id(1), alice, 100) == nil {
				mu.Lock()
				commits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, deposits)
	require.Equal(t, 1, commits)
	require.Equal(t, uint64(996_000), e.tokB.BalanceOf(alice).Uint64())
	n, err := e.locker.Count()
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)
}

func TestClaim(t *testing.T) {
	e := newEnv(t)
	e.bridgeIn(t, id(1), 1_000, 4_000)

	require.ErrorIs(t, e.mgr.Claim(alice, e.tokA.Address(), u(0)), ErrZeroAmount)
	require.ErrorIs(t, e.mgr.Claim(alice, e.tokA.Address(), u(1_001)), ErrInsufficientBalance)
	require.ErrorIs(t, e.mgr.Claim(alice, common.Address{0x77}, u(1)), ErrUnknownAsset)
	require.ErrorIs(t, e.mgr.Claim(provider, e.tokA.Address(), u(1)), ErrInsufficientBalance)

	require.NoError(t, e.mgr.Claim(alice, e.tokA.Address(), u(400)))
	require.Equal(t, uint64(400), e.tokA.BalanceOf(alice).Uint64())
	info, err := e.mgr.UserInfo(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(600), info.BalanceA.Uint64())
	require.Len(t, e.rec.Filter(events.LiquidityABI, events.NameClaimed), 1)
}

func TestAdmin(t *testing.T) {
	e := newEnv(t)

	require.ErrorIs(t, e.mgr.SetLockDuration(operator, 60), access.ErrUnauthorized)
	require.ErrorIs(t, e.mgr.SetLockDuration(admin, 0), ErrInvalidConfig)
	require.NoError(t, e.mgr.SetLockDuration(admin, 60))
	require.Equal(t, uint64(60), e.mgr.LockDuration())

	require.ErrorIs(t, e.mgr.SetLocker(operator, e.locker), access.ErrUnauthorized)
	require.NoError(t, e.mgr.SetLocker(admin, e.locker))

	quote, err := e.mgr.ExpectedCounterpart(u(250))
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), quote.Uint64())

	e.bridgeIn(t, id(5), 10, 40)
	owner, tx, err := e.mgr.TransactionByRequest(id(5))
	require.NoError(t, err)
	require.Equal(t, alice, owner)
	require.Equal(t, uint64(40), tx.AmountB.Uint64())
}

func TestConfig(t *testing.T) {
	cfg := Config{
		Address:         managerAddr,
		TokenA:          common.Address{1},
		TokenB:          common.Address{2},
		LockSeconds:     3600,
		DeadlineSeconds: 300,
	}
	require.NoError(t, cfg.Verify())

	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	var decoded Config
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.True(t, cfg.Equal(&decoded))

	bad := cfg
	bad.TokenB = bad.TokenA
	require.ErrorIs(t, bad.Verify(), ErrInvalidConfig)
	bad = cfg
	bad.LockSeconds = 0
	require.ErrorIs(t, bad.Verify(), ErrInvalidConfig)
}
