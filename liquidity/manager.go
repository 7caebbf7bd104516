// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package liquidity turns bridged-in tokens into locked AMM liquidity.
//
// Each bridge completion the manager records becomes a Transaction owned by
// the recipient. The recipient deposits the counterpart token, the manager
// role commits both sides to the router and the minted LP tokens are locked
// for the recipient. Stages are keyed by the bridge request id and each runs
// at most once.
package liquidity

import (
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"

	"github.com/luxfi/bridgekit/access"
	"github.com/luxfi/bridgekit/events"
	"github.com/luxfi/bridgekit/faults"
	"github.com/luxfi/bridgekit/state"
)

// Manager holds the per-account request ledger. Every mutation holds mu
// from its first check to commit.
type Manager struct {
	address common.Address
	tokenA  common.Address
	tokenB  common.Address

	lockSeconds     uint64
	deadlineSeconds uint64

	store    *state.Store
	roles    access.Authorizer
	upstream BridgeStatus
	erc20A   Token
	erc20B   Token
	router   Router
	pairs    PairLookup
	locker   Locker
	sink     events.Sink
	log      log.Logger
	clock    func() time.Time

	mu sync.Mutex
}

// New creates a manager.
func New(cfg Config, deps Deps) (*Manager, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	if err := deps.defaults(); err != nil {
		return nil, err
	}
	return &Manager{
		address:         cfg.Address,
		tokenA:          cfg.TokenA,
		tokenB:          cfg.TokenB,
		lockSeconds:     cfg.LockSeconds,
		deadlineSeconds: cfg.DeadlineSeconds,
		store:           deps.Store,
		roles:           deps.Roles,
		upstream:        deps.Upstream,
		erc20A:          deps.TokenA,
		erc20B:          deps.TokenB,
		router:          deps.Router,
		pairs:           deps.Pairs,
		locker:          deps.Locker,
		sink:            deps.Sink,
		log:             deps.Log,
		clock:           deps.Clock,
	}, nil
}

// Address is where bridged tokens are delivered and deposits are pulled to.
func (m *Manager) Address() common.Address { return m.address }

// RecordBridgeCompletion opens a transaction for account. The upstream
// bridge must already report id as processed, and the bridged amountA must
// already sit on the manager's address.
func (m *Manager) RecordBridgeCompletion(caller common.Address, id common.Hash, account common.Address, amountA, amountB *uint256.Int) error {
	if err := m.roles.Authorize(caller, access.Manager); err != nil {
		return err
	}
	if account == (common.Address{}) {
		return ErrZeroAccount
	}
	if amountA == nil || amountA.IsZero() {
		return ErrZeroAmount
	}
	if amountB == nil {
		amountB = new(uint256.Int)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	txn := m.store.Begin()
	defer txn.Discard()

	if _, _, ok, err := getRecord(txn, id); err != nil {
		return err
	} else if ok {
		return ErrAlreadyRecorded
	}
	processed, err := m.upstream.IsProcessed(id)
	if err != nil {
		return faults.External(err)
	}
	if !processed {
		return ErrNotProcessedUpstream
	}

	info, err := getUser(txn, account)
	if err != nil {
		return err
	}
	pos := info.Transactions
	tx := &Transaction{
		RequestID: id,
		AmountA:   amountA.Clone(),
		AmountB:   amountB.Clone(),
		Liquidity: new(uint256.Int),
	}
	info.Transactions++
	info.BalanceA.Add(info.BalanceA, amountA)
	if err := putTx(txn, account, pos, tx); err != nil {
		return err
	}
	if err := putUser(txn, account, info); err != nil {
		return err
	}
	putRecord(txn, id, account, pos)

	l, err := events.LiquidityABI.Log(m.address, events.NameBridgeCompleted,
		id, account, events.Big(amountA), events.Big(amountB))
	if err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	m.sink.Emit(l)
	m.log.Info("liquidity request recorded",
		"requestID", id,
		"account", account,
		"amountA", amountA,
		"amountB", amountB,
	)
	return nil
}

// DepositCounterpart pulls the recorded tokenB amount from caller, who must
// own the request and have approved the manager.
func (m *Manager) DepositCounterpart(caller common.Address, id common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txn := m.store.Begin()
	defer txn.Discard()

	pos, tx, err := m.owned(txn, id, caller)
	if err != nil {
		return err
	}
	if tx.AmountB.IsZero() {
		return ErrZeroAmount
	}
	if tx.Deposited {
		return ErrAlreadyDeposited
	}
	info, err := getUser(txn, caller)
	if err != nil {
		return err
	}

	tx.Deposited = true
	info.BalanceB.Add(info.BalanceB, tx.AmountB)
	if err := putTx(txn, caller, pos, tx); err != nil {
		return err
	}
	if err := putUser(txn, caller, info); err != nil {
		return err
	}
	l, err := events.LiquidityABI.Log(m.address, events.NameUserDeposit, id, caller, events.Big(tx.AmountB))
	if err != nil {
		return err
	}

	if err := m.erc20B.TransferFrom(m.address, caller, m.address, tx.AmountB); err != nil {
		return faults.External(err)
	}
	if err := txn.Commit(); err != nil {
		if undoErr := m.erc20B.Transfer(m.address, caller, tx.AmountB); undoErr != nil {
			m.log.Error("liquidity deposit refund failed", "requestID", id, "err", undoErr)
		}
		return err
	}
	m.sink.Emit(l)
	m.log.Info("counterpart deposited", "requestID", id, "account", caller, "amount", tx.AmountB)
	return nil
}

// CommitLiquidity adds the request's two amounts to the pool, refunds what
// the router did not use and locks the LP tokens for account.
//
// The pool stage and the lock stage commit separately. When the lock fails
// after the router minted LP tokens, the debits and the minted liquidity are
// recorded with Locked unset, and a later call only retries the lock.
func (m *Manager) CommitLiquidity(caller common.Address, id common.Hash, account common.Address, slippageBps uint64) error {
	if err := m.roles.Authorize(caller, access.Manager); err != nil {
		return err
	}
	if slippageBps > MaxSlippageBps {
		return fmt.Errorf("%w: %d bps", ErrSlippageTooHigh, slippageBps)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.router == nil || m.locker == nil || m.pairs == nil {
		return ErrNotConfigured
	}

	txn := m.store.Begin()
	defer txn.Discard()

	pos, tx, err := m.owned(txn, id, account)
	if err != nil {
		return err
	}
	if tx.Locked {
		return ErrLiquidityAlreadyAdded
	}
	if !tx.Deposited {
		return ErrNotDeposited
	}
	pairAddr := m.router.GetPair(m.tokenA, m.tokenB)
	pair, ok := m.pairs(pairAddr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPair, pairAddr)
	}
	now := uint64(m.clock().Unix())

	var (
		logs         []*types.Log
		usedA, usedB *uint256.Int
	)
	if !tx.LiquidityAdded() {
		info, err := getUser(txn, account)
		if err != nil {
			return err
		}
		if info.BalanceA.Lt(tx.AmountA) || info.BalanceB.Lt(tx.AmountB) {
			return fmt.Errorf("%w: request amounts were claimed", ErrInsufficientBalance)
		}

		minA := minAmount(tx.AmountA, slippageBps)
		minB := minAmount(tx.AmountB, slippageBps)
		var liquidity *uint256.Int
		usedA, usedB, liquidity, err = m.addLiquidity(tx.AmountA, tx.AmountB, minA, minB, now+m.deadlineSeconds)
		if err != nil {
			return err
		}

		// Debit what the router used; the rest stays claimable.
		info.BalanceA.Sub(info.BalanceA, usedA)
		info.BalanceB.Sub(info.BalanceB, usedB)
		info.TotalLiquidity.Add(info.TotalLiquidity, liquidity)
		tx.Liquidity = liquidity.Clone()
		if err := putTx(txn, account, pos, tx); err != nil {
			return err
		}
		if err := putUser(txn, account, info); err != nil {
			return err
		}
		added, err := events.LiquidityABI.Log(m.address, events.NameLiquidityAdded,
			id, account, events.Big(usedA), events.Big(usedB), events.Big(liquidity), events.BigU64(slippageBps))
		if err != nil {
			return err
		}
		logs = append(logs, added)
	}

	unlockTime := now + m.lockSeconds
	lockID, lockErr := m.lock(pair, pairAddr, account, id, tx.Liquidity, unlockTime)
	if lockErr != nil {
		if len(logs) > 0 {
			if err := txn.Commit(); err != nil {
				m.log.Error("liquidity commit failed after pool deposit",
					"requestID", id,
					"liquidity", tx.Liquidity,
					"err", err,
				)
				return err
			}
			m.emit(logs)
		}
		return m.lockFailed(id, account, tx.Liquidity, lockErr)
	}

	tx.Locked = true
	tx.LockID = lockID
	if err := putTx(txn, account, pos, tx); err != nil {
		return err
	}
	locked, err := events.LiquidityABI.Log(m.address, events.NameLiquidityLocked,
		id, account, events.BigU64(lockID), events.Big(tx.Liquidity), events.BigU64(unlockTime))
	if err != nil {
		return err
	}
	logs = append(logs, locked)
	if err := txn.Commit(); err != nil {
		m.log.Error("liquidity commit failed after lock",
			"requestID", id,
			"lockID", lockID,
			"err", err,
		)
		return err
	}

	m.emit(logs)
	m.log.Info("liquidity committed",
		"requestID", id,
		"account", account,
		"amountA", usedA,
		"amountB", usedB,
		"liquidity", tx.Liquidity,
		"lockID", lockID,
	)
	return nil
}

func (m *Manager) emit(logs []*types.Log) {
	for _, l := range logs {
		m.sink.Emit(l)
	}
}

// lock approves the locker for the LP tokens and locks them for account.
func (m *Manager) lock(pair Pair, pairAddr, account common.Address, id common.Hash, liquidity *uint256.Int, unlockTime uint64) (uint64, error) {
	if err := pair.Approve(m.address, m.locker.Address(), liquidity); err != nil {
		return 0, err
	}
	return m.locker.Lock(m.address, account, pairAddr, true, liquidity, unlockTime,
		fmt.Sprintf("bridge liquidity %s", id.Hex()))
}

// addLiquidity approves the router for exactly the desired amounts, calls
// it and rejects results above what was offered.
func (m *Manager) addLiquidity(desiredA, desiredB, minA, minB *uint256.Int, deadline uint64) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	spender := m.router.Address()
	if err := m.erc20A.Approve(m.address, spender, desiredA); err != nil {
		return nil, nil, nil, faults.External(err)
	}
	if err := m.erc20B.Approve(m.address, spender, desiredB); err != nil {
		return nil, nil, nil, faults.External(err)
	}
	defer func() {
		zero := new(uint256.Int)
		if err := m.erc20A.Approve(m.address, spender, zero); err != nil {
			m.log.Warn("router allowance reset failed", "token", m.tokenA, "err", err)
		}
		if err := m.erc20B.Approve(m.address, spender, zero); err != nil {
			m.log.Warn("router allowance reset failed", "token", m.tokenB, "err", err)
		}
	}()

	usedA, usedB, liquidity, err := m.router.AddLiquidity(m.address, m.tokenA, m.tokenB,
		desiredA, desiredB, minA, minB, m.address, deadline)
	if err != nil {
		return nil, nil, nil, faults.External(err)
	}
	if usedA.Gt(desiredA) || usedB.Gt(desiredB) {
		m.log.Error("router used more than desired",
			"desiredA", desiredA,
			"usedA", usedA,
			"desiredB", desiredB,
			"usedB", usedB,
		)
		return nil, nil, nil, ErrRouterOverfill
	}
	return usedA, usedB, liquidity, nil
}

// lockFailed reports LP tokens that were minted to the manager but could
// not be locked. They stay on the manager's address until a retry locks them.
func (m *Manager) lockFailed(id common.Hash, account common.Address, liquidity *uint256.Int, err error) error {
	m.log.Error("liquidity lock failed",
		"requestID", id,
		"account", account,
		"liquidity", liquidity,
		"err", err,
	)
	return faults.External(err)
}

// Claim sends amount of asset from caller's claimable balance.
func (m *Manager) Claim(caller, asset common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var token Token
	switch asset {
	case m.tokenA:
		token = m.erc20A
	case m.tokenB:
		token = m.erc20B
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}

	txn := m.store.Begin()
	defer txn.Discard()

	info, err := getUser(txn, caller)
	if err != nil {
		return err
	}
	balance := info.BalanceA
	if asset == m.tokenB {
		balance = info.BalanceB
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, claims %s", ErrInsufficientBalance, caller, balance.Dec(), amount.Dec())
	}
	balance.Sub(balance, amount)
	if err := putUser(txn, caller, info); err != nil {
		return err
	}
	l, err := events.LiquidityABI.Log(m.address, events.NameClaimed, caller, asset, events.Big(amount))
	if err != nil {
		return err
	}

	if err := token.Transfer(m.address, caller, amount); err != nil {
		return faults.External(err)
	}
	if err := txn.Commit(); err != nil {
		if undoErr := token.Transfer(caller, m.address, amount); undoErr != nil {
			m.log.Error("liquidity claim reversal failed", "account", caller, "err", undoErr)
		}
		return err
	}
	m.sink.Emit(l)
	m.log.Info("claimed", "account", caller, "asset", asset, "amount", amount)
	return nil
}

// owned loads the transaction for id and checks account owns it.
func (m *Manager) owned(r state.Reader, id common.Hash, account common.Address) (uint64, *Transaction, error) {
	owner, pos, ok, err := getRecord(r, id)
	if err != nil {
		return 0, nil, err
	}
	if !ok || owner != account {
		return 0, nil, fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	tx, err := getTx(r, owner, pos)
	if err != nil {
		return 0, nil, err
	}
	return pos, tx, nil
}

// amount * (10000 - slippageBps) / 10000
func minAmount(amount *uint256.Int, slippageBps uint64) *uint256.Int {
	out, _ := new(uint256.Int).MulDivOverflow(amount,
		uint256.NewInt(bpsDenominator-slippageBps), uint256.NewInt(bpsDenominator))
	return out
}
