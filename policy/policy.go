// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package policy evaluates per-transfer bounds and the per-day transfer cap.
//
// A zero bound disables the corresponding check. This is a sentinel: a zero
// minimum accepts any amount, a zero maximum accepts any amount and a zero
// daily limit never touches the window.
package policy

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/luxfi/bridgekit/faults"
)

// DayLength is the width of one daily window.
const DayLength = 24 * time.Hour

var (
	ErrDailyLimitExceeded = faults.New(faults.PolicyViolation, "daily transfer limit exceeded")
	ErrInvalidLimits      = faults.New(faults.PolicyViolation, "max transfer below min transfer")
)

// Limits is the configured transfer policy. Nil fields are treated as zero.
type Limits struct {
	Min   *uint256.Int `json:"minTransfer"`
	Max   *uint256.Int `json:"maxTransfer"`
	Daily *uint256.Int `json:"dailyLimit"`
}

// BoundsError carries the configured bounds and the offending amount.
type BoundsError struct {
	Amount *uint256.Int
	Min    *uint256.Int
	Max    *uint256.Int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("amount %s outside transfer bounds [min %s, max %s]",
		e.Amount.Dec(), e.Min.Dec(), e.Max.Dec())
}

// Is classifies the error as a policy violation.
func (e *BoundsError) Is(target error) bool {
	k, ok := target.(faults.Kind)
	return ok && k == faults.PolicyViolation
}

// Window is the (day, accumulated) pair of the daily cap.
type Window struct {
	Day         uint64
	Accumulated *uint256.Int
}

// DayIndex returns the window index for now.
func DayIndex(now time.Time) uint64 {
	unix := now.Unix()
	if unix < 0 {
		return 0
	}
	return uint64(unix) / uint64(DayLength/time.Second)
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

// Normalized returns a copy with nil fields replaced by zero.
func (l Limits) Normalized() Limits {
	return Limits{
		Min:   orZero(l.Min).Clone(),
		Max:   orZero(l.Max).Clone(),
		Daily: orZero(l.Daily).Clone(),
	}
}

// Verify checks that the bounds are consistent.
func (l Limits) Verify() error {
	n := l.Normalized()
	if !n.Min.IsZero() && !n.Max.IsZero() && n.Max.Lt(n.Min) {
		return ErrInvalidLimits
	}
	return nil
}

// Equal reports whether both policies have the same bounds.
func (l Limits) Equal(other Limits) bool {
	a, b := l.Normalized(), other.Normalized()
	return a.Min.Eq(b.Min) && a.Max.Eq(b.Max) && a.Daily.Eq(b.Daily)
}

// CheckBounds rejects amounts under a non-zero minimum or over a non-zero
// maximum.
func (l Limits) CheckBounds(amount *uint256.Int) error {
	n := l.Normalized()
	amount = orZero(amount)
	if (!n.Min.IsZero() && amount.Lt(n.Min)) || (!n.Max.IsZero() && amount.Gt(n.Max)) {
		return &BoundsError{Amount: amount.Clone(), Min: n.Min, Max: n.Max}
	}
	return nil
}

// Consume applies amount to the window. With a zero daily limit it accepts
// without touching w. Otherwise the window is reset when the day changed and
// the amount is added only if the total stays within the limit; on rejection
// w is left as it was.
func (l Limits) Consume(w *Window, amount *uint256.Int, now time.Time) error {
	daily := orZero(l.Daily)
	if daily.IsZero() {
		return nil
	}

	day := DayIndex(now)
	accumulated := orZero(w.Accumulated)
	if day != w.Day {
		accumulated = new(uint256.Int)
	}

	total, overflow := new(uint256.Int).AddOverflow(accumulated, orZero(amount))
	if overflow || total.Gt(daily) {
		return ErrDailyLimitExceeded
	}

	w.Day = day
	w.Accumulated = total
	return nil
}

// Remaining returns how much can still be transferred today. Unlimited
// policies report the maximum uint256.
func (l Limits) Remaining(w Window, now time.Time) *uint256.Int {
	daily := orZero(l.Daily)
	if daily.IsZero() {
		return new(uint256.Int).SetAllOne()
	}

	used := orZero(w.Accumulated)
	if DayIndex(now) != w.Day {
		used = new(uint256.Int)
	}
	if used.Gt(daily) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(daily, used)
}
