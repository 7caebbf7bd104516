// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	errDup := New(StateConflict, "duplicate")

	require.Equal(t, StateConflict, KindOf(errDup))
	require.Equal(t, StateConflict, KindOf(fmt.Errorf("complete: %w", errDup)))
	require.True(t, errors.Is(fmt.Errorf("wrapped: %w", errDup), errDup))
	require.True(t, errors.Is(errDup, StateConflict))
	require.False(t, errors.Is(errDup, PolicyViolation))
	require.Equal(t, Unknown, KindOf(errors.New("plain")))
	require.Equal(t, Unknown, KindOf(nil))
}

func TestKindOfFollowsChainOrder(t *testing.T) {
	errConfig := New(IntegrityViolation, "invalid config")
	errBounds := New(PolicyViolation, "max below min")

	require.Equal(t, IntegrityViolation, KindOf(fmt.Errorf("%w: %w", errConfig, errBounds)))
	require.Equal(t, PolicyViolation, KindOf(fmt.Errorf("%w: %w", errBounds, errConfig)))
	require.Equal(t, PolicyViolation, KindOf(errors.Join(errors.New("plain"), errBounds)))
	require.Equal(t, StateConflict, KindOf(fmt.Errorf("outer: %w", StateConflict)))
}

func TestExternal(t *testing.T) {
	cause := errors.New("insufficient allowance")
	err := External(cause)

	require.Equal(t, ExternalCapabilityFailure, KindOf(err))
	require.ErrorIs(t, err, cause)
	require.Nil(t, External(nil))

	// Already classified errors keep their kind.
	errAuth := New(AuthorizationFailure, "not admin")
	require.Equal(t, errAuth, External(errAuth))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "policy violation", PolicyViolation.String())
	require.Equal(t, "kind(42)", Kind(42).String())
}
