// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package access

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/bridgekit/faults"
)

var (
	testAdmin    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testOperator = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testStranger = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func TestRoles(t *testing.T) {
	r := NewRoles(testAdmin)

	require.NoError(t, r.Authorize(testAdmin, Admin))
	err := r.Authorize(testOperator, Operator)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, faults.AuthorizationFailure, faults.KindOf(err))

	require.NoError(t, r.Grant(testAdmin, Operator, testOperator))
	require.NoError(t, r.Authorize(testOperator, Operator))
	require.ErrorIs(t, r.Authorize(testOperator, Admin), ErrUnauthorized)

	require.ErrorIs(t, r.Grant(testStranger, Operator, testStranger), ErrUnauthorized)
	require.ErrorIs(t, r.Grant(testAdmin, Operator, common.Address{}), ErrZeroAddress)

	require.NoError(t, r.Revoke(testAdmin, Operator, testOperator))
	require.False(t, r.HasRole(testOperator, Operator))
}

func TestRevokeLastAdmin(t *testing.T) {
	r := NewRoles(testAdmin)
	require.ErrorIs(t, r.Revoke(testAdmin, Admin, testAdmin), ErrLastAdmin)

	require.NoError(t, r.Grant(testAdmin, Admin, testOperator))
	require.NoError(t, r.Revoke(testOperator, Admin, testAdmin))
	require.Equal(t, []common.Address{testOperator}, r.Members(Admin))
}
