// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package access holds the role assignments consulted at the top of every
// gated operation.
package access

import (
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/bridgekit/faults"
)

// Role is a capability a caller may hold.
type Role uint8

const (
	Admin Role = iota + 1
	Operator
	Validator
	Manager
	Pauser
)

func (r Role) String() string {
	switch r {
	case Admin:
		return "admin"
	case Operator:
		return "operator"
	case Validator:
		return "validator"
	case Manager:
		return "manager"
	case Pauser:
		return "pauser"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

var (
	ErrUnauthorized = faults.New(faults.AuthorizationFailure, "unauthorized")
	ErrZeroAddress  = faults.New(faults.IntegrityViolation, "invalid address: cannot be zero")
	ErrLastAdmin    = faults.New(faults.StateConflict, "cannot revoke the last admin")
)

// Authorizer answers whether a caller holds a role.
type Authorizer interface {
	Authorize(caller common.Address, role Role) error
}

// Roles is an in-memory role-assignment table. Only admins change it.
type Roles struct {
	members map[Role]map[common.Address]bool
	mu      sync.RWMutex
}

var _ Authorizer = (*Roles)(nil)

// NewRoles creates a table with admin holding the Admin role.
func NewRoles(admin common.Address) *Roles {
	r := &Roles{members: make(map[Role]map[common.Address]bool)}
	r.set(Admin, admin, true)
	return r
}

// Authorize returns ErrUnauthorized unless caller holds role.
func (r *Roles) Authorize(caller common.Address, role Role) error {
	if r.HasRole(caller, role) {
		return nil
	}
	return fmt.Errorf("%w: %s lacks %s role", ErrUnauthorized, caller, role)
}

// HasRole reports membership.
func (r *Roles) HasRole(account common.Address, role Role) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.members[role][account]
}

// Grant gives role to account. Caller must be admin.
func (r *Roles) Grant(caller common.Address, role Role, account common.Address) error {
	if account == (common.Address{}) {
		return ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.members[Admin][caller] {
		return fmt.Errorf("%w: %s lacks %s role", ErrUnauthorized, caller, Admin)
	}
	r.set(role, account, true)
	return nil
}

// Revoke removes role from account. Caller must be admin. The last admin
// cannot be removed.
func (r *Roles) Revoke(caller common.Address, role Role, account common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.members[Admin][caller] {
		return fmt.Errorf("%w: %s lacks %s role", ErrUnauthorized, caller, Admin)
	}
	if role == Admin && r.members[Admin][account] && len(r.members[Admin]) == 1 {
		return ErrLastAdmin
	}
	delete(r.members[role], account)
	return nil
}

// Members returns the holders of role.
func (r *Roles) Members(role Role) []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]common.Address, 0, len(r.members[role]))
	for addr := range r.members[role] {
		out = append(out, addr)
	}
	return out
}

func (r *Roles) set(role Role, account common.Address, on bool) {
	if r.members[role] == nil {
		r.members[role] = make(map[common.Address]bool)
	}
	r.members[role][account] = on
}
