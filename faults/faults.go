// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package faults classifies every error the bridge engine can return into one
// of five kinds. Callers branch on the kind with errors.Is, for example
// errors.Is(err, faults.StateConflict), regardless of how deeply the error was
// wrapped on its way out.
package faults

import (
	"fmt"
)

// Kind is the class of a rejection.
type Kind uint8

const (
	Unknown Kind = iota
	// PolicyViolation: amount bounds or daily limit. Caller may adjust and retry.
	PolicyViolation
	// StateConflict: duplicate relay or out-of-order stage.
	StateConflict
	// IntegrityViolation: malformed or tampered request.
	IntegrityViolation
	// AuthorizationFailure: caller lacks the required role.
	AuthorizationFailure
	// ExternalCapabilityFailure: token, router or lock call failed.
	ExternalCapabilityFailure
)

var kindNames = map[Kind]string{
	Unknown:                   "unknown",
	PolicyViolation:           "policy violation",
	StateConflict:             "state conflict",
	IntegrityViolation:        "integrity violation",
	AuthorizationFailure:      "authorization failure",
	ExternalCapabilityFailure: "external capability failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error implements error so a Kind can be used as an errors.Is target.
func (k Kind) Error() string { return k.String() }

// Fault is a sentinel error tagged with its kind.
type Fault struct {
	kind Kind
	msg  string
}

// New returns a sentinel error of the given kind.
func New(kind Kind, msg string) *Fault {
	return &Fault{kind: kind, msg: msg}
}

func (f *Fault) Error() string { return f.msg }

// Kind returns the class of the fault.
func (f *Fault) Kind() Kind { return f.kind }

// Is matches both the sentinel itself and its kind.
func (f *Fault) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return f.kind == k
	}
	return f == target
}

// externalError wraps a collaborator failure while keeping the original error
// in the chain.
type externalError struct {
	err error
}

func (e *externalError) Error() string { return "external call failed: " + e.err.Error() }

func (e *externalError) Unwrap() error { return e.err }

func (e *externalError) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == ExternalCapabilityFailure
}

// External tags err as an ExternalCapabilityFailure unless it already carries
// a kind. Returns nil for a nil err.
func External(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != Unknown {
		return err
	}
	return &externalError{err: err}
}

// KindOf reports the kind of the first classified error in err's chain,
// walking it depth-first in the same order as errors.Is.
func KindOf(err error) Kind {
	switch e := err.(type) {
	case nil:
		return Unknown
	case *Fault:
		return e.kind
	case Kind:
		return e
	case *externalError:
		return ExternalCapabilityFailure
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return KindOf(u.Unwrap())
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if k := KindOf(inner); k != Unknown {
				return k
			}
		}
	}
	return Unknown
}
