// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"sync"

	"github.com/luxfi/geth/core/types"
)

// Sink receives logs after the operation that produced them has committed.
// Emit must not block.
type Sink interface {
	Emit(log *types.Log)
}

// Recorder is an append-only in-memory log. Every emitted log gets the next
// index; readers page through with Since.
type Recorder struct {
	logs []*types.Log
	mu   sync.RWMutex
}

var _ Sink = (*Recorder)(nil)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{logs: make([]*types.Log, 0)}
}

// Emit appends log.
func (r *Recorder) Emit(log *types.Log) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log.Index = uint(len(r.logs))
	log.BlockNumber = uint64(len(r.logs))
	r.logs = append(r.logs, log)
}

// Len returns the number of recorded logs.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.logs)
}

// Since returns the logs with index >= from.
func (r *Recorder) Since(from int) []*types.Log {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if from >= len(r.logs) {
		return nil
	}
	if from < 0 {
		from = 0
	}
	out := make([]*types.Log, len(r.logs)-from)
	copy(out, r.logs[from:])
	return out
}

// Filter returns every recorded log of the named event in abi.
func (r *Recorder) Filter(abi ExtendedABI, name string) []*types.Log {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*types.Log
	for _, l := range r.logs {
		if abi.Is(name, l) {
			out = append(out, l)
		}
	}
	return out
}

// Discard drops logs.
type Discard struct{}

// Emit implements Sink.
func (Discard) Emit(*types.Log) {}
