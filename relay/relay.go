// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package relay carries BridgeInitiated logs from source endpoints to the
// destination endpoint registered for their target chain.
//
// The relay is a trusted operator. It walks the source log in order, submits
// validator approvals when the destination needs quorum, then calls
// Complete. Completion is idempotent on the destination, so replaying a log
// is always safe; the relay only stops advancing on failures that may clear
// by themselves (paused endpoint, missing quorum, failing custody).
package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/luxfi/bridgekit/consensus"
	"github.com/luxfi/bridgekit/events"
	"github.com/luxfi/bridgekit/faults"
	"github.com/luxfi/bridgekit/ledger"
	"github.com/luxfi/bridgekit/modules"
)

var ErrInvalidConfig = errors.New("invalid relay config")

// Source is an ordered log the relay pages through.
type Source interface {
	Since(from int) []*types.Log
}

// Approver records one validator's approval of a request.
type Approver interface {
	Approve(caller common.Address, id common.Hash) error
}

// Validator is an account the relay approves on behalf of, for requests
// targeting ChainID.
type Validator struct {
	ChainID  uint64
	Address  common.Address
	Approver Approver
}

// Config tunes the relay loop.
type Config struct {
	// Operator is the account that calls Complete. It needs the operator
	// role on every destination.
	Operator common.Address `json:"operator"`
	// Sources are the endpoints whose BridgeInitiated logs are relayed.
	// Logs from any other address are skipped.
	Sources []common.Address `json:"sources"`
	// Start is the index of the first source log to handle.
	Start int `json:"start"`

	PollInterval time.Duration `json:"pollInterval"`
	// RatePerSecond caps Complete calls. Zero means unlimited.
	RatePerSecond float64 `json:"ratePerSecond"`
	Burst         int     `json:"burst"`

	// BreakerFailures consecutive external failures open a destination's
	// breaker for BreakerTimeout.
	BreakerFailures uint32        `json:"breakerFailures"`
	BreakerTimeout  time.Duration `json:"breakerTimeout"`
}

// DefaultConfig returns the tuning used when a field is left zero.
func DefaultConfig() Config {
	return Config{
		PollInterval:    time.Second,
		Burst:           1,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// Verify checks the config is usable.
func (c *Config) Verify() error {
	if c.Operator == (common.Address{}) {
		return fmt.Errorf("%w: operator is zero", ErrInvalidConfig)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: no sources", ErrInvalidConfig)
	}
	if c.Start < 0 {
		return fmt.Errorf("%w: negative start", ErrInvalidConfig)
	}
	if c.RatePerSecond < 0 {
		return fmt.Errorf("%w: negative rate", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) defaults() {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.Burst <= 0 {
		c.Burst = d.Burst
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = d.BreakerFailures
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = d.BreakerTimeout
	}
}

// Relay moves requests from sources to destinations.
type Relay struct {
	cfg        Config
	sources    map[common.Address]bool
	source     Source
	registry   *modules.Registry
	validators []Validator

	limiter  *rate.Limiter
	breakers map[uint64]*gobreaker.CircuitBreaker
	metrics  *metrics
	log      log.Logger

	cursor int
	mu     sync.Mutex
}

// New creates a relay reading source. Metrics are registered on reg; pass
// prometheus.NewRegistry() in tests. logger defaults to info level.
func New(
	cfg Config,
	source Source,
	registry *modules.Registry,
	validators []Validator,
	reg prometheus.Registerer,
	logger log.Logger,
) (*Relay, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	if source == nil || registry == nil {
		return nil, fmt.Errorf("%w: nil source or registry", ErrInvalidConfig)
	}
	cfg.defaults()
	if logger == nil {
		logger = log.NewTestLogger(log.InfoLevel)
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	sources := make(map[common.Address]bool, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sources[s] = true
	}
	return &Relay{
		cfg:        cfg,
		sources:    sources,
		source:     source,
		registry:   registry,
		validators: validators,
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		breakers:   make(map[uint64]*gobreaker.CircuitBreaker),
		metrics:    newMetrics(reg),
		log:        logger,
		cursor:     cfg.Start,
	}, nil
}

// Cursor is the index of the next source log to handle.
func (r *Relay) Cursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.cursor
}

// Run calls Step every poll interval until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := r.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warn("relay step halted", "cursor", r.Cursor(), "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Step handles every log after the cursor and returns how many it moved
// past. It stops at the first log whose failure is worth retrying; that log
// is handled again on the next Step.
func (r *Relay) Step(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handled := 0
	for _, l := range r.source.Since(r.cursor) {
		if err := ctx.Err(); err != nil {
			return handled, err
		}
		if err := r.handle(ctx, l); err != nil {
			return handled, err
		}
		r.cursor++
		r.metrics.cursor.Set(float64(r.cursor))
		handled++
	}
	return handled, nil
}

func (r *Relay) handle(ctx context.Context, l *types.Log) error {
	if !r.sources[l.Address] || !events.BridgeABI.Is(events.NameBridgeInitiated, l) {
		return nil
	}
	ev, err := events.DecodeBridgeInitiated(l)
	if err != nil {
		r.log.Warn("skipping malformed initiated log", "index", l.Index, "err", err)
		return nil
	}
	label := strconv.FormatUint(ev.TargetChain, 10)

	mod, ok := r.registry.GetModuleByChain(ev.TargetChain)
	if !ok {
		r.metrics.requests.WithLabelValues(label, outcomeNoRoute).Inc()
		r.log.Warn("no endpoint for target chain", "requestID", ev.RequestID, "targetChain", ev.TargetChain)
		return nil
	}

	processed, err := mod.Endpoint.IsProcessed(ev.RequestID)
	if err != nil {
		r.metrics.requests.WithLabelValues(label, outcomeRetry).Inc()
		return err
	}
	if processed {
		r.metrics.requests.WithLabelValues(label, outcomeDuplicate).Inc()
		return nil
	}

	if err := r.approve(ev.TargetChain, ev.RequestID, label); err != nil {
		return r.classify(ev, label, err)
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	_, err = r.breaker(ev.TargetChain).Execute(func() (interface{}, error) {
		return nil, mod.Endpoint.Complete(r.cfg.Operator, ev.Request(), ev.RequestID)
	})
	r.metrics.latency.WithLabelValues(label).Observe(time.Since(start).Seconds())
	return r.classify(ev, label, err)
}

// approve submits every validator's approval. Approvals already on record
// are fine.
func (r *Relay) approve(chainID uint64, id common.Hash, label string) error {
	for _, v := range r.validators {
		if v.ChainID != chainID {
			continue
		}
		err := v.Approver.Approve(v.Address, id)
		switch {
		case err == nil:
			r.metrics.approvals.WithLabelValues(label).Inc()
		case errors.Is(err, consensus.ErrAlreadyApproved):
		default:
			return err
		}
	}
	return nil
}

// classify records the outcome of one request. It returns nil when the
// relay should move on, and err when the same log must be retried.
func (r *Relay) classify(ev *events.BridgeInitiated, label string, err error) error {
	switch {
	case err == nil:
		r.metrics.requests.WithLabelValues(label, outcomeCompleted).Inc()
		r.log.Info("relayed bridge request",
			"requestID", ev.RequestID,
			"to", ev.To,
			"amount", ev.Amount,
			"targetChain", ev.TargetChain,
		)
		return nil
	case errors.Is(err, ledger.ErrAlreadyProcessed):
		r.metrics.requests.WithLabelValues(label, outcomeDuplicate).Inc()
		return nil
	case retryable(err):
		r.metrics.requests.WithLabelValues(label, outcomeRetry).Inc()
		r.log.Debug("bridge request deferred", "requestID", ev.RequestID, "err", err)
		return fmt.Errorf("request %s: %w", ev.RequestID, err)
	default:
		r.metrics.requests.WithLabelValues(label, outcomeRejected).Inc()
		r.log.Error("bridge request rejected by destination",
			"requestID", ev.RequestID,
			"targetChain", ev.TargetChain,
			"err", err,
		)
		return nil
	}
}

// retryable: the breaker is open, the destination is paused or waiting for
// quorum, or custody failed.
func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	switch faults.KindOf(err) {
	case faults.StateConflict, faults.ExternalCapabilityFailure:
		return true
	default:
		return false
	}
}

func (r *Relay) breaker(chainID uint64) *gobreaker.CircuitBreaker {
	if cb, ok := r.breakers[chainID]; ok {
		return cb
	}
	label := strconv.FormatUint(chainID, 10)
	failures := r.cfg.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "relay-" + label,
		MaxRequests: 1,
		Timeout:     r.cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || faults.KindOf(err) != faults.ExternalCapabilityFailure
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.metrics.breaker.WithLabelValues(label).Set(breakerValue(to))
			r.log.Info("relay circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	r.breakers[chainID] = cb
	return cb
}
