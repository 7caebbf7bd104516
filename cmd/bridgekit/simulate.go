// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luxfi/bridgekit/access"
	"github.com/luxfi/bridgekit/bridge"
	"github.com/luxfi/bridgekit/events"
	"github.com/luxfi/bridgekit/modules"
	"github.com/luxfi/bridgekit/relay"
	"github.com/luxfi/bridgekit/state"
	"github.com/luxfi/bridgekit/token"
)

var (
	defaultSender    = common.HexToAddress("0x1234567890123456789012345678901234567890")
	defaultRecipient = common.HexToAddress("0xABCDEFABCDEFABCDEFABCDEFABCDEFABCDEFABCD")
)

func newSimulateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Relay transfers between two in-memory mintable endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, v.GetString("config"))
			if err != nil {
				return err
			}
			amount, err := parseAmount(v.GetString("amount"))
			if err != nil {
				return err
			}
			res, err := simulate(cmd.Context(), cfg, simulation{
				Transfers: v.GetInt("transfers"),
				Amount:    amount,
				From:      common.HexToAddress(v.GetString("from")),
				To:        common.HexToAddress(v.GetString("to")),
			})
			if err != nil {
				return err
			}
			res.print(cmd)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.Int("transfers", 3, "number of transfers to initiate")
	flags.String("amount", "100", "amount per transfer, in base units")
	flags.String("from", defaultSender.Hex(), "sending account")
	flags.String("to", defaultRecipient.Hex(), "receiving account")
	for _, name := range []string{"transfers", "amount", "from", "to"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
	return cmd
}

type simulation struct {
	Transfers int
	Amount    *uint256.Int
	From      common.Address
	To        common.Address
}

type simulationResult struct {
	Initiated     int
	Relayed       int
	Cursor        int
	SourceSupply  *uint256.Int
	DestSupply    *uint256.Int
	RecipientDest *uint256.Int
	SourceChain   uint64
	DestChain     uint64
}

func (r *simulationResult) print(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "initiated %d transfer(s) on chain %d\n", r.Initiated, r.SourceChain)
	fmt.Fprintf(out, "relayed %d log(s), cursor %d\n", r.Relayed, r.Cursor)
	fmt.Fprintf(out, "source supply %s\n", r.SourceSupply.Dec())
	fmt.Fprintf(out, "destination supply %s on chain %d\n", r.DestSupply.Dec(), r.DestChain)
	fmt.Fprintf(out, "recipient balance %s\n", r.RecipientDest.Dec())
}

type simEndpoint struct {
	bridge *bridge.Bridge
	token  *token.Token
	rec    *events.Recorder
}

func newSimEndpoint(cfg bridge.Config, admin, operator common.Address, logger log.Logger) (*simEndpoint, error) {
	tok := token.New(common.BytesToAddress(uint256.NewInt(cfg.ChainID).Bytes()), "LUXB", 18, admin)
	if err := tok.SetBridge(admin, cfg.Address); err != nil {
		return nil, err
	}
	roles := access.NewRoles(admin)
	if err := roles.Grant(admin, access.Operator, operator); err != nil {
		return nil, err
	}
	rec := events.NewRecorder()
	b, err := bridge.NewMintable(cfg, bridge.Deps{
		Store: state.New(memdb.New()),
		Roles: roles,
		Sink:  rec,
		Log:   logger,
	}, tok)
	if err != nil {
		return nil, err
	}
	return &simEndpoint{bridge: b, token: tok, rec: rec}, nil
}

// simulate mints the whole amount to the sender on the source chain,
// initiates the transfers and runs one relay step.
func simulate(ctx context.Context, cfg *networkConfig, sim simulation) (*simulationResult, error) {
	if sim.Transfers <= 0 {
		return nil, fmt.Errorf("transfers must be positive, got %d", sim.Transfers)
	}
	logger := log.NewTestLogger(log.InfoLevel)

	src, err := newSimEndpoint(cfg.Source, cfg.Admin, cfg.Relay.Operator, logger)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	dst, err := newSimEndpoint(cfg.Destination, cfg.Admin, cfg.Relay.Operator, logger)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	if err := src.bridge.SetChainSupport(cfg.Admin, cfg.Destination.ChainID, true); err != nil {
		return nil, err
	}

	total := new(uint256.Int).Mul(sim.Amount, uint256.NewInt(uint64(sim.Transfers)))
	if err := src.token.Mint(cfg.Admin, sim.From, total); err != nil {
		return nil, err
	}

	registry := modules.NewRegistry()
	if err := registry.RegisterModule(modules.Module{
		ConfigKey: "destination",
		ChainID:   cfg.Destination.ChainID,
		Address:   cfg.Destination.Address,
		Endpoint:  dst.bridge,
	}); err != nil {
		return nil, err
	}

	relayCfg := cfg.Relay
	relayCfg.Start = src.rec.Len()
	r, err := relay.New(relayCfg, src.rec, registry, nil, prometheus.NewRegistry(), logger)
	if err != nil {
		return nil, err
	}

	for i := 0; i < sim.Transfers; i++ {
		if _, _, err := src.bridge.Initiate(sim.From, sim.To, sim.Amount, cfg.Destination.ChainID); err != nil {
			return nil, fmt.Errorf("transfer %d: %w", i, err)
		}
	}
	relayed, err := r.Step(ctx)
	if err != nil {
		return nil, err
	}
	return &simulationResult{
		Initiated:     sim.Transfers,
		Relayed:       relayed,
		Cursor:        r.Cursor(),
		SourceSupply:  src.token.TotalSupply(),
		DestSupply:    dst.token.TotalSupply(),
		RecipientDest: dst.token.BalanceOf(sim.To),
		SourceChain:   cfg.Source.ChainID,
		DestChain:     cfg.Destination.ChainID,
	}, nil
}
