// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/spf13/viper"

	"github.com/luxfi/bridgekit/bridge"
	"github.com/luxfi/bridgekit/modules"
	"github.com/luxfi/bridgekit/relay"
)

// networkConfig describes a two-endpoint deployment and the relay between
// them. Endpoint addresses left empty are derived from the chain id.
type networkConfig struct {
	Admin       common.Address `json:"admin"`
	Source      bridge.Config  `json:"source"`
	Destination bridge.Config  `json:"destination"`
	Relay       relay.Config   `json:"relay"`
}

func (c *networkConfig) Verify() error {
	if c.Admin == (common.Address{}) {
		return errors.New("admin is zero")
	}
	for _, ep := range []*bridge.Config{&c.Source, &c.Destination} {
		if ep.Address != (common.Address{}) {
			continue
		}
		if addr, ok := modules.EndpointAddress(ep.ChainID); ok {
			ep.Address = addr
		}
	}
	if err := c.Source.Verify(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := c.Destination.Verify(); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if c.Source.ChainID == c.Destination.ChainID {
		return fmt.Errorf("source and destination share chain %d", c.Source.ChainID)
	}
	if len(c.Relay.Sources) == 0 {
		c.Relay.Sources = []common.Address{c.Source.Address}
	}
	return c.Relay.Verify()
}

// loadConfig reads path into v and decodes the merged settings. Values from
// BRIDGEKIT_* environment variables override keys present in the file, for
// example BRIDGEKIT_RELAY_OPERATOR for relay.operator. Fields match their
// json tags; addresses and amounts decode through their text codecs.
func loadConfig(v *viper.Viper, path string) (*networkConfig, error) {
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := &networkConfig{}
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "json"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
		)
	}); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Verify(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func parseAmount(s string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", s, err)
	}
	return amount, nil
}
