// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package modules is the directory of bridge endpoints a relayer delivers
// to. Each endpoint is registered under a config key, its chain id and a
// contract address in a reserved range.
package modules

import (
	"bytes"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/bridgekit/requestid"
)

// Endpoint is the destination side of a bridge.
type Endpoint interface {
	Complete(caller common.Address, req *requestid.Request, id common.Hash) error
	IsProcessed(id common.Hash) (bool, error)
}

// Module is one registered endpoint.
type Module struct {
	// ConfigKey is the unique name of the endpoint, e.g. "bsc-bridge".
	ConfigKey string
	ChainID   uint64
	// Address must lie in a reserved range.
	Address  common.Address
	Endpoint Endpoint
}

func compareModules(a, b Module) int {
	return bytes.Compare(a.Address.Bytes(), b.Address.Bytes())
}
