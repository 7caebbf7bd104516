// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const networkJSON = `{
  "admin": "0x00000000000000000000000000000000000000a0",
  "source": {
    "chainId": 1,
    "address": "0x0000000000000000000000000000000000006010",
    "limits": {"minTransfer": "1", "maxTransfer": "1000000", "dailyLimit": "10000000"}
  },
  "destination": {
    "chainId": 96369,
    "address": "0x0000000000000000000000000000000000006030",
    "limits": {"minTransfer": "1", "maxTransfer": "1000000", "dailyLimit": "10000000"}
  },
  "relay": {
    "operator": "0x00000000000000000000000000000000000000a9"
  }
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridgekit.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, networkJSON)
	out, err := run(t, "validate", "--config", path)
	require.NoError(t, err)
	require.Contains(t, out, "chain 1 -> chain 96369")
}

func TestValidateRejects(t *testing.T) {
	_, err := run(t, "validate", "--config", filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorContains(t, err, "read config")

	same := writeConfig(t, `{
  "admin": "0x00000000000000000000000000000000000000a0",
  "source": {"chainId": 1, "address": "0x0000000000000000000000000000000000006010",
    "limits": {"minTransfer": "1", "maxTransfer": "10", "dailyLimit": "100"}},
  "destination": {"chainId": 1, "address": "0x0000000000000000000000000000000000006030",
    "limits": {"minTransfer": "1", "maxTransfer": "10", "dailyLimit": "100"}},
  "relay": {"operator": "0x00000000000000000000000000000000000000a9"}
}`)
	_, err = run(t, "validate", "--config", same)
	require.ErrorContains(t, err, "share chain 1")

	noOperator := writeConfig(t, `{
  "admin": "0x00000000000000000000000000000000000000a0",
  "source": {"chainId": 1, "address": "0x0000000000000000000000000000000000006010",
    "limits": {"minTransfer": "1", "maxTransfer": "10", "dailyLimit": "100"}},
  "destination": {"chainId": 56, "address": "0x0000000000000000000000000000000000006030",
    "limits": {"minTransfer": "1", "maxTransfer": "10", "dailyLimit": "100"}},
  "relay": {}
}`)
	_, err = run(t, "validate", "--config", noOperator)
	require.ErrorContains(t, err, "operator is zero")
}

func TestSimulate(t *testing.T) {
	path := writeConfig(t, networkJSON)
	out, err := run(t, "simulate", "--config", path, "--transfers", "4", "--amount", "250")
	require.NoError(t, err)
	require.Contains(t, out, "initiated 4 transfer(s) on chain 1")
	require.Contains(t, out, "source supply 0")
	require.Contains(t, out, "destination supply 1000 on chain 96369")
	require.Contains(t, out, "recipient balance 1000")
}

func TestSimulateRejectsOverLimit(t *testing.T) {
	path := writeConfig(t, networkJSON)
	_, err := run(t, "simulate", "--config", path, "--transfers", "1", "--amount", "2000000")
	require.ErrorContains(t, err, "transfer 0")

	_, err = run(t, "simulate", "--config", path, "--amount", "lots")
	require.ErrorContains(t, err, "amount")
}

func TestSimulateDerivesEndpointAddresses(t *testing.T) {
	path := writeConfig(t, `{
  "admin": "0x00000000000000000000000000000000000000a0",
  "source": {"chainId": 56, "limits": {"minTransfer": "1", "maxTransfer": "500", "dailyLimit": "5000"}},
  "destination": {"chainId": 96369, "limits": {"minTransfer": "1", "maxTransfer": "500", "dailyLimit": "5000"}},
  "relay": {"operator": "0x00000000000000000000000000000000000000a9", "ratePerSecond": 100, "burst": 5}
}`)
	out, err := run(t, "simulate", "--config", path, "--transfers", "2", "--amount", "10")
	require.NoError(t, err)
	require.Contains(t, out, "relayed 2 log(s)")
	require.Contains(t, out, "recipient balance 20")
}

func TestValidateEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, networkJSON)
	t.Setenv("BRIDGEKIT_DESTINATION_CHAINID", "56")
	t.Setenv("BRIDGEKIT_RELAY_OPERATOR", "0x0000000000000000000000000000000000000000")

	_, err := run(t, "validate", "--config", path)
	require.ErrorContains(t, err, "operator is zero")

	t.Setenv("BRIDGEKIT_RELAY_OPERATOR", "0x00000000000000000000000000000000000000b1")
	out, err := run(t, "validate", "--config", path)
	require.NoError(t, err)
	require.Contains(t, out, "chain 1 -> chain 56")
}
