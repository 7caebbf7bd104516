// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command bridgekit validates bridge deployments and simulates transfers
// across an in-memory pair of endpoints.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BRIDGEKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "bridgekit",
		Short:         "Cross-chain bridge request engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "bridgekit.json", "network config file (json, yaml or toml)")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(newValidateCmd(v), newSimulateCmd(v))
	return root
}

func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a network config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := v.GetString("config")
			cfg, err := loadConfig(v, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ok: chain %d -> chain %d\n",
				path, cfg.Source.ChainID, cfg.Destination.ChainID)
			return nil
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "bridgekit:", err)
		os.Exit(1)
	}
}
