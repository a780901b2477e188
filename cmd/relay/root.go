package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay - credential-pooling reverse proxy for LLM APIs",
	Long: `Relay is a reverse proxy that fronts a fixed set of LLM HTTP APIs.

It manages per-provider API key pools with least-recently-used
selection, quota tracking and rate-limit cooldowns, routes upstream
traffic either directly or through a rotating SOCKS5 proxy pool, and
keeps credential state reconciled with a SQLite store.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "relay.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
