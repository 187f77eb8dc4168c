package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gatekeeper",
	Short: "Mailcove gatekeeper - rate limiting and quota enforcement",
	Long: `Gatekeeper is the rate-limiting and quota-enforcement engine for the
Mailcove platform.

It maintains exact, monotonic counters under concurrent access from many
processes, supports calendar-aligned billing quotas alongside sliding
abuse windows, and degrades gracefully when the shared counter store is
unavailable.`,
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
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
}
