package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mailcove/gatekeeper/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without starting the daemon.

Checks YAML syntax, field values, and tier table consistency (every
quota limit positive or -1 for unlimited, default tier defined).

Examples:
  # Validate the default config
  gatekeeper validate

  # Validate a specific file
  gatekeeper validate --config /etc/mailcove/gatekeeper.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			var valErr config.ValidationError
			if errors.As(err, &valErr) {
				for _, fe := range valErr.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", fe.Field, fe.Message)
				}
			}
			return fmt.Errorf("configuration invalid: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration valid (%d tiers, default %q)\n",
			len(cfg.Tiers), cfg.DefaultTier)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
