// Package cli wires Cobra subcommands to the gateway's components.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vnmchuo/adstream-gateway/config"
	"github.com/vnmchuo/adstream-gateway/internal/logging"
)

const serviceName = "adstream-gateway"

// Set at build time via ldflags.
var Version = "dev"

// NewRootCmd creates the root command and registers all subcommands.
func NewRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:     "gateway",
		Short:   "Streaming ad copy gateway",
		Version: Version,
		// main renders fatal errors through the structured logger.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// price works on the built-in table only.
			if cmd.Name() == "price" {
				return nil
			}

			loaded, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cmd.ErrOrStderr(), loaded.LogLevel, loaded.LogFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default to `gateway serve` when no subcommand is provided.
			serveCmd, _, err := cmd.Find([]string{"serve"})
			if err != nil {
				return err
			}
			serveCmd.SetContext(cmd.Context())
			return serveCmd.RunE(serveCmd, args)
		},
	}

	root.AddCommand(newServeCmd(func() *config.Config { return cfg }))
	root.AddCommand(newPriceCmd())

	return root
}
