package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	ConfigPath  string
	BaseURL     string
	Journal     string
	TraceStdout bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cartsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cartsync",
		Short: "cartsync - keep a shopping cart in step with its service",
		Long: `cartsync drives a cart service the way a storefront page does: every
edit goes through one serialized reconciler, money is exact, and a lost
session sends you back to login.

Configuration comes from --config, then CARTSYNC_* environment variables,
then flags.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", "", "cart service base URL (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (overrides config)")
	cmd.PersistentFlags().BoolVar(&opts.TraceStdout, "trace-stdout", false, "print OpenTelemetry spans to stderr")

	for _, sub := range newCartCommands(opts) {
		cmd.AddCommand(sub)
	}
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewMockServerCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
