// Package cli provides the versusctl operator commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/okian/versus/pkg/logger"
)

// Version is set at build time.
var Version = "0.1.0"

const defaultBaseURL = "http://localhost:9080"

// NewRootCmd builds the versusctl command tree.
func NewRootCmd() *cobra.Command {
	var (
		verbose   bool
		logFormat string
	)
	root := &cobra.Command{
		Use:   "versusctl",
		Short: "Operator tool for the versus rating service",
		Long: `versusctl talks to a running versus server over HTTP.

It seeds profiles from YAML files and drives simulated voters to check that
ratings converge on a known order.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithFormat(logFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
				return err
			}
			if verbose {
				return logger.SetLevelString("debug")
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(newSeedCmd())
	root.AddCommand(newSimulateCmd())
	return root
}
