// Package cmd provides the CLI commands for realtorbot.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/realtorbot/internal/config"
	"github.com/kailas-cloud/realtorbot/internal/version"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	env      string
	envFile  string
	logLevel string
}

// NewRootCmd creates the root command for the realtorbot CLI.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "realtorbot",
		Short: "Multi-tenant real-estate assistant backend",
		Long: `realtorbot answers visitor questions about a real-estate agency's listings.

It retrieves listings from the agency's vector index, assembles a bounded
context and asks a chat model for the answer.`,
		Version:       version.Version,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadDotEnv(flags)
		},
	}
	cmd.SetVersionTemplate(fmt.Sprintf("realtorbot version {{.Version}} (%s)\n", version.Commit))

	cmd.PersistentFlags().StringVar(&flags.env, "env", "", "Config environment (default: $ENV or local)")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Dotenv file loaded before the config")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override logging.level")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newAskCmd(flags))
	cmd.AddCommand(newTenantCmd(flags))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute() //nolint:wrapcheck // cobra already printed it
}

// loadDotEnv loads the dotenv file without overriding variables already set.
// A missing file is not an error.
func loadDotEnv(flags *globalFlags) error {
	if flags.envFile != "" {
		if err := godotenv.Load(flags.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", flags.envFile, err)
		}
	}
	return nil
}

// resolvedEnv prefers --env over $ENV (which dotenv may have set).
func (f *globalFlags) resolvedEnv() string {
	if f.env != "" {
		return f.env
	}
	return config.GetEnv()
}
