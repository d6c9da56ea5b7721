package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	tenantrepo "github.com/kailas-cloud/realtorbot/internal/repository/tenant"
)

func newTenantCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenant configuration in the store",
	}
	cmd.AddCommand(newTenantPutCmd(flags))
	cmd.AddCommand(newTenantGetCmd(flags))
	return cmd
}

func newTenantPutCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "put <file.yaml>",
		Short: "Create or replace a tenant from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			t, err := tenantrepo.DecodeYAML(data)
			if err != nil {
				return err //nolint:wrapcheck // already prefixed
			}
			if !t.HasPromptTemplate() {
				// Stored anyway; chat requests fail with a config error until it is set.
				_, _ = color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(),
					"warning: tenant %s has no prompt_template\n", t.ID())
			}

			rt, err := loadBootstrap(flags)
			if err != nil {
				return err
			}
			store, err := rt.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			repo := tenantrepo.New(store, 0, 0)
			if err := repo.Put(cmd.Context(), t); err != nil {
				return err //nolint:wrapcheck // already prefixed
			}
			rt.logger.Info("tenant stored", zap.String("tenant_id", t.ID()), zap.String("index", t.IndexName()))
			_, _ = color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "tenant %s stored\n", t.ID())
			return nil
		},
	}
}

func newTenantGetCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print a stored tenant as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadBootstrap(flags)
			if err != nil {
				return err
			}
			store, err := rt.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			t, err := tenantrepo.New(store, 0, 0).Get(cmd.Context(), args[0])
			if err != nil {
				return err //nolint:wrapcheck // already prefixed
			}
			out, err := yaml.Marshal(tenantrepo.FromDomain(t))
			if err != nil {
				return fmt.Errorf("encode tenant: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err //nolint:wrapcheck // stdout
		},
	}
}
