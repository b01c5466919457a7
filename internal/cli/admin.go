package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/tada/internal/backend"
	"github.com/idilsaglam/tada/internal/backend/factory"
	"github.com/idilsaglam/tada/internal/config"
	"github.com/idilsaglam/tada/internal/ui"
)

// Root credentials for `db init`.
const (
	EnvDBUser = "TADA_DB_USER"
	EnvDBPass = "TADA_DB_PASS"
)

func (r *runner) dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the backend database",
	}

	var user, pass string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Define the schema, permissions and access method (surreal backend)",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if r.cfg.Backend.Type != config.BackendSurreal {
				return &usageError{
					msg:  fmt.Sprintf("db init needs the %s backend, config has %q", config.BackendSurreal, r.cfg.Backend.Type),
					hint: "set [backend] type = \"surreal\" in " + r.defaults.ConfigPath,
				}
			}
			if user == "" {
				user = os.Getenv(EnvDBUser)
			}
			if user == "" {
				user = "root"
			}
			if pass == "" {
				pass = os.Getenv(EnvDBPass)
			}
			if pass == "" {
				var err error
				if pass, err = r.prompt(cmd, "Root password: ", true); err != nil {
					return err
				}
			}

			log, err := r.logger(cmd, true)
			if err != nil {
				return err
			}
			ctx, cancel := r.oneShot(cmd)
			defer cancel()
			client, err := factory.Surreal(ctx, r.cfg.Backend, backend.NopTokenStore{}, log.Logger)
			if err != nil {
				return fmt.Errorf("connecting to surreal backend: %w", err)
			}
			defer client.Close()

			if err := client.Migrate(ctx, user, pass); err != nil {
				return err
			}
			ui.OK(fmt.Sprintf("schema defined in %s/%s", r.cfg.Backend.Namespace, r.cfg.Backend.Database))
			return nil
		},
	}
	initCmd.Flags().StringVar(&user, "user", "", "root user (default $"+EnvDBUser+" or root)")
	initCmd.Flags().StringVar(&pass, "pass", "", "root password (default $"+EnvDBPass+", prompted when empty)")
	cmd.AddCommand(initCmd)
	return cmd
}

func (r *runner) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Write a configuration file with defaults",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg := config.NewConfig(r.defaults.BaseDir)
				if err := config.Init(r.defaults.ConfigPath, cfg); err != nil {
					return fmt.Errorf("failed to initialize config: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Configuration initialized at %s\n", r.defaults.ConfigPath)
				fmt.Fprintf(out, "Base Dir: %s\n", cfg.BaseDir)
				fmt.Fprintf(out, "Backend:  %s\n", cfg.Backend.Type)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "View the effective configuration",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, args []string) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "# %s\n", r.defaults.ConfigPath)
				m := &config.Manager{}
				return m.Write(out, r.cfg)
			},
		},
	)
	return cmd
}
