package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/tada/internal/backend"
	"github.com/idilsaglam/tada/internal/credentials"
	"github.com/idilsaglam/tada/internal/event"
	"github.com/idilsaglam/tada/internal/ui"
)

func (r *runner) authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the session",
	}
	cmd.AddCommand(
		r.credentialsCmd("login", "Sign in with email and password", event.OpSignIn),
		r.credentialsCmd("signup", "Create an account and sign in", event.OpSignUp),
		r.logoutCmd(),
		r.statusCmd(),
		r.whoamiCmd(),
	)
	return cmd
}

func (r *runner) credentialsCmd(use, short string, op event.Op) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				var err error
				if email, err = r.prompt(cmd, "Email: ", false); err != nil {
					return err
				}
			}
			password, err := r.prompt(cmd, "Password: ", true)
			if err != nil {
				return err
			}

			ctx, cancel := r.oneShot(cmd)
			defer cancel()
			c, err := r.connect(ctx, cmd, true)
			if err != nil {
				return err
			}
			defer c.Close()

			send := func() error { return c.ctrl.SignIn(email, password) }
			if op == event.OpSignUp {
				send = func() error { return c.ctrl.SignUp(email, password) }
			}
			if err := c.run(ctx, op, send); err != nil {
				return err
			}
			ui.OK("logged in as " + c.ctrl.State().Identity.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (prompted when empty)")
	return cmd
}

func (r *runner) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds := credentials.New(r.cfg.BaseDir)
			if ti, _ := creds.Get(); ti != nil && ti.Source == "env" {
				ui.OK("token is provided by " + credentials.EnvToken + " env var (nothing to delete)")
				return nil
			}

			ctx, cancel := r.oneShot(cmd)
			defer cancel()
			c, err := r.connect(ctx, cmd, true)
			if err != nil {
				return err
			}
			defer c.Close()

			ok, err := c.restore(ctx)
			if err != nil {
				return err
			}
			if !ok {
				if err := creds.Delete(); err != nil {
					return fmt.Errorf("logout: %w", err)
				}
				ui.OK("not logged in")
				return nil
			}
			if err := c.run(ctx, event.OpSignOut, c.ctrl.SignOut); err != nil {
				return fmt.Errorf("%w (the session may be stale)", err)
			}
			ui.OK("logged out")
			return nil
		},
	}
}

func (r *runner) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the saved session comes from",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ti, err := credentials.New(r.cfg.BaseDir).Get()
			if err != nil {
				return err
			}
			if ti == nil {
				fmt.Fprintln(out, ui.C(ui.Current().Muted, "not logged in"))
				fmt.Fprintln(out, "Run: todo auth login")
				return nil
			}
			fmt.Fprintf(out, "backend: %s\n", r.cfg.Backend.Type)
			fmt.Fprintf(out, "source: %s\n", ti.Source)
			exp := ti.ExpiresAt
			if exp == nil {
				exp = backend.TokenExpiry(ti.Token)
			}
			switch {
			case exp == nil:
				fmt.Fprintln(out, "expires: (unknown)")
			case !exp.After(time.Now()):
				fmt.Fprintf(out, "expires: %s (expired)\n", exp.UTC().Format(time.RFC3339))
			default:
				fmt.Fprintf(out, "expires: %s\n", exp.UTC().Format(time.RFC3339))
			}
			fmt.Fprintln(out, "env override: "+credentials.EnvToken)
			return nil
		},
	}
}

func (r *runner) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Resume the saved session and print its identity",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := r.oneShot(cmd)
			defer cancel()
			c, err := r.connect(ctx, cmd, true)
			if err != nil {
				return err
			}
			defer c.Close()
			return whoami(ctx, cmd, c)
		},
	}
}

func whoami(ctx context.Context, cmd *cobra.Command, c *conn) error {
	ok, err := c.restore(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errNotLoggedIn
	}
	id := c.ctrl.State().Identity
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "email: %s\n", id.Email)
	fmt.Fprintf(out, "id: %s\n", id.ID)
	if token, err := c.creds.LoadToken(); err == nil && token != "" {
		if exp := backend.TokenExpiry(token); exp != nil {
			fmt.Fprintf(out, "expires: %s\n", exp.UTC().Format(time.RFC3339))
		}
	}
	return nil
}
