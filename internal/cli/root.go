// Package cli is the todo command line. One-shot commands resume the saved
// session, run one command against the backend and print the outcome; `ls`
// opens the interactive list when stdout is a terminal.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/idilsaglam/tada/internal/config"
	"github.com/idilsaglam/tada/internal/logging"
	"github.com/idilsaglam/tada/internal/ui"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// usageError is a mistake on the command line. It exits with ExitUsage.
type usageError struct {
	msg  string
	hint string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, a ...any) error {
	return &usageError{msg: fmt.Sprintf(format, a...)}
}

// Options tune output behavior from root flags.
type Options struct {
	ConfigPath string
	Verbose    bool
	Theme      string
	NoColor    bool
	Group      bool // list grouped by pending/done
	Timeout    time.Duration
}

type runner struct {
	opts     Options
	defaults config.Defaults
	cfg      *config.Config
	log      *logging.Logger
	stdin    *bufio.Reader
}

// Execute runs the command line in args and returns an exit code
// (0 ok, 1 error, 2 usage).
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	r := &runner{}
	defer r.close()

	root := r.rootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	ui.SetOutput(out, errOut)

	return exitCode(root.ExecuteContext(ctx))
}

func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ue *usageError
	switch {
	case errors.As(err, &ue):
		ui.Fail(ue.msg)
		if ue.hint != "" {
			ui.Hint(ue.hint)
		}
		return ExitUsage
	case strings.HasPrefix(err.Error(), "unknown command"):
		ui.Fail(err.Error())
		return ExitUsage
	}
	ui.Fail(err.Error())
	return ExitError
}

func (r *runner) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "todo",
		Short:         "A live-synced personal to-do list",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: `  todo auth signup --email me@example.com
  todo add "Buy milk"
  todo ls
  todo done 2
  todo edit 2 Buy oat milk
  todo rm 3`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return r.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return usagef("missing subcommand")
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{msg: err.Error(), hint: "usage: " + cmd.UseLine()}
	})

	f := root.PersistentFlags()
	f.StringVar(&r.opts.ConfigPath, "config", "", "config file (default $"+config.EnvConfig+" or ~/.config/tada.toml)")
	f.BoolVarP(&r.opts.Verbose, "verbose", "v", false, "also log to stderr")
	f.StringVar(&r.opts.Theme, "theme", "classic", "color theme: "+strings.Join(ui.Themes, ", "))
	f.BoolVar(&r.opts.NoColor, "no-color", false, "disable colors")
	f.BoolVar(&r.opts.Group, "group", false, "group output by pending/done")
	f.DurationVar(&r.opts.Timeout, "timeout", 15*time.Second, "how long one-shot commands wait for the backend")

	root.AddCommand(
		r.lsCmd(),
		r.addCmd(),
		r.doneCmd(),
		r.editCmd(),
		r.rmCmd(),
		r.authCmd(),
		r.dbCmd(),
		r.configCmd(),
	)
	return root
}

// setup loads the configuration. The log file is opened later, by the
// commands that talk to a backend.
func (r *runner) setup(cmd *cobra.Command) error {
	ui.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err := ui.SetTheme(r.opts.Theme); err != nil {
		return &usageError{msg: err.Error()}
	}
	ui.SetColorForcing(false, r.opts.NoColor)

	d, err := config.GetDefaults()
	if err != nil {
		return fmt.Errorf("getting defaults: %w", err)
	}
	if r.opts.ConfigPath != "" {
		d.ConfigPath = r.opts.ConfigPath
	}
	r.defaults = d

	cfg, err := config.Load(d.ConfigPath, d)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	r.cfg = cfg
	return nil
}

// logger opens the log file once. console adds a human-readable copy on
// stderr; it must stay off while the TUI owns the terminal.
func (r *runner) logger(cmd *cobra.Command, console bool) (*logging.Logger, error) {
	if r.log != nil {
		return r.log, nil
	}
	opts := logging.Options{
		Dir:   r.cfg.LogDir,
		Level: r.cfg.LogLevel,
		OpID:  uuid.NewString(),
	}
	if console && r.opts.Verbose {
		opts.Console = cmd.ErrOrStderr()
	}
	l, err := logging.New(opts)
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}
	l.Info().Str("command", cmd.CommandPath()).Str("backend", r.cfg.Backend.Type).Msg("start")
	r.log = l
	return l, nil
}

// oneShot bounds a one-shot command by --timeout.
func (r *runner) oneShot(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), r.opts.Timeout)
}

func (r *runner) close() {
	if r.log != nil {
		_ = r.log.Close()
	}
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return checkArgs(cobra.ExactArgs(n))
}

// minArgs is cobra.MinimumNArgs reporting a usage error.
func minArgs(n int) cobra.PositionalArgs {
	return checkArgs(cobra.MinimumNArgs(n))
}

func checkArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return &usageError{msg: cmd.Name() + ": " + err.Error(), hint: "usage: " + cmd.UseLine()}
		}
		return nil
	}
}
