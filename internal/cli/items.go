package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/tada/internal/event"
	"github.com/idilsaglam/tada/internal/tui"
	"github.com/idilsaglam/tada/internal/ui"
)

func (r *runner) lsCmd() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List items (interactive on a terminal)",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if plain || !ui.IsTerminal() {
				return r.listPlain(cmd)
			}
			return r.listInteractive(cmd)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print the list once instead of opening the interactive view")
	return cmd
}

func (r *runner) listPlain(cmd *cobra.Command) error {
	ctx, cancel := r.oneShot(cmd)
	defer cancel()
	c, err := r.connect(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.resume(ctx); err != nil {
		return err
	}
	st := c.ctrl.State()
	ui.Panel(ui.ListLines(st.Identity, st.Items, r.opts.Group))
	return nil
}

// listInteractive hands the controller to the TUI. Without a saved session
// the TUI opens on its sign-in form.
func (r *runner) listInteractive(cmd *cobra.Command) error {
	ctx := cmd.Context()
	c, err := r.connect(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.ctrl.Resume(); err != nil {
		return err
	}
	return tui.Run(ctx, c.ctrl)
}

func (r *runner) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <title...>",
		Short: "Add a new item (title can be multiple words)",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args, " "))
			return r.withList(cmd, func(ctx context.Context, c *conn) error {
				return c.run(ctx, event.OpAdd, func() error { return c.ctrl.Add(title) })
			}, "added")
		},
	}
}

func (r *runner) doneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <index>",
		Short: "Toggle done for the item at a 1-based index",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withList(cmd, func(ctx context.Context, c *conn) error {
				it, err := c.itemAt(args[0])
				if err != nil {
					return err
				}
				return c.run(ctx, event.OpToggle, func() error { return c.ctrl.Toggle(it.ID) })
			}, "toggled")
		},
	}
}

func (r *runner) editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <index> <title...>",
		Short: "Rename the item at a 1-based index",
		Args:  minArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args[1:], " ")
			return r.withList(cmd, func(ctx context.Context, c *conn) error {
				it, err := c.itemAt(args[0])
				if err != nil {
					return err
				}
				if err := c.ctrl.BeginEdit(it.ID); err != nil {
					return err
				}
				c.ctrl.UpdateEdit(title)
				return c.run(ctx, event.OpSave, c.ctrl.SaveEdit)
			}, "saved")
		},
	}
}

func (r *runner) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <index>",
		Short: "Remove the item at a 1-based index",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withList(cmd, func(ctx context.Context, c *conn) error {
				it, err := c.itemAt(args[0])
				if err != nil {
					return err
				}
				return c.run(ctx, event.OpDelete, func() error { return c.ctrl.Delete(it.ID) })
			}, "removed")
		},
	}
}

// withList connects, resumes the session, waits for the list and runs fn.
func (r *runner) withList(cmd *cobra.Command, fn func(ctx context.Context, c *conn) error, done string) error {
	ctx, cancel := r.oneShot(cmd)
	defer cancel()

	c, err := r.connect(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.resume(ctx); err != nil {
		return err
	}
	if err := fn(ctx, c); err != nil {
		return err
	}
	ui.OK(done)
	return nil
}
