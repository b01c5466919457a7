package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/tada/internal/app"
	"github.com/idilsaglam/tada/internal/backend"
	"github.com/idilsaglam/tada/internal/backend/factory"
	"github.com/idilsaglam/tada/internal/credentials"
	"github.com/idilsaglam/tada/internal/dispatch"
	"github.com/idilsaglam/tada/internal/event"
	"github.com/idilsaglam/tada/internal/model"
)

var errNotLoggedIn = &usageError{msg: "not logged in", hint: "run `todo auth login` or `todo auth signup`"}

// conn is a started controller over a freshly opened backend client.
type conn struct {
	client backend.Client
	ctrl   *app.Controller
	creds  *credentials.Store
}

func (r *runner) connect(ctx context.Context, cmd *cobra.Command, console bool) (*conn, error) {
	log, err := r.logger(cmd, console)
	if err != nil {
		return nil, err
	}
	creds := credentials.New(r.cfg.BaseDir)
	client, err := factory.New(ctx, r.cfg.Backend, creds, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s backend: %w", r.cfg.Backend.Type, err)
	}
	ctrl := app.New(client, log.With().Str("component", "app").Logger())
	ctrl.Start()
	return &conn{client: client, ctrl: ctrl, creds: creds}, nil
}

func (c *conn) Close() error {
	c.ctrl.Close()
	return c.client.Close()
}

// await handles events until the command op completes and returns its outcome.
func (c *conn) await(ctx context.Context, op event.Op) (*event.CommandCompleted, error) {
	prev := c.ctrl.State().Last
	err := c.ctrl.Pump(ctx, func(st app.State) bool {
		return st.Last != nil && st.Last != prev && st.Last.Op == op
	})
	if err != nil {
		return nil, waitErr(op, err)
	}
	return c.ctrl.State().Last, nil
}

// restore resumes the saved session. It reports false when there is none.
func (c *conn) restore(ctx context.Context) (bool, error) {
	if err := c.ctrl.Resume(); err != nil {
		return false, err
	}
	ev, err := c.await(ctx, event.OpResume)
	if err != nil {
		return false, err
	}
	if ev.Err != nil && !errors.Is(ev.Err, backend.ErrNoSession) && !backend.IsAuth(ev.Err) {
		return false, fmt.Errorf("resume session: %w", ev.Err)
	}
	return c.ctrl.State().Identity != nil, nil
}

// resume restores the saved session and waits for the first snapshot of the list.
func (c *conn) resume(ctx context.Context) error {
	ok, err := c.restore(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errNotLoggedIn
	}
	err = c.ctrl.Pump(ctx, func(st app.State) bool {
		return st.Loaded || st.Identity == nil || st.Err != nil
	})
	if err != nil {
		return waitErr("list", err)
	}
	st := c.ctrl.State()
	switch {
	case st.Identity == nil:
		return errNotLoggedIn
	case !st.Loaded:
		return fmt.Errorf("loading list: %w", st.Err)
	}
	return nil
}

// run sends one command and waits for the backend to confirm it.
func (c *conn) run(ctx context.Context, op event.Op, send func() error) error {
	if err := send(); err != nil {
		return commandErr(err)
	}
	ev, err := c.await(ctx, op)
	if err != nil {
		return err
	}
	if ev.Err != nil {
		return fmt.Errorf("%s: %w", op, ev.Err)
	}
	return nil
}

// itemAt resolves a 1-based index in the current snapshot.
func (c *conn) itemAt(arg string) (model.Item, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return model.Item{}, usagef("not a number: %s", arg)
	}
	items := c.ctrl.State().Items
	if n < 1 || n > len(items) {
		return model.Item{}, &usageError{
			msg:  fmt.Sprintf("index out of range: have %d, got %d", len(items), n),
			hint: "run `todo ls` to see valid indexes",
		}
	}
	return items[n-1], nil
}

// commandErr turns the controller's validation errors into usage errors.
func commandErr(err error) error {
	switch {
	case errors.Is(err, dispatch.ErrEmptyTitle),
		errors.Is(err, dispatch.ErrMissingEmail),
		errors.Is(err, dispatch.ErrMissingSecret):
		return usagef("%v", err)
	case errors.Is(err, dispatch.ErrNotSignedIn):
		return errNotLoggedIn
	}
	return err
}

func waitErr[T ~string](what T, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: timed out waiting for the backend", what)
	}
	return fmt.Errorf("%s: %w", what, err)
}
