// Package app is the client's state machine. A Controller owns the session
// holder, the live list and the edit buffer and changes them only in Handle,
// which one goroutine calls with events taken from the controller's queue.
// Commands return at once; their outcome arrives later as an event.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/idilsaglam/tada/internal/backend"
	"github.com/idilsaglam/tada/internal/dispatch"
	"github.com/idilsaglam/tada/internal/editbuf"
	"github.com/idilsaglam/tada/internal/event"
	"github.com/idilsaglam/tada/internal/livelist"
	"github.com/idilsaglam/tada/internal/model"
	"github.com/idilsaglam/tada/internal/session"
)

// State is a read-only view of the controller, for rendering.
type State struct {
	Identity *model.Identity
	// Stale is set when sign-out failed; the backend may have dropped the session.
	Stale    error
	Items    []model.Item
	Loaded   bool
	Draft    string
	Editing  bool
	EditID   string
	EditText string
	Message  string
	Err      error
	// Last is the most recently completed command.
	Last *event.CommandCompleted
}

// Item returns the item with id from the current list.
func (s State) Item(id string) (model.Item, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return model.Item{}, false
}

// Controller wires one backend client to the client state.
type Controller struct {
	client backend.Client
	log    zerolog.Logger
	queue  *event.Queue
	ctx    context.Context
	cancel context.CancelFunc

	holder   session.Holder
	list     *livelist.Subscriber
	edit     editbuf.Buffer
	commands *dispatch.Dispatcher
	unsubs   []func()

	draft   string
	message string
	err     error
	last    *event.CommandCompleted
}

// New returns a Controller for client. The caller keeps ownership of client
// and closes it after the controller.
func New(client backend.Client, log zerolog.Logger) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	q := event.NewQueue()
	c := &Controller{
		client: client,
		log:    log,
		queue:  q,
		ctx:    ctx,
		cancel: cancel,
	}
	c.list = livelist.New(ctx, client, q.Push, log.With().Str("component", "livelist").Logger())
	c.commands = dispatch.New(ctx, client, q.Push, log.With().Str("component", "dispatch").Logger())
	c.unsubs = append(c.unsubs, c.holder.OnChange(c.identityChanged))
	return c
}

// Start listens for auth state changes.
func (c *Controller) Start() {
	unsub := c.client.OnAuthStateChanged(func(id *model.Identity) {
		c.queue.Push(event.IdentityChanged{Identity: id})
	})
	c.unsubs = append(c.unsubs, unsub)
}

// Next waits for the next event to hand to Handle.
func (c *Controller) Next(ctx context.Context) (event.Event, error) {
	return c.queue.Next(ctx)
}

// Handle applies one event. It must only be called from the consuming goroutine.
func (c *Controller) Handle(ev event.Event) {
	switch ev := ev.(type) {
	case event.IdentityChanged:
		if c.holder.Set(ev.Identity) && ev.Identity == nil {
			c.notify("session ended")
		}
	case event.SnapshotReceived:
		if c.list.Apply(ev) && c.edit.Retain(c.list.Items()) {
			c.log.Debug().Msg("edited item disappeared; edit discarded")
		}
	case event.SubscriptionFailed:
		c.subscriptionFailed(ev)
	case event.CommandCompleted:
		c.completed(ev)
	}
}

// Pump handles events until done reports true for the state, the queue is
// closed or ctx ends.
func (c *Controller) Pump(ctx context.Context, done func(State) bool) error {
	for !done(c.State()) {
		ev, err := c.Next(ctx)
		if err != nil {
			return err
		}
		c.Handle(ev)
	}
	return nil
}

// State returns the current view. Items is shared and must not be modified.
func (c *Controller) State() State {
	return State{
		Identity: c.holder.Current(),
		Stale:    c.holder.Stale(),
		Items:    c.list.Items(),
		Loaded:   c.list.Loaded(),
		Draft:    c.draft,
		Editing:  c.edit.Active(),
		EditID:   c.edit.Target(),
		EditText: c.edit.Text(),
		Message:  c.message,
		Err:      c.err,
		Last:     c.last,
	}
}

// Close stops listening, tears down the subscription and waits for commands
// in flight.
func (c *Controller) Close() {
	for i := len(c.unsubs) - 1; i >= 0; i-- {
		c.unsubs[i]()
	}
	c.unsubs = nil
	c.list.Close()
	c.cancel()
	c.commands.Wait()
	c.queue.Close()
}

func (c *Controller) identityChanged(id *model.Identity) {
	c.edit.Cancel()
	if err := c.list.Reset(id); err != nil {
		c.fail("subscribe", err)
		if backend.IsAuth(err) {
			c.holder.Set(nil)
		}
	}
	if id != nil {
		c.log.Info().Str("user", id.ID).Msg("signed in")
	} else {
		c.log.Info().Msg("signed out")
	}
}

func (c *Controller) subscriptionFailed(ev event.SubscriptionFailed) {
	if !c.list.Current(ev.Gen) {
		return
	}
	c.fail("live list", ev.Err)
	if backend.IsAuth(ev.Err) {
		// The backend no longer accepts the session.
		c.holder.Set(nil)
	}
}

func (c *Controller) completed(ev event.CommandCompleted) {
	cc := ev
	c.last = &cc
	if ev.Err != nil {
		c.commandFailed(ev)
		return
	}
	c.err = nil
	switch ev.Op {
	case event.OpSignIn, event.OpSignUp, event.OpResume:
		c.holder.Set(ev.Identity)
		c.notify("signed in as " + ev.Identity.Email)
	case event.OpSignOut:
		c.holder.Set(nil)
		c.notify("signed out")
	case event.OpAdd:
		if c.sameSession(ev) && strings.TrimSpace(c.draft) == ev.Title {
			c.draft = ""
		}
		c.notify("added")
	case event.OpSave:
		if c.sameSession(ev) && c.edit.Active() && c.edit.Target() == ev.ItemID {
			c.edit.Commit()
		}
		c.notify("saved")
	case event.OpDelete:
		c.notify("removed")
	case event.OpToggle:
		c.notify("toggled")
	}
}

func (c *Controller) commandFailed(ev event.CommandCompleted) {
	switch ev.Op {
	case event.OpSignOut:
		c.holder.MarkStale(ev.Err)
		c.fail("sign out failed, session may be stale", ev.Err)
	case event.OpResume:
		if errors.Is(ev.Err, backend.ErrNoSession) {
			c.log.Debug().Msg("no saved session")
			c.err = nil
			return
		}
		c.fail("resume session", ev.Err)
	default:
		c.fail(string(ev.Op), ev.Err)
	}
}

func (c *Controller) sameSession(ev event.CommandCompleted) bool {
	return model.SameIdentity(ev.Identity, c.holder.Current())
}

func (c *Controller) notify(msg string) {
	c.message = msg
}

func (c *Controller) fail(what string, err error) {
	c.log.Error().Err(err).Msg(what)
	c.err = err
	c.message = fmt.Sprintf("%s: %v", what, err)
}
