// Package dispatch turns user intents into backend calls. Every call runs on its
// own goroutine and reports back through a CommandCompleted event; nothing here
// blocks the caller or touches client state.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/idilsaglam/tada/internal/backend"
	"github.com/idilsaglam/tada/internal/event"
	"github.com/idilsaglam/tada/internal/model"
)

var (
	ErrEmptyTitle    = errors.New("title is empty")
	ErrNotSignedIn   = errors.New("not signed in")
	ErrMissingItem   = errors.New("no item selected")
	ErrMissingEmail  = errors.New("email is required")
	ErrMissingSecret = errors.New("password is required")
)

// Dispatcher issues commands against one backend client.
type Dispatcher struct {
	ctx    context.Context
	client backend.Client
	post   func(event.Event)
	log    zerolog.Logger
	wg     sync.WaitGroup
}

// New returns a Dispatcher. Calls are bound to ctx; post must not block.
func New(ctx context.Context, client backend.Client, post func(event.Event), log zerolog.Logger) *Dispatcher {
	return &Dispatcher{ctx: ctx, client: client, post: post, log: log}
}

func (d *Dispatcher) run(fn func(ctx context.Context) (event.CommandCompleted, error)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		out, err := fn(d.ctx)
		out.Err = err
		l := d.log.Debug()
		if err != nil {
			l = d.log.Warn().Err(err)
		}
		l.Str("op", string(out.Op)).Str("item", out.ItemID).Msg("command completed")
		d.post(out)
	}()
}

func credentialsErr(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return ErrMissingEmail
	}
	if password == "" {
		return ErrMissingSecret
	}
	return nil
}

// SignIn signs in with email and password.
func (d *Dispatcher) SignIn(email, password string) error {
	if err := credentialsErr(email, password); err != nil {
		return err
	}
	d.run(func(ctx context.Context) (event.CommandCompleted, error) {
		id, err := d.client.SignInWithCredentials(ctx, strings.TrimSpace(email), password)
		return signedIn(event.OpSignIn, id, err), err
	})
	return nil
}

// SignUp registers and signs in.
func (d *Dispatcher) SignUp(email, password string) error {
	if err := credentialsErr(email, password); err != nil {
		return err
	}
	d.run(func(ctx context.Context) (event.CommandCompleted, error) {
		id, err := d.client.SignUp(ctx, strings.TrimSpace(email), password)
		return signedIn(event.OpSignUp, id, err), err
	})
	return nil
}

// SignInWithProvider signs in through a named provider.
func (d *Dispatcher) SignInWithProvider(provider string) error {
	d.run(func(ctx context.Context) (event.CommandCompleted, error) {
		id, err := d.client.SignInWithProvider(ctx, provider)
		return signedIn(event.OpResume, id, err), err
	})
	return nil
}

func signedIn(op event.Op, id model.Identity, err error) event.CommandCompleted {
	ev := event.CommandCompleted{Op: op}
	if err == nil {
		ev.Identity = &id
	}
	return ev
}

// SignOut ends the session.
func (d *Dispatcher) SignOut(current *model.Identity) error {
	if current == nil {
		return ErrNotSignedIn
	}
	ev := event.CommandCompleted{Op: event.OpSignOut, Identity: current}
	d.run(func(ctx context.Context) (event.CommandCompleted, error) {
		return ev, d.client.SignOut(ctx)
	})
	return nil
}

// Add creates an item titled title for owner. Blank titles write nothing.
func (d *Dispatcher) Add(owner *model.Identity, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if owner == nil {
		return ErrNotSignedIn
	}
	ev := event.CommandCompleted{Op: event.OpAdd, Title: title, Identity: owner}
	fields := backend.Fields{
		model.FieldTitle:     title,
		model.FieldCompleted: false,
		model.FieldOwner:     owner.ID,
		model.FieldCreatedAt: backend.ServerTimestamp,
	}
	d.run(func(ctx context.Context) (event.CommandCompleted, error) {
		id, err := d.client.Add(ctx, model.Collection, fields)
		out := ev
		out.ItemID = id
		return out, err
	})
	return nil
}

// Save writes a new title for itemID. Only the title field is sent.
func (d *Dispatcher) Save(owner *model.Identity, itemID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if err := check(owner, itemID); err != nil {
		return err
	}
	ev := event.CommandCompleted{Op: event.OpSave, ItemID: itemID, Title: title, Identity: owner}
	d.run(func(ctx context.Context) (event.CommandCompleted, error) {
		return ev, d.client.Update(ctx, model.Collection, itemID, backend.Fields{model.FieldTitle: title})
	})
	return nil
}

// Delete removes itemID.
func (d *Dispatcher) Delete(owner *model.Identity, itemID string) error {
	if err := check(owner, itemID); err != nil {
		return err
	}
	ev := event.CommandCompleted{Op: event.OpDelete, ItemID: itemID, Identity: owner}
	d.run(func(ctx context.Context) (event.CommandCompleted, error) {
		return ev, d.client.Delete(ctx, model.Collection, itemID)
	})
	return nil
}

// Toggle writes the opposite of completed to itemID.
func (d *Dispatcher) Toggle(owner *model.Identity, itemID string, completed bool) error {
	if err := check(owner, itemID); err != nil {
		return err
	}
	ev := event.CommandCompleted{Op: event.OpToggle, ItemID: itemID, Identity: owner}
	d.run(func(ctx context.Context) (event.CommandCompleted, error) {
		return ev, d.client.Update(ctx, model.Collection, itemID, backend.Fields{model.FieldCompleted: !completed})
	})
	return nil
}

func check(owner *model.Identity, itemID string) error {
	if owner == nil {
		return ErrNotSignedIn
	}
	if itemID == "" {
		return ErrMissingItem
	}
	return nil
}

// Wait blocks until every dispatched call has posted its result.
func (d *Dispatcher) Wait() { d.wg.Wait() }
