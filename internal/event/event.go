// Package event carries everything that changes client state, from backend
// callbacks and finished commands, to the single goroutine that applies it.
package event

import (
	"github.com/idilsaglam/tada/internal/backend"
	"github.com/idilsaglam/tada/internal/model"
)

// Op names a user command.
type Op string

const (
	OpSignIn  Op = "signin"
	OpSignUp  Op = "signup"
	OpResume  Op = "resume"
	OpSignOut Op = "signout"
	OpAdd     Op = "add"
	OpSave    Op = "save"
	OpDelete  Op = "delete"
	OpToggle  Op = "toggle"
)

// Event is one of the types below.
type Event interface {
	isEvent()
}

// IdentityChanged is pushed by the backend's auth listener.
// Identity is nil when the session ended.
type IdentityChanged struct {
	Identity *model.Identity
}

// SnapshotReceived is a live query result. Gen identifies the subscription
// that produced it.
type SnapshotReceived struct {
	Gen      uint64
	Snapshot backend.Snapshot
}

// SubscriptionFailed reports a live query listener failure.
type SubscriptionFailed struct {
	Gen uint64
	Err error
}

// CommandCompleted is the outcome of one dispatched command.
type CommandCompleted struct {
	Op     Op
	ItemID string
	// Title is the submitted title for add and save.
	Title string
	// Identity is the session the command ran under, or the new one for sign-in.
	Identity *model.Identity
	Err      error
}

func (IdentityChanged) isEvent()    {}
func (SnapshotReceived) isEvent()   {}
func (SubscriptionFailed) isEvent() {}
func (CommandCompleted) isEvent()   {}
