// Package backend defines the contract between the client and the managed
// backend: auth, a document store with live queries, and the client object that
// bundles them. Implementations live in sub-packages (local, surreal); the
// factory package picks one from configuration.
package backend

import (
	"context"

	"github.com/idilsaglam/tada/internal/model"
)

// Provider names accepted by Auth.SignInWithProvider.
const (
	// ProviderSession re-authenticates from the persisted session token.
	ProviderSession = "session"
)

// Unsubscribe cancels a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

// Fields is a partial or complete document body keyed by field name.
type Fields map[string]any

// serverTimestamp is the type of ServerTimestamp.
type serverTimestamp struct{}

// ServerTimestamp asks the backend to fill the field with its own clock at write time.
var ServerTimestamp = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Filter is an equality condition on one field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents of one collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
}

// Document is one record of a snapshot.
type Document struct {
	ID     string
	Fields Fields
}

// Snapshot is the complete, ordered result of a live query at one point in time.
type Snapshot []Document

// SnapshotHandler receives live query output. Exactly one of snap and err is set.
// Handlers may be called from any goroutine and must not block.
type SnapshotHandler func(snap Snapshot, err error)

// Auth is the backend's authentication subsystem.
type Auth interface {
	SignInWithCredentials(ctx context.Context, email, password string) (model.Identity, error)
	SignInWithProvider(ctx context.Context, provider string) (model.Identity, error)
	SignUp(ctx context.Context, email, password string) (model.Identity, error)
	SignOut(ctx context.Context) error
	// OnAuthStateChanged registers fn for every sign-in, sign-out and expiry.
	// fn receives nil when the session ends.
	OnAuthStateChanged(fn func(*model.Identity)) Unsubscribe
}

// Store is the backend's document database.
type Store interface {
	// Subscribe opens a live query. The first snapshot and every later one are
	// delivered to h until the returned Unsubscribe is called; no call to h starts
	// after Unsubscribe returns. Failures found while opening are either returned
	// or, when the listener is opened asynchronously, delivered to h as a
	// SubscriptionError.
	Subscribe(ctx context.Context, q Query, h SnapshotHandler) (Unsubscribe, error)
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
}

// Client bundles Auth and Store with one lifecycle.
type Client interface {
	Auth
	Store
	Close() error
}
