// Package local is an in-process backend: accounts, session tokens, a document
// store and live queries, optionally persisted to a JSON file that separate
// processes share. It backs the "local" backend type and is the collaborator used by
// tests of every other package.
package local

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/idilsaglam/tada/internal/backend"
	"github.com/idilsaglam/tada/internal/model"
)

// DefaultTokenTTL is the lifetime of issued session tokens.
const DefaultTokenTTL = 12 * time.Hour

// DefaultPollInterval is how often an opened file is checked for writes made
// by other processes while live queries are open.
const DefaultPollInterval = 500 * time.Millisecond

// Op names an operation for error injection.
type Op string

const (
	OpSignIn  Op = "signin"
	OpSignUp  Op = "signup"
	OpSignOut Op = "signout"
	OpAdd     Op = "add"
	OpUpdate  Op = "update"
	OpDelete  Op = "delete"
)

// Backend implements backend.Client in memory. Safe for concurrent use.
type Backend struct {
	mu      sync.Mutex
	path    string
	seen    stamp
	data    *dataFile
	key     []byte
	session *model.Identity
	subs    map[uint64]*subscription
	nextSub uint64
	faults  map[Op]error
	writes  int
	closed  bool

	auth     backend.AuthState
	tokens   backend.TokenStore
	now      func() time.Time
	entropy  io.Reader
	tokenTTL time.Duration
	poll     time.Duration
	stop     chan struct{}
}

// Option configures a Backend.
type Option func(*Backend)

// WithClock sets the clock used for server timestamps and token expiry.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// WithTokenStore persists session tokens across runs.
func WithTokenStore(ts backend.TokenStore) Option {
	return func(b *Backend) { b.tokens = ts }
}

// WithTokenTTL overrides DefaultTokenTTL. Zero disables expiry.
func WithTokenTTL(d time.Duration) Option {
	return func(b *Backend) { b.tokenTTL = d }
}

// WithPollInterval overrides DefaultPollInterval for Open. Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(b *Backend) { b.poll = d }
}

// New returns an empty, unpersisted backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		data:     &dataFile{},
		subs:     make(map[uint64]*subscription),
		faults:   make(map[Op]error),
		tokens:   backend.NopTokenStore{},
		now:      time.Now,
		entropy:  ulid.Monotonic(rand.Reader, 0),
		tokenTTL: DefaultTokenTTL,
		poll:     DefaultPollInterval,
	}
	for _, o := range opts {
		o(b)
	}
	b.auth.Now = b.now
	b.init()
	// The server-side session follows the last delivered transition, so an
	// expiry racing a sign-in cannot leave the two disagreeing.
	b.auth.Subscribe(func(id *model.Identity) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if id == nil {
			b.session = nil
			return
		}
		c := *id
		b.session = &c
	})
	return b
}

// Open loads (or creates) the JSON data file at path. Writes go straight to
// the file; writes by other processes reach live queries within the poll
// interval.
func Open(path string, opts ...Option) (*Backend, error) {
	b := New(opts...)
	b.mu.Lock()
	b.path = path
	err := withLock(path, func() error {
		df, err := load(path)
		if err != nil {
			return err
		}
		if df.Key == "" {
			df.Key = b.data.Key
			if err := save(path, df); err != nil {
				return err
			}
		}
		return b.reloadLocked()
	})
	b.mu.Unlock()
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("open local backend: %w", err)
	}
	if b.poll > 0 {
		b.stop = make(chan struct{})
		go b.watch(b.stop, b.poll)
	}
	return b, nil
}

func (b *Backend) init() {
	if b.data.Users == nil {
		b.data.Users = make(map[string]userRecord)
	}
	if b.data.Docs == nil {
		b.data.Docs = make(map[string]map[string]map[string]any)
	}
	if b.data.Key == "" {
		k := make([]byte, 32)
		if _, err := rand.Read(k); err != nil {
			panic(fmt.Sprintf("local: signing key: %v", err))
		}
		b.data.Key = base64.StdEncoding.EncodeToString(k)
	}
	key, err := base64.StdEncoding.DecodeString(b.data.Key)
	if err != nil {
		panic(fmt.Sprintf("local: corrupt signing key: %v", err))
	}
	b.key = key
}

// Close stops every live query, auth listener and the file watcher.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = map[uint64]*subscription{}
	if b.stop != nil {
		close(b.stop)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	b.auth.Stop()
	return nil
}

// Fail makes the next call of op return err.
func (b *Backend) Fail(op Op, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults[op] = err
}

// Writes counts successful document writes.
func (b *Backend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

// ActiveSubscriptions counts open live queries.
func (b *Backend) ActiveSubscriptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Invalidate ends the session server-side, as an expired or revoked token would.
func (b *Backend) Invalidate() {
	b.mu.Lock()
	b.session = nil
	b.mu.Unlock()
	b.auth.Set(nil, nil)
}

func (b *Backend) fault(op Op) error {
	err := b.faults[op]
	delete(b.faults, op)
	return err
}

var _ backend.Client = (*Backend)(nil)
