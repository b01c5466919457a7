// Package surreal implements backend.Client on SurrealDB: record-access auth,
// documents in a schemafull table with per-owner permissions, and live queries
// that re-run the ordered SELECT on every notification so handlers always get a
// total snapshot.
package surreal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	surrealdb "github.com/surrealdb/surrealdb.go"

	"github.com/idilsaglam/tada/internal/backend"
)

// Config selects the server, namespace, database and record access method.
type Config struct {
	Endpoint  string
	Namespace string
	Database  string
	Access    string
}

// Client is a backend.Client over one SurrealDB connection.
type Client struct {
	db     *surrealdb.DB
	cfg    Config
	auth   backend.AuthState
	tokens backend.TokenStore
	log    zerolog.Logger

	mu      sync.Mutex
	subs    map[*liveQuery]struct{}
	closed  bool
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTokenStore persists session tokens across runs.
func WithTokenStore(ts backend.TokenStore) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the logger for background live query work.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithKillTimeout bounds how long unsubscribing waits for the server.
func WithKillTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Connect dials cfg.Endpoint and selects the namespace and database.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if err := checkIdent("access", cfg.Access); err != nil {
		return nil, err
	}
	db, err := surrealdb.FromEndpointURLString(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Endpoint, err)
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}
	c := &Client{
		db:      db,
		cfg:     cfg,
		tokens:  backend.NopTokenStore{},
		log:     zerolog.Nop(),
		subs:    make(map[*liveQuery]struct{}),
		timeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Close kills every live query and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := make([]*liveQuery, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	c.auth.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.db.Close(ctx)
}

var _ backend.Client = (*Client)(nil)
