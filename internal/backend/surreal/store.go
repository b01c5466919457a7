package surreal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/idilsaglam/tada/internal/backend"
)

var errLiveClosed = errors.New("live query closed by server")

// liveQuery is one LIVE SELECT plus the ordered SELECT it re-runs.
type liveQuery struct {
	c    *Client
	q    backend.Query
	sql  string
	vars map[string]any
	h    backend.SnapshotHandler

	mu      sync.Mutex
	liveID  string
	stopped bool
	done    chan struct{}
	once    sync.Once
}

// Subscribe starts a live query on q.Collection. Opening happens in the
// background; failures reach h as a SubscriptionError.
func (c *Client) Subscribe(ctx context.Context, q backend.Query, h backend.SnapshotHandler) (backend.Unsubscribe, error) {
	sql, vars, err := buildSelect(q)
	if err != nil {
		return nil, err
	}
	lq := &liveQuery{c: c, q: q, sql: sql, vars: vars, h: h, done: make(chan struct{})}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, &backend.SubscriptionError{Collection: q.Collection, Err: errors.New("client closed")}
	}
	c.subs[lq] = struct{}{}
	c.mu.Unlock()

	go lq.run(ctx)
	return lq.stop, nil
}

func (lq *liveQuery) run(ctx context.Context) {
	log := lq.c.log.With().Str("collection", lq.q.Collection).Logger()

	live, err := surrealdb.Live(ctx, lq.c.db, models.Table(lq.q.Collection), false)
	if err != nil {
		lq.fail(classify("live", err))
		return
	}
	id := live.String()

	lq.mu.Lock()
	lq.liveID = id
	stopped := lq.stopped
	lq.mu.Unlock()
	if stopped {
		lq.kill(id)
		return
	}

	notifications, err := lq.c.db.LiveNotifications(id)
	if err != nil {
		lq.fail(err)
		return
	}
	log.Debug().Str("live_id", id).Msg("live query started")

	lq.refresh(ctx)
	for {
		select {
		case <-lq.done:
			return
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				lq.fail(errLiveClosed)
				return
			}
			log.Debug().Str("action", string(n.Action)).Msg("live notification")
			lq.refresh(ctx)
		}
	}
}

// refresh re-runs the ordered SELECT and delivers the result as a snapshot.
func (lq *liveQuery) refresh(ctx context.Context) {
	res, err := surrealdb.Query[[]map[string]any](ctx, lq.c.db, lq.sql, lq.vars)
	if err != nil {
		lq.fail(classify("select", err))
		return
	}
	snap := backend.Snapshot{}
	if res != nil && len(*res) > 0 {
		for _, row := range (*res)[0].Result {
			doc, err := toDocument(row)
			if err != nil {
				lq.fail(err)
				return
			}
			snap = append(snap, doc)
		}
	}
	lq.deliver(snap, nil)
}

func (lq *liveQuery) fail(err error) {
	lq.deliver(nil, &backend.SubscriptionError{Collection: lq.q.Collection, Err: err})
}

func (lq *liveQuery) deliver(snap backend.Snapshot, err error) {
	lq.mu.Lock()
	defer lq.mu.Unlock()
	if lq.stopped {
		return
	}
	lq.h(snap, err)
}

func (lq *liveQuery) stop() {
	lq.once.Do(func() {
		lq.mu.Lock()
		lq.stopped = true
		id := lq.liveID
		close(lq.done)
		lq.mu.Unlock()

		lq.c.mu.Lock()
		delete(lq.c.subs, lq)
		lq.c.mu.Unlock()

		if id != "" {
			lq.kill(id)
		}
	})
}

func (lq *liveQuery) kill(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), lq.c.timeout)
	defer cancel()
	if err := surrealdb.Kill(ctx, lq.c.db, id); err != nil {
		lq.c.log.Warn().Err(err).Str("live_id", id).Msg("kill live query")
	}
}

// Add creates a record; created_at is filled by the schema.
func (c *Client) Add(ctx context.Context, collection string, fields backend.Fields) (string, error) {
	if err := checkIdent("table", collection); err != nil {
		return "", &backend.WriteError{Op: "add", Collection: collection, Err: err}
	}
	rec, err := surrealdb.Create[map[string]any](ctx, c.db, models.Table(collection), writeFields(fields))
	if err != nil {
		return "", &backend.WriteError{Op: "add", Collection: collection, Err: classify("add", err)}
	}
	if rec == nil {
		return "", &backend.WriteError{Op: "add", Collection: collection, Err: errors.New("no record returned")}
	}
	doc, err := toDocument(*rec)
	if err != nil {
		return "", &backend.WriteError{Op: "add", Collection: collection, Err: err}
	}
	return doc.ID, nil
}

// Update merges fields into collection:id.
func (c *Client) Update(ctx context.Context, collection, id string, fields backend.Fields) error {
	if err := checkIdent("table", collection); err != nil {
		return &backend.WriteError{Op: "update", Collection: collection, ID: id, Err: err}
	}
	rec, err := surrealdb.Merge[map[string]any](ctx, c.db, models.NewRecordID(collection, id), writeFields(fields))
	if err != nil {
		return &backend.WriteError{Op: "update", Collection: collection, ID: id, Err: classify("update", err)}
	}
	if rec == nil {
		// MERGE on a record the session cannot see returns nothing.
		return &backend.WriteError{Op: "update", Collection: collection, ID: id, Err: fmt.Errorf("record not found")}
	}
	return nil
}

// Delete removes collection:id.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	if err := checkIdent("table", collection); err != nil {
		return &backend.WriteError{Op: "delete", Collection: collection, ID: id, Err: err}
	}
	if _, err := surrealdb.Delete[map[string]any](ctx, c.db, models.NewRecordID(collection, id)); err != nil {
		return &backend.WriteError{Op: "delete", Collection: collection, ID: id, Err: classify("delete", err)}
	}
	return nil
}
