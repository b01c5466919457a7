package local

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/idilsaglam/tada/internal/backend"
	"github.com/idilsaglam/tada/internal/model"
)

var (
	errNotSignedIn      = errors.New("not signed in")
	errPermissionDenied = errors.New("permission denied")
	errNotFound         = errors.New("document not found")
	errClosed           = errors.New("backend closed")
)

// subscription delivers the latest snapshot of one live query on its own
// goroutine. Snapshots are total, so an undelivered one is simply replaced.
type subscription struct {
	q backend.Query
	h backend.SnapshotHandler

	mu      sync.Mutex
	latest  backend.Snapshot
	pending bool
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func newSubscription(q backend.Query, h backend.SnapshotHandler) *subscription {
	return &subscription{
		q:    q,
		h:    h,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (s *subscription) offer(snap backend.Snapshot) {
	s.mu.Lock()
	s.latest = snap
	s.pending = true
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		// Delivery holds mu so stop() waits for an in-flight handler.
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		if s.pending {
			snap := s.latest
			s.pending = false
			s.h(snap, nil)
		}
		s.mu.Unlock()
	}
}

// stop must not be called from inside the handler.
func (s *subscription) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.done)
}

// Subscribe opens a live query. The caller must be signed in, and the query
// must filter on the session's own user_id.
func (b *Backend) Subscribe(ctx context.Context, q backend.Query, h backend.SnapshotHandler) (backend.Unsubscribe, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("subscribe: empty collection")
	}
	if h == nil {
		return nil, fmt.Errorf("subscribe: nil handler")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	serr := func(err error) error {
		return &backend.SubscriptionError{Collection: q.Collection, Err: err}
	}
	if b.closed {
		return nil, serr(errClosed)
	}
	if b.session == nil {
		return nil, serr(&backend.AuthError{Op: "subscribe", Err: errNotSignedIn})
	}
	if !ownedBy(q, b.session.ID) {
		return nil, serr(&backend.AuthError{Op: "subscribe", Err: errPermissionDenied})
	}
	if _, err := b.refreshLocked(); err != nil {
		return nil, serr(err)
	}

	s := newSubscription(q, h)
	b.nextSub++
	id := b.nextSub
	b.subs[id] = s
	go s.run()
	s.offer(b.snapshotLocked(q))

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			s.stop()
		})
	}, nil
}

// ownedBy reports whether q is restricted to owner's documents.
func ownedBy(q backend.Query, owner string) bool {
	for _, f := range q.Filters {
		if f.Field == model.FieldOwner && f.Value == owner {
			return true
		}
	}
	return false
}

// Add creates a document owned by the session and returns its id.
func (b *Backend) Add(ctx context.Context, collection string, fields backend.Fields) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var id string
	err := b.txLocked(func() error {
		if err := b.checkWriteLocked(OpAdd, collection, ""); err != nil {
			return err
		}
		if owner, ok := fields[model.FieldOwner]; ok && owner != b.session.ID {
			return errPermissionDenied
		}
		now := b.now()
		id = ulid.MustNew(ulid.Timestamp(now), b.entropy).String()
		doc := make(map[string]any, len(fields))
		for k, v := range fields {
			if backend.IsServerTimestamp(v) {
				v = now
			}
			doc[k] = v
		}
		if b.data.Docs[collection] == nil {
			b.data.Docs[collection] = make(map[string]map[string]any)
		}
		b.data.Docs[collection][id] = doc
		return nil
	})
	if err != nil {
		return "", writeErr(OpAdd, collection, id, err)
	}
	b.commitLocked(collection)
	return id, nil
}

// Update merges fields into an existing document.
func (b *Backend) Update(ctx context.Context, collection, id string, fields backend.Fields) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.txLocked(func() error {
		if err := b.checkWriteLocked(OpUpdate, collection, id); err != nil {
			return err
		}
		if _, ok := fields[model.FieldOwner]; ok {
			return errPermissionDenied
		}
		doc := b.data.Docs[collection][id]
		now := b.now()
		for k, v := range fields {
			if backend.IsServerTimestamp(v) {
				v = now
			}
			doc[k] = v
		}
		return nil
	})
	if err != nil {
		return writeErr(OpUpdate, collection, id, err)
	}
	b.commitLocked(collection)
	return nil
}

// Delete removes a document.
func (b *Backend) Delete(ctx context.Context, collection, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.txLocked(func() error {
		if err := b.checkWriteLocked(OpDelete, collection, id); err != nil {
			return err
		}
		delete(b.data.Docs[collection], id)
		return nil
	})
	if err != nil {
		return writeErr(OpDelete, collection, id, err)
	}
	b.commitLocked(collection)
	return nil
}

func writeErr(op Op, collection, id string, err error) error {
	var we *backend.WriteError
	if errors.As(err, &we) {
		return err
	}
	return &backend.WriteError{Op: string(op), Collection: collection, ID: id, Err: err}
}

// checkWriteLocked applies injected faults, session and ownership rules.
// id is empty for creates.
func (b *Backend) checkWriteLocked(op Op, collection, id string) error {
	werr := func(err error) error {
		return &backend.WriteError{Op: string(op), Collection: collection, ID: id, Err: err}
	}
	if b.closed {
		return werr(errClosed)
	}
	if err := b.fault(op); err != nil {
		return werr(err)
	}
	if b.session == nil {
		return werr(&backend.AuthError{Op: string(op), Err: errNotSignedIn})
	}
	if id == "" {
		return nil
	}
	doc, ok := b.data.Docs[collection][id]
	if !ok {
		return werr(errNotFound)
	}
	if owner, _ := doc[model.FieldOwner].(string); owner != "" && owner != b.session.ID {
		return werr(errPermissionDenied)
	}
	return nil
}

// commitLocked counts a write and fans out fresh snapshots.
func (b *Backend) commitLocked(collection string) {
	b.writes++
	b.fanOutLocked(collection)
}

// fanOutLocked offers every query on collection (all queries if empty) a new snapshot.
func (b *Backend) fanOutLocked(collection string) {
	for _, s := range b.subs {
		if collection == "" || s.q.Collection == collection {
			s.offer(b.snapshotLocked(s.q))
		}
	}
}

func (b *Backend) snapshotLocked(q backend.Query) backend.Snapshot {
	docs := b.data.Docs[q.Collection]
	snap := make(backend.Snapshot, 0, len(docs))
	for id, fields := range docs {
		if !matches(fields, q.Filters) {
			continue
		}
		cp := make(backend.Fields, len(fields))
		for k, v := range fields {
			cp[k] = v
		}
		snap = append(snap, backend.Document{ID: id, Fields: cp})
	}
	sort.SliceStable(snap, func(i, j int) bool {
		c := 0
		if q.OrderBy != "" {
			c = compare(snap[i].Fields[q.OrderBy], snap[j].Fields[q.OrderBy])
		}
		if c == 0 {
			// ULIDs sort by creation.
			c = strings.Compare(snap[i].ID, snap[j].ID)
		}
		if q.Descending {
			return c > 0
		}
		return c < 0
	})
	return snap
}

func matches(fields map[string]any, filters []backend.Filter) bool {
	for _, f := range filters {
		if compare(fields[f.Field], f.Value) != 0 {
			return false
		}
	}
	return true
}

// compare orders values of the same kind; mismatched kinds order by kind name.
func compare(a, b any) int {
	switch x := a.(type) {
	case nil:
		if b == nil {
			return 0
		}
		return -1
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	}
	if b == nil {
		return 1
	}
	return strings.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b))
}
