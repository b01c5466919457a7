// Package livelist keeps the signed-in user's items in sync with one live
// query on the backend.
package livelist

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/idilsaglam/tada/internal/backend"
	"github.com/idilsaglam/tada/internal/event"
	"github.com/idilsaglam/tada/internal/model"
)

// QueryFor is the live query of owner's items, newest first.
func QueryFor(owner string) backend.Query {
	return backend.Query{
		Collection: model.Collection,
		Filters:    []backend.Filter{{Field: model.FieldOwner, Value: owner}},
		OrderBy:    model.FieldCreatedAt,
		Descending: true,
	}
}

// Subscriber publishes the items of the current identity. Backend callbacks
// only push events; the published list changes in Apply, on the consumer.
type Subscriber struct {
	ctx   context.Context
	store backend.Store
	post  func(event.Event)
	log   zerolog.Logger

	owner  *model.Identity
	gen    uint64
	unsub  backend.Unsubscribe
	items  []model.Item
	loaded bool
}

// New returns a Subscriber with no identity. post must not block.
func New(ctx context.Context, store backend.Store, post func(event.Event), log zerolog.Logger) *Subscriber {
	return &Subscriber{ctx: ctx, store: store, post: post, log: log}
}

// Reset tears down the current subscription, publishes an empty list and, for
// a present identity, opens a new one.
func (s *Subscriber) Reset(id *model.Identity) error {
	s.teardown()
	if id == nil {
		s.owner = nil
		return nil
	}
	c := *id
	s.owner = &c
	return s.open()
}

// Refresh re-opens the subscription for the same identity.
func (s *Subscriber) Refresh() error {
	if s.owner == nil {
		return nil
	}
	s.teardown()
	return s.open()
}

func (s *Subscriber) open() error {
	gen := s.gen
	unsub, err := s.store.Subscribe(s.ctx, QueryFor(s.owner.ID), func(snap backend.Snapshot, err error) {
		if err != nil {
			s.post(event.SubscriptionFailed{Gen: gen, Err: err})
			return
		}
		s.post(event.SnapshotReceived{Gen: gen, Snapshot: snap})
	})
	if err != nil {
		return err
	}
	s.unsub = unsub
	s.log.Debug().Uint64("gen", gen).Str("owner", s.owner.ID).Msg("subscribed")
	return nil
}

// teardown closes the active subscription, if any, and bumps the generation so
// that anything it already queued is ignored.
func (s *Subscriber) teardown() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
		s.log.Debug().Uint64("gen", s.gen).Msg("unsubscribed")
	}
	s.gen++
	s.items = nil
	s.loaded = false
}

// Current reports whether gen belongs to the open subscription.
func (s *Subscriber) Current(gen uint64) bool {
	return s.unsub != nil && gen == s.gen
}

// Generation identifies the open subscription in SnapshotReceived and
// SubscriptionFailed events.
func (s *Subscriber) Generation() uint64 { return s.gen }

// Apply replaces the list with ev's snapshot and reports whether it did.
// Snapshots of closed subscriptions are dropped.
func (s *Subscriber) Apply(ev event.SnapshotReceived) bool {
	if !s.Current(ev.Gen) {
		return false
	}
	items := make([]model.Item, 0, len(ev.Snapshot))
	for _, doc := range ev.Snapshot {
		it, err := model.ItemFromFields(doc.ID, doc.Fields)
		if err != nil {
			s.log.Warn().Err(err).Str("id", doc.ID).Msg("skipping malformed document")
			continue
		}
		items = append(items, it)
	}
	s.items = items
	s.loaded = true
	return true
}

// Items is the published list in backend order. Callers must not modify it.
func (s *Subscriber) Items() []model.Item { return s.items }

// Loaded reports whether a snapshot arrived since the last reset. Without an
// identity the empty list counts as loaded.
func (s *Subscriber) Loaded() bool { return s.owner == nil || s.loaded }

// Active reports whether a subscription is open.
func (s *Subscriber) Active() bool { return s.unsub != nil }

// Close tears down the subscription.
func (s *Subscriber) Close() {
	s.teardown()
	s.owner = nil
}
