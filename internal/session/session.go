// Package session holds the identity the client is currently signed in as.
package session

import (
	"github.com/idilsaglam/tada/internal/model"
)

// Holder is owned by the event consumer and is not safe for concurrent use.
type Holder struct {
	current   *model.Identity
	stale     error
	listeners []*listener
}

type listener struct {
	fn func(*model.Identity)
}

// Current returns a copy of the identity, or nil when signed out.
func (h *Holder) Current() *model.Identity {
	if h.current == nil {
		return nil
	}
	c := *h.current
	return &c
}

// SignedIn reports whether an identity is present.
func (h *Holder) SignedIn() bool { return h.current != nil }

// Set moves to id and reports whether that was a transition. Setting the same
// principal again changes nothing and notifies no one. A transition clears the
// stale flag.
func (h *Holder) Set(id *model.Identity) bool {
	if model.SameIdentity(h.current, id) {
		if id != nil && h.current != nil {
			h.current.Email = id.Email
		}
		return false
	}
	if id == nil {
		h.current = nil
	} else {
		c := *id
		h.current = &c
	}
	h.stale = nil
	for _, l := range append([]*listener(nil), h.listeners...) {
		l.fn(h.Current())
	}
	return true
}

// OnChange registers fn for every transition. The returned func removes it.
func (h *Holder) OnChange(fn func(*model.Identity)) func() {
	l := &listener{fn: fn}
	h.listeners = append(h.listeners, l)
	return func() {
		for i, x := range h.listeners {
			if x == l {
				h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
				return
			}
		}
	}
}

// MarkStale records that the backend may no longer honour the current session,
// e.g. after a failed sign-out. The identity itself is left unchanged.
func (h *Holder) MarkStale(cause error) {
	if h.current != nil {
		h.stale = cause
	}
}

// Stale returns the cause recorded by MarkStale, or nil.
func (h *Holder) Stale() error { return h.stale }
