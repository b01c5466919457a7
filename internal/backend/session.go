package backend

import (
	"sync"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/idilsaglam/tada/internal/model"
)

// TokenStore persists the session token between runs.
type TokenStore interface {
	// LoadToken returns "" and no error when nothing is saved.
	LoadToken() (string, error)
	SaveToken(token string, expires *time.Time) error
	DeleteToken() error
}

// NopTokenStore keeps nothing.
type NopTokenStore struct{}

func (NopTokenStore) LoadToken() (string, error)         { return "", nil }
func (NopTokenStore) SaveToken(string, *time.Time) error { return nil }
func (NopTokenStore) DeleteToken() error                 { return nil }

// TokenExpiry reads the exp claim of a JWT without verifying it.
// Opaque tokens and tokens without exp yield nil.
func TokenExpiry(token string) *time.Time {
	parser := gojwt.NewParser()
	t, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return nil
	}
	exp, err := t.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	e := exp.Time
	return &e
}

// AuthState tracks the signed-in identity of a backend client and fans changes
// out to OnAuthStateChanged listeners. A session with an expiry is ended by a
// timer, which reports nil like a sign-out.
type AuthState struct {
	// deliver serializes fan-outs so listeners see transitions in order.
	deliver   sync.Mutex
	mu        sync.Mutex
	current   *model.Identity
	gen       uint64
	timer     *time.Timer
	listeners map[uint64]func(*model.Identity)
	nextID    uint64

	// Now is the clock used to compute the expiry delay. Defaults to time.Now.
	Now func() time.Time
}

// Current returns a copy of the signed-in identity, or nil.
func (s *AuthState) Current() *model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyIdentity(s.current)
}

// Set records a new session (or its end, with id nil) and notifies listeners.
func (s *AuthState) Set(id *model.Identity, expires *time.Time) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.current = copyIdentity(id)
	if id != nil && expires != nil {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		d := expires.Sub(now())
		if d < 0 {
			d = 0
		}
		s.timer = time.AfterFunc(d, func() { s.expire(gen) })
	}
	s.mu.Unlock()
	s.notify(gen, id)
}

func (s *AuthState) expire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.current == nil {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen = s.gen
	s.current = nil
	s.timer = nil
	s.mu.Unlock()
	s.notify(gen, nil)
}

// notify delivers the state recorded as gen unless a later transition has
// superseded it; that transition delivers its own state.
func (s *AuthState) notify(gen uint64, id *model.Identity) {
	s.deliver.Lock()
	defer s.deliver.Unlock()
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	fns := s.snapshotListeners()
	s.mu.Unlock()

	for _, fn := range fns {
		fn(copyIdentity(id))
	}
}

// Subscribe registers fn. It does not replay the current state.
func (s *AuthState) Subscribe(fn func(*model.Identity)) Unsubscribe {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[uint64]func(*model.Identity))
	}
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Stop cancels a pending expiry and drops every listener.
func (s *AuthState) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.listeners = nil
}

func (s *AuthState) snapshotListeners() []func(*model.Identity) {
	fns := make([]func(*model.Identity), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func copyIdentity(id *model.Identity) *model.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
