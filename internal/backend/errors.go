package backend

import (
	"errors"
	"fmt"
)

// ErrNoSession is returned by ProviderSession when no token is persisted.
var ErrNoSession = errors.New("no saved session")

// ErrUnsupportedProvider is returned for unknown sign-in providers.
var ErrUnsupportedProvider = errors.New("unsupported sign-in provider")

// AuthError covers bad credentials, cancelled provider flows and expired sessions.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth %s: %v", e.Op, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// WriteError is a rejected add, update or delete.
type WriteError struct {
	Op         string
	Collection string
	ID         string
	Err        error
}

func (e *WriteError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
}
func (e *WriteError) Unwrap() error { return e.Err }

// SubscriptionError is a live query listener failure.
type SubscriptionError struct {
	Collection string
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscribe %s: %v", e.Collection, e.Err)
}
func (e *SubscriptionError) Unwrap() error { return e.Err }

// IsAuth reports whether err or anything it wraps is an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
