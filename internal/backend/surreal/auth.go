package surreal

import (
	"context"
	"errors"
	"fmt"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/idilsaglam/tada/internal/backend"
	"github.com/idilsaglam/tada/internal/model"
)

type authRecord struct {
	ID    models.RecordID `json:"id"`
	Email string          `json:"email"`
}

func (c *Client) accessVars(email, password string) map[string]any {
	return map[string]any{
		"NS":       c.cfg.Namespace,
		"DB":       c.cfg.Database,
		"AC":       c.cfg.Access,
		"email":    email,
		"password": password,
	}
}

// SignUp runs the access method's SIGNUP clause and starts the session.
func (c *Client) SignUp(ctx context.Context, email, password string) (model.Identity, error) {
	token, err := c.db.SignUp(ctx, c.accessVars(email, password))
	if err != nil {
		return model.Identity{}, &backend.AuthError{Op: "signup", Err: err}
	}
	return c.startSession(ctx, "signup", token)
}

// SignInWithCredentials runs the access method's SIGNIN clause.
func (c *Client) SignInWithCredentials(ctx context.Context, email, password string) (model.Identity, error) {
	token, err := c.db.SignIn(ctx, c.accessVars(email, password))
	if err != nil {
		return model.Identity{}, &backend.AuthError{Op: "signin", Err: err}
	}
	return c.startSession(ctx, "signin", token)
}

// SignInWithProvider supports backend.ProviderSession: it authenticates the
// connection with the saved token.
func (c *Client) SignInWithProvider(ctx context.Context, provider string) (model.Identity, error) {
	if provider != backend.ProviderSession {
		return model.Identity{}, &backend.AuthError{Op: "signin", Err: fmt.Errorf("%w: %q", backend.ErrUnsupportedProvider, provider)}
	}
	token, err := c.tokens.LoadToken()
	if err != nil {
		return model.Identity{}, &backend.AuthError{Op: "signin", Err: err}
	}
	if token == "" {
		return model.Identity{}, &backend.AuthError{Op: "signin", Err: backend.ErrNoSession}
	}
	if err := c.db.Authenticate(ctx, token); err != nil {
		return model.Identity{}, &backend.AuthError{Op: "signin", Err: err}
	}
	id, err := c.whoami(ctx)
	if err != nil {
		return model.Identity{}, &backend.AuthError{Op: "signin", Err: err}
	}
	c.auth.Set(&id, backend.TokenExpiry(token))
	return id, nil
}

// SignOut invalidates the connection's session and forgets the saved token.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.db.Invalidate(ctx); err != nil {
		return &backend.AuthError{Op: "signout", Err: err}
	}
	if err := c.tokens.DeleteToken(); err != nil {
		return &backend.AuthError{Op: "signout", Err: err}
	}
	c.auth.Set(nil, nil)
	return nil
}

// OnAuthStateChanged implements backend.Auth.
func (c *Client) OnAuthStateChanged(fn func(*model.Identity)) backend.Unsubscribe {
	return c.auth.Subscribe(fn)
}

func (c *Client) startSession(ctx context.Context, op, token string) (model.Identity, error) {
	id, err := c.whoami(ctx)
	if err != nil {
		return model.Identity{}, &backend.AuthError{Op: op, Err: err}
	}
	exp := backend.TokenExpiry(token)
	if err := c.tokens.SaveToken(token, exp); err != nil {
		return model.Identity{}, &backend.AuthError{Op: op, Err: err}
	}
	c.auth.Set(&id, exp)
	return id, nil
}

// whoami reads the record behind $auth.
func (c *Client) whoami(ctx context.Context) (model.Identity, error) {
	res, err := surrealdb.Query[[]authRecord](ctx, c.db, "SELECT id, email FROM $auth", nil)
	if err != nil {
		return model.Identity{}, err
	}
	if res == nil || len(*res) == 0 || len((*res)[0].Result) == 0 {
		return model.Identity{}, errors.New("session has no record user")
	}
	rec := (*res)[0].Result[0]
	return model.Identity{
		ID:    fmt.Sprintf("%s:%v", rec.ID.Table, rec.ID.ID),
		Email: rec.Email,
	}, nil
}
