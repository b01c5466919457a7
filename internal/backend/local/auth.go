package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/idilsaglam/tada/internal/backend"
	"github.com/idilsaglam/tada/internal/model"
)

const minPasswordLen = 6

var (
	errBadCredentials = errors.New("invalid email or password")
	errEmailTaken     = errors.New("email already registered")
)

type sessionClaims struct {
	Email string `json:"email"`
	gojwt.RegisteredClaims
}

// SignUp registers an account and signs it in.
func (b *Backend) SignUp(ctx context.Context, email, password string) (model.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return model.Identity{}, &backend.AuthError{Op: "signup", Err: fmt.Errorf("invalid email %q", email)}
	}
	if len(password) < minPasswordLen {
		return model.Identity{}, &backend.AuthError{Op: "signup", Err: fmt.Errorf("password must be at least %d characters", minPasswordLen)}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.Identity{}, &backend.AuthError{Op: "signup", Err: err}
	}

	var u userRecord
	b.mu.Lock()
	err = b.txLocked(func() error {
		if err := b.fault(OpSignUp); err != nil {
			return err
		}
		if _, ok := b.data.Users[email]; ok {
			return errEmailTaken
		}
		u = userRecord{ID: "user:" + uuid.NewString(), Email: email, PasswordHash: string(hash)}
		b.data.Users[email] = u
		return nil
	})
	b.mu.Unlock()
	if err != nil {
		return model.Identity{}, &backend.AuthError{Op: "signup", Err: err}
	}
	return b.startSession(u)
}

// SignInWithCredentials checks email and password.
func (b *Backend) SignInWithCredentials(ctx context.Context, email, password string) (model.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, ok, err := b.lookup(email)
	if err != nil {
		return model.Identity{}, &backend.AuthError{Op: "signin", Err: err}
	}
	if !ok {
		return model.Identity{}, &backend.AuthError{Op: "signin", Err: errBadCredentials}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return model.Identity{}, &backend.AuthError{Op: "signin", Err: errBadCredentials}
	}
	return b.startSession(u)
}

// SignInWithProvider supports backend.ProviderSession only.
func (b *Backend) SignInWithProvider(ctx context.Context, provider string) (model.Identity, error) {
	if provider != backend.ProviderSession {
		return model.Identity{}, &backend.AuthError{Op: "signin", Err: fmt.Errorf("%w: %q", backend.ErrUnsupportedProvider, provider)}
	}
	token, err := b.tokens.LoadToken()
	if err != nil {
		return model.Identity{}, &backend.AuthError{Op: "signin", Err: err}
	}
	if token == "" {
		return model.Identity{}, &backend.AuthError{Op: "signin", Err: backend.ErrNoSession}
	}

	var claims sessionClaims
	_, err = gojwt.ParseWithClaims(token, &claims, func(t *gojwt.Token) (any, error) {
		return b.signingKey(), nil
	}, gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}), gojwt.WithTimeFunc(b.now))
	if err != nil {
		return model.Identity{}, &backend.AuthError{Op: "signin", Err: err}
	}

	u, ok, err := b.lookup(claims.Email)
	if err != nil {
		return model.Identity{}, &backend.AuthError{Op: "signin", Err: err}
	}
	if !ok || u.ID != claims.Subject {
		return model.Identity{}, &backend.AuthError{Op: "signin", Err: errors.New("account no longer exists")}
	}

	id := model.Identity{ID: u.ID, Email: u.Email}
	var exp *time.Time
	if claims.ExpiresAt != nil {
		e := claims.ExpiresAt.Time
		exp = &e
	}
	b.setSession(&id, exp)
	return id, nil
}

func (b *Backend) signingKey() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.key
}

// lookup finds an account, seeing sign-ups made by other processes.
func (b *Backend) lookup(email string) (userRecord, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fault(OpSignIn); err != nil {
		return userRecord{}, false, err
	}
	if _, err := b.refreshLocked(); err != nil {
		return userRecord{}, false, err
	}
	u, ok := b.data.Users[email]
	return u, ok, nil
}

// SignOut ends the session and forgets the saved token.
func (b *Backend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	err := b.fault(OpSignOut)
	b.mu.Unlock()
	if err != nil {
		return &backend.AuthError{Op: "signout", Err: err}
	}
	if err := b.tokens.DeleteToken(); err != nil {
		return &backend.AuthError{Op: "signout", Err: err}
	}
	b.setSession(nil, nil)
	return nil
}

// OnAuthStateChanged implements backend.Auth.
func (b *Backend) OnAuthStateChanged(fn func(*model.Identity)) backend.Unsubscribe {
	return b.auth.Subscribe(fn)
}

func (b *Backend) startSession(u userRecord) (model.Identity, error) {
	now := b.now()
	claims := sessionClaims{
		Email: u.Email,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:  u.ID,
			IssuedAt: gojwt.NewNumericDate(now),
		},
	}
	var exp *time.Time
	if b.tokenTTL > 0 {
		e := now.Add(b.tokenTTL)
		exp = &e
		claims.ExpiresAt = gojwt.NewNumericDate(e)
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(b.signingKey())
	if err != nil {
		return model.Identity{}, &backend.AuthError{Op: "signin", Err: err}
	}
	if err := b.tokens.SaveToken(token, exp); err != nil {
		return model.Identity{}, &backend.AuthError{Op: "signin", Err: err}
	}

	id := model.Identity{ID: u.ID, Email: u.Email}
	b.setSession(&id, exp)
	return id, nil
}

func (b *Backend) setSession(id *model.Identity, exp *time.Time) {
	b.mu.Lock()
	if id == nil {
		b.session = nil
	} else {
		c := *id
		b.session = &c
	}
	b.mu.Unlock()
	b.auth.Set(id, exp)
}
