package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/tada/internal/backend"
	"github.com/idilsaglam/tada/internal/model"
)

var ctx = context.Background()

type memTokens struct {
	mu      sync.Mutex
	token   string
	expires *time.Time
}

func (m *memTokens) LoadToken() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *memTokens) SaveToken(token string, expires *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.expires = token, expires
	return nil
}

func (m *memTokens) DeleteToken() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.expires = "", nil
	return nil
}

// snapshots collects handler calls.
type snapshots struct {
	ch chan backend.Snapshot
}

func newSnapshots() *snapshots {
	return &snapshots{ch: make(chan backend.Snapshot, 64)}
}

func (s *snapshots) handle(snap backend.Snapshot, err error) {
	if err == nil {
		s.ch <- snap
	}
}

// next waits for a snapshot satisfying ok.
func (s *snapshots) next(t *testing.T, ok func(backend.Snapshot) bool) backend.Snapshot {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case snap := <-s.ch:
			if ok(snap) {
				return snap
			}
		case <-timeout:
			t.Fatal("no matching snapshot")
			return nil
		}
	}
}

func size(n int) func(backend.Snapshot) bool {
	return func(s backend.Snapshot) bool { return len(s) == n }
}

func ownerQuery(owner string) backend.Query {
	return backend.Query{
		Collection: model.Collection,
		Filters:    []backend.Filter{{Field: model.FieldOwner, Value: owner}},
		OrderBy:    model.FieldCreatedAt,
		Descending: true,
	}
}

func newBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	b := New(opts...)
	t.Cleanup(func() { b.Close() })
	return b
}

func addItem(t *testing.T, b *Backend, owner, title string) string {
	t.Helper()
	id, err := b.Add(ctx, model.Collection, backend.Fields{
		model.FieldTitle:     title,
		model.FieldCompleted: false,
		model.FieldOwner:     owner,
		model.FieldCreatedAt: backend.ServerTimestamp,
	})
	require.NoError(t, err)
	return id
}

func TestSignUpSignIn(t *testing.T) {
	tokens := &memTokens{}
	b := newBackend(t, WithTokenStore(tokens))

	id, err := b.SignUp(ctx, " A@Example.com ", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", id.Email)
	assert.Regexp(t, `^user:`, id.ID)
	assert.NotEmpty(t, tokens.token)
	require.NotNil(t, tokens.expires)
	assert.Equal(t, id.ID, b.auth.Current().ID)

	_, err = b.SignUp(ctx, "a@example.com", "secret-pass")
	assert.True(t, backend.IsAuth(err))
	assert.ErrorIs(t, err, errEmailTaken)

	again, err := b.SignInWithCredentials(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	_, err = b.SignInWithCredentials(ctx, "a@example.com", "nope-nope")
	assert.ErrorIs(t, err, errBadCredentials)
	_, err = b.SignInWithCredentials(ctx, "b@example.com", "secret-pass")
	assert.ErrorIs(t, err, errBadCredentials)
}

func TestSignUpValidation(t *testing.T) {
	b := newBackend(t)
	tests := []struct {
		name, email, password string
	}{
		{"empty email", "", "secret-pass"},
		{"no at sign", "example.com", "secret-pass"},
		{"short password", "a@example.com", "123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.SignUp(ctx, tt.email, tt.password)
			require.Error(t, err)
			assert.True(t, backend.IsAuth(err))
		})
	}
}

func TestAuthStateChanges(t *testing.T) {
	b := newBackend(t)
	var mu sync.Mutex
	var seen []*model.Identity
	unsub := b.OnAuthStateChanged(func(id *model.Identity) {
		mu.Lock()
		seen = append(seen, id)
		mu.Unlock()
	})

	id, err := b.SignUp(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)
	require.NoError(t, b.SignOut(ctx))
	unsub()
	_, err = b.SignInWithCredentials(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, &id, seen[0])
	assert.Nil(t, seen[1])
}

func TestResumeFromToken(t *testing.T) {
	tokens := &memTokens{}
	b := newBackend(t, WithTokenStore(tokens))

	_, err := b.SignInWithProvider(ctx, backend.ProviderSession)
	assert.ErrorIs(t, err, backend.ErrNoSession)

	id, err := b.SignUp(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)

	resumed, err := b.SignInWithProvider(ctx, backend.ProviderSession)
	require.NoError(t, err)
	assert.Equal(t, id, resumed)

	_, err = b.SignInWithProvider(ctx, "github")
	assert.ErrorIs(t, err, backend.ErrUnsupportedProvider)

	require.NoError(t, b.SignOut(ctx))
	assert.Empty(t, tokens.token)
	_, err = b.SignInWithProvider(ctx, backend.ProviderSession)
	assert.ErrorIs(t, err, backend.ErrNoSession)
}

func TestResumeExpiredToken(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	tokens := &memTokens{}
	b := newBackend(t, WithTokenStore(tokens), WithClock(clock), WithTokenTTL(time.Hour))

	_, err := b.SignUp(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()
	_, err = b.SignInWithProvider(ctx, backend.ProviderSession)
	require.Error(t, err)
	assert.True(t, backend.IsAuth(err))
}

func TestTokenExpiryEndsSession(t *testing.T) {
	b := newBackend(t, WithTokenTTL(50*time.Millisecond))
	ended := make(chan struct{})
	b.OnAuthStateChanged(func(id *model.Identity) {
		if id == nil {
			close(ended)
		}
	})
	_, err := b.SignUp(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not expire")
	}
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.session == nil
	}, time.Second, 5*time.Millisecond)
	_, err = b.Add(ctx, model.Collection, backend.Fields{model.FieldTitle: "x"})
	assert.True(t, backend.IsAuth(err))
}

func TestSubscribeRequiresSession(t *testing.T) {
	b := newBackend(t)
	_, err := b.Subscribe(ctx, ownerQuery("user:x"), func(backend.Snapshot, error) {})
	var se *backend.SubscriptionError
	require.ErrorAs(t, err, &se)
	assert.True(t, backend.IsAuth(err))
}

func TestSubscribeOnlyOwnItems(t *testing.T) {
	b := newBackend(t)
	a, err := b.SignUp(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)
	addItem(t, b, a.ID, "a's")
	_, err = b.SignUp(ctx, "b@example.com", "secret-pass")
	require.NoError(t, err)

	for name, q := range map[string]backend.Query{
		"other owner": ownerQuery(a.ID),
		"no filter":   {Collection: model.Collection},
	} {
		_, err := b.Subscribe(ctx, q, func(backend.Snapshot, error) {})
		var se *backend.SubscriptionError
		require.ErrorAs(t, err, &se, name)
		assert.True(t, backend.IsAuth(err), name)
		assert.ErrorIs(t, err, errPermissionDenied, name)
	}
	assert.Equal(t, 0, b.ActiveSubscriptions())
}

func TestLiveQuery(t *testing.T) {
	b := newBackend(t)
	id, err := b.SignUp(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)

	snaps := newSnapshots()
	unsub, err := b.Subscribe(ctx, ownerQuery(id.ID), snaps.handle)
	require.NoError(t, err)
	defer unsub()

	snaps.next(t, size(0))

	first := addItem(t, b, id.ID, "first")
	second := addItem(t, b, id.ID, "second")
	snap := snaps.next(t, size(2))
	assert.Equal(t, second, snap[0].ID, "newest first")
	assert.Equal(t, first, snap[1].ID)
	assert.IsType(t, time.Time{}, snap[0].Fields[model.FieldCreatedAt])

	require.NoError(t, b.Update(ctx, model.Collection, first, backend.Fields{model.FieldTitle: "renamed"}))
	snap = snaps.next(t, func(s backend.Snapshot) bool {
		return len(s) == 2 && s[1].Fields[model.FieldTitle] == "renamed"
	})
	assert.Equal(t, false, snap[1].Fields[model.FieldCompleted], "update keeps other fields")

	require.NoError(t, b.Delete(ctx, model.Collection, second))
	snap = snaps.next(t, size(1))
	assert.Equal(t, first, snap[0].ID)
	assert.Equal(t, 4, b.Writes())
}

func TestLiveQueryFiltersOwner(t *testing.T) {
	b := newBackend(t)
	a, err := b.SignUp(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)
	addItem(t, b, a.ID, "a's")

	bob, err := b.SignUp(ctx, "b@example.com", "secret-pass")
	require.NoError(t, err)
	snaps := newSnapshots()
	unsub, err := b.Subscribe(ctx, ownerQuery(bob.ID), snaps.handle)
	require.NoError(t, err)
	defer unsub()
	snaps.next(t, size(0))

	addItem(t, b, bob.ID, "b's")
	snap := snaps.next(t, size(1))
	assert.Equal(t, "b's", snap[0].Fields[model.FieldTitle])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := newBackend(t)
	id, err := b.SignUp(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)

	snaps := newSnapshots()
	unsub, err := b.Subscribe(ctx, ownerQuery(id.ID), snaps.handle)
	require.NoError(t, err)
	snaps.next(t, size(0))
	assert.Equal(t, 1, b.ActiveSubscriptions())

	unsub()
	unsub()
	assert.Equal(t, 0, b.ActiveSubscriptions())

	addItem(t, b, id.ID, "late")
	select {
	case snap := <-snaps.ch:
		t.Fatalf("snapshot after unsubscribe: %v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWritePermissions(t *testing.T) {
	b := newBackend(t)
	a, err := b.SignUp(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)
	itemID := addItem(t, b, a.ID, "mine")

	_, err = b.Add(ctx, model.Collection, backend.Fields{model.FieldOwner: "user:other"})
	assert.ErrorIs(t, err, errPermissionDenied)

	err = b.Update(ctx, model.Collection, itemID, backend.Fields{model.FieldOwner: "user:other"})
	assert.ErrorIs(t, err, errPermissionDenied)

	err = b.Update(ctx, model.Collection, "missing", backend.Fields{model.FieldTitle: "x"})
	assert.ErrorIs(t, err, errNotFound)

	_, err = b.SignUp(ctx, "b@example.com", "secret-pass")
	require.NoError(t, err)
	err = b.Delete(ctx, model.Collection, itemID)
	assert.ErrorIs(t, err, errPermissionDenied)
	var we *backend.WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, itemID, we.ID)
}

func TestFaultInjection(t *testing.T) {
	b := newBackend(t)
	id, err := b.SignUp(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)

	boom := errors.New("boom")
	b.Fail(OpAdd, boom)
	_, err = b.Add(ctx, model.Collection, backend.Fields{model.FieldOwner: id.ID})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, b.Writes())

	addItem(t, b, id.ID, "ok now")
	assert.Equal(t, 1, b.Writes())

	b.Fail(OpSignOut, boom)
	err = b.SignOut(ctx)
	assert.True(t, backend.IsAuth(err))
	assert.NotNil(t, b.auth.Current(), "failed sign-out keeps the session")
}

func TestInvalidate(t *testing.T) {
	b := newBackend(t)
	_, err := b.SignUp(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)

	b.Invalidate()
	assert.Nil(t, b.auth.Current())
	_, err = b.Add(ctx, model.Collection, backend.Fields{model.FieldTitle: "x"})
	assert.True(t, backend.IsAuth(err))
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	tokens := &memTokens{}

	b, err := Open(path, WithTokenStore(tokens))
	require.NoError(t, err)
	id, err := b.SignUp(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)
	itemID := addItem(t, b, id.ID, "persisted")
	require.NoError(t, b.Close())

	b2, err := Open(path, WithTokenStore(tokens))
	require.NoError(t, err)
	t.Cleanup(func() { b2.Close() })

	resumed, err := b2.SignInWithProvider(ctx, backend.ProviderSession)
	require.NoError(t, err, "token signed by the persisted key")
	assert.Equal(t, id, resumed)

	snaps := newSnapshots()
	unsub, err := b2.Subscribe(ctx, ownerQuery(id.ID), snaps.handle)
	require.NoError(t, err)
	defer unsub()
	snap := snaps.next(t, size(1))
	assert.Equal(t, itemID, snap[0].ID)
	assert.Equal(t, "persisted", snap[0].Fields[model.FieldTitle])
	assert.IsType(t, time.Time{}, snap[0].Fields[model.FieldCreatedAt])
}

func openShared(t *testing.T, path string, opts ...Option) *Backend {
	t.Helper()
	b, err := Open(path, append([]Option{WithPollInterval(0)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestSharedFileKeepsOtherProcessWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	seed := openShared(t, path)
	id, err := seed.SignUp(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)
	require.NoError(t, seed.Close())

	// Both open before either writes, like a TUI left running next to `todo add`.
	idle := openShared(t, path)
	busy := openShared(t, path)
	_, err = idle.SignInWithCredentials(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)
	_, err = busy.SignInWithCredentials(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)

	addItem(t, busy, id.ID, "Buy milk")
	require.NoError(t, busy.Close())
	addItem(t, idle, id.ID, "Walk dog")
	require.NoError(t, idle.Close())

	again := openShared(t, path)
	_, err = again.SignInWithCredentials(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)
	snaps := newSnapshots()
	unsub, err := again.Subscribe(ctx, ownerQuery(id.ID), snaps.handle)
	require.NoError(t, err)
	defer unsub()
	snap := snaps.next(t, size(2))
	assert.Equal(t, "Walk dog", snap[0].Fields[model.FieldTitle])
	assert.Equal(t, "Buy milk", snap[1].Fields[model.FieldTitle])
}

func TestSharedFileCloseDoesNotWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	w := openShared(t, path)
	id, err := w.SignUp(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)

	reader := openShared(t, path)
	addItem(t, w, id.ID, "kept")
	before, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"local.json", "local.json.lock"}, names, "no temp files left behind")
}

func TestSharedFileSignUpSeenByOthers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	first := openShared(t, path)
	second := openShared(t, path)

	_, err := first.SignUp(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)
	_, err = second.SignUp(ctx, "a@example.com", "secret-pass")
	assert.ErrorIs(t, err, errEmailTaken)
	_, err = second.SignInWithCredentials(ctx, "a@example.com", "secret-pass")
	assert.NoError(t, err)
}

func TestSharedFileLiveUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	viewer := openShared(t, path, WithPollInterval(10*time.Millisecond))
	id, err := viewer.SignUp(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)
	snaps := newSnapshots()
	unsub, err := viewer.Subscribe(ctx, ownerQuery(id.ID), snaps.handle)
	require.NoError(t, err)
	defer unsub()
	snaps.next(t, size(0))

	other := openShared(t, path)
	_, err = other.SignInWithCredentials(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)
	addItem(t, other, id.ID, "from elsewhere")

	snap := snaps.next(t, size(1))
	assert.Equal(t, "from elsewhere", snap[0].Fields[model.FieldTitle])
}

func TestClosedBackend(t *testing.T) {
	b := New()
	_, err := b.SignUp(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err = b.Add(ctx, model.Collection, backend.Fields{})
	assert.ErrorIs(t, err, errClosed)
	_, err = b.Subscribe(ctx, ownerQuery("x"), func(backend.Snapshot, error) {})
	assert.ErrorIs(t, err, errClosed)
}

func TestCompare(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"times", t0, t0.Add(time.Second), -1},
		{"strings", "b", "a", 1},
		{"bools", false, true, -1},
		{"equal bools", true, true, 0},
		{"floats", 2.0, 1.0, 1},
		{"nil first", nil, "a", -1},
		{"nil equal", nil, nil, 0},
		{"value before nil", "a", nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compare(tt.a, tt.b))
		})
	}
}
