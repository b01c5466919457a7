package livelist

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/tada/internal/backend"
	"github.com/idilsaglam/tada/internal/backend/local"
	"github.com/idilsaglam/tada/internal/event"
	"github.com/idilsaglam/tada/internal/model"
)

type fixture struct {
	be    *local.Backend
	queue *event.Queue
	sub   *Subscriber
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	be := local.New()
	q := event.NewQueue()
	f := &fixture{be: be, queue: q, sub: New(context.Background(), be, q.Push, zerolog.Nop())}
	t.Cleanup(func() {
		f.sub.Close()
		be.Close()
	})
	return f
}

func (f *fixture) signUp(t *testing.T, email string) model.Identity {
	t.Helper()
	id, err := f.be.SignUp(context.Background(), email, "secret-pass")
	require.NoError(t, err)
	return id
}

func (f *fixture) add(t *testing.T, owner model.Identity, title string) string {
	t.Helper()
	id, err := f.be.Add(context.Background(), model.Collection, backend.Fields{
		model.FieldTitle:     title,
		model.FieldCompleted: false,
		model.FieldOwner:     owner.ID,
		model.FieldCreatedAt: backend.ServerTimestamp,
	})
	require.NoError(t, err)
	return id
}

// await applies events until the list has n items.
func (f *fixture) await(t *testing.T, n int) []model.Item {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for !(f.sub.Loaded() && len(f.sub.Items()) == n) {
		ev, err := f.queue.Next(ctx)
		require.NoError(t, err, "waiting for %d items", n)
		if snap, ok := ev.(event.SnapshotReceived); ok {
			f.sub.Apply(snap)
		}
	}
	return f.sub.Items()
}

func titles(items []model.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

func TestQueryFor(t *testing.T) {
	q := QueryFor("user:a")
	assert.Equal(t, model.Collection, q.Collection)
	assert.Equal(t, []backend.Filter{{Field: model.FieldOwner, Value: "user:a"}}, q.Filters)
	assert.Equal(t, model.FieldCreatedAt, q.OrderBy)
	assert.True(t, q.Descending)
}

func TestSubscriber_NoIdentity(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sub.Reset(nil))
	assert.False(t, f.sub.Active())
	assert.True(t, f.sub.Loaded())
	assert.Empty(t, f.sub.Items())
	assert.Equal(t, 0, f.be.ActiveSubscriptions())
}

func TestSubscriber_NewestFirst(t *testing.T) {
	f := newFixture(t)
	a := f.signUp(t, "a@example.com")

	require.NoError(t, f.sub.Reset(&a))
	assert.Empty(t, f.await(t, 0))
	assert.Equal(t, 1, f.be.ActiveSubscriptions())

	f.add(t, a, "Buy milk")
	f.await(t, 1)
	f.add(t, a, "Walk dog")
	items := f.await(t, 2)
	assert.Equal(t, []string{"Walk dog", "Buy milk"}, titles(items))
	for _, it := range items {
		assert.Equal(t, a.ID, it.OwnerID)
		assert.False(t, it.Completed)
	}
}

func TestSubscriber_ResetDropsStaleSnapshots(t *testing.T) {
	f := newFixture(t)
	a := f.signUp(t, "a@example.com")
	require.NoError(t, f.sub.Reset(&a))
	f.add(t, a, "secret of a")
	f.await(t, 1)

	// Queue a snapshot from a's subscription, then switch to b before applying it.
	f.add(t, a, "another of a")
	time.Sleep(20 * time.Millisecond)

	b := f.signUp(t, "b@example.com")
	require.NoError(t, f.sub.Reset(&b))
	assert.Empty(t, f.sub.Items())
	assert.False(t, f.sub.Loaded())
	assert.Equal(t, 1, f.be.ActiveSubscriptions())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for !f.sub.Loaded() {
		ev, err := f.queue.Next(ctx)
		require.NoError(t, err)
		if snap, ok := ev.(event.SnapshotReceived); ok {
			f.sub.Apply(snap)
			for _, it := range f.sub.Items() {
				assert.Equal(t, b.ID, it.OwnerID)
			}
		}
	}
	assert.Empty(t, f.sub.Items())
}

func TestSubscriber_ApplyIgnoresOldGeneration(t *testing.T) {
	f := newFixture(t)
	a := f.signUp(t, "a@example.com")
	require.NoError(t, f.sub.Reset(&a))
	old := f.sub.Generation()
	require.NoError(t, f.sub.Refresh())

	assert.False(t, f.sub.Apply(event.SnapshotReceived{Gen: old, Snapshot: backend.Snapshot{{ID: "x"}}}))
	assert.Empty(t, f.sub.Items())
	assert.False(t, f.sub.Current(old))
	assert.True(t, f.sub.Current(f.sub.Generation()))
}

func TestSubscriber_SkipsMalformed(t *testing.T) {
	f := newFixture(t)
	a := f.signUp(t, "a@example.com")
	require.NoError(t, f.sub.Reset(&a))

	ok := f.sub.Apply(event.SnapshotReceived{Gen: f.sub.Generation(), Snapshot: backend.Snapshot{
		{ID: "1", Fields: backend.Fields{model.FieldTitle: 42}},
		{ID: "2", Fields: backend.Fields{model.FieldTitle: "fine"}},
	}})
	require.True(t, ok)
	assert.Equal(t, []string{"fine"}, titles(f.sub.Items()))
}

func TestSubscriber_CloseTearsDown(t *testing.T) {
	f := newFixture(t)
	a := f.signUp(t, "a@example.com")
	require.NoError(t, f.sub.Reset(&a))
	require.Equal(t, 1, f.be.ActiveSubscriptions())

	f.sub.Close()
	assert.Equal(t, 0, f.be.ActiveSubscriptions())
	assert.False(t, f.sub.Active())
}

func TestSubscriber_SubscribeError(t *testing.T) {
	f := newFixture(t)
	ghost := model.Identity{ID: "user:ghost"}
	err := f.sub.Reset(&ghost)
	require.Error(t, err)
	assert.True(t, backend.IsAuth(err))
	assert.False(t, f.sub.Active())
}
