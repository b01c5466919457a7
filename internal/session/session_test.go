package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/tada/internal/model"
)

func TestHolder_Transitions(t *testing.T) {
	var h Holder
	var seen []*model.Identity
	h.OnChange(func(id *model.Identity) { seen = append(seen, id) })

	require.Nil(t, h.Current())
	assert.False(t, h.Set(nil), "absent to absent is not a transition")

	a := &model.Identity{ID: "user:a", Email: "a@example.com"}
	assert.True(t, h.Set(a))
	assert.True(t, h.SignedIn())
	assert.Equal(t, a, h.Current())

	assert.False(t, h.Set(&model.Identity{ID: "user:a", Email: "new@example.com"}))
	assert.Equal(t, "new@example.com", h.Current().Email)

	b := &model.Identity{ID: "user:b"}
	assert.True(t, h.Set(b))
	assert.True(t, h.Set(nil))

	require.Len(t, seen, 3)
	assert.Equal(t, "user:a", seen[0].ID)
	assert.Equal(t, "user:b", seen[1].ID)
	assert.Nil(t, seen[2])
}

func TestHolder_CurrentIsCopy(t *testing.T) {
	var h Holder
	h.Set(&model.Identity{ID: "user:a"})
	h.Current().ID = "user:x"
	assert.Equal(t, "user:a", h.Current().ID)
}

func TestHolder_Stale(t *testing.T) {
	var h Holder
	cause := errors.New("network down")

	h.MarkStale(cause)
	assert.NoError(t, h.Stale(), "nothing to be stale without a session")

	h.Set(&model.Identity{ID: "user:a"})
	h.MarkStale(cause)
	assert.Same(t, cause, h.Stale())
	assert.True(t, h.SignedIn())

	h.Set(nil)
	assert.NoError(t, h.Stale())
}

func TestHolder_OnChangeRemove(t *testing.T) {
	var h Holder
	calls := 0
	remove := h.OnChange(func(*model.Identity) { calls++ })
	h.Set(&model.Identity{ID: "user:a"})
	remove()
	h.Set(nil)
	assert.Equal(t, 1, calls)
}
