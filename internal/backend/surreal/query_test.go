package surreal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/idilsaglam/tada/internal/backend"
)

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name     string
		q        backend.Query
		wantSQL  string
		wantVars map[string]any
		wantErr  bool
	}{
		{
			name:     "collection only",
			q:        backend.Query{Collection: "todos"},
			wantSQL:  "SELECT * FROM type::table($tb)",
			wantVars: map[string]any{"tb": "todos"},
		},
		{
			name: "owner filter newest first",
			q: backend.Query{
				Collection: "todos",
				Filters:    []backend.Filter{{Field: "user_id", Value: "user:a"}},
				OrderBy:    "created_at",
				Descending: true,
			},
			wantSQL:  "SELECT * FROM type::table($tb) WHERE user_id = $f0 ORDER BY created_at DESC",
			wantVars: map[string]any{"tb": "todos", "f0": "user:a"},
		},
		{
			name: "two filters ascending",
			q: backend.Query{
				Collection: "todos",
				Filters: []backend.Filter{
					{Field: "user_id", Value: "user:a"},
					{Field: "completed", Value: false},
				},
				OrderBy: "title",
			},
			wantSQL:  "SELECT * FROM type::table($tb) WHERE user_id = $f0 AND completed = $f1 ORDER BY title ASC",
			wantVars: map[string]any{"tb": "todos", "f0": "user:a", "f1": false},
		},
		{
			name:    "bad table",
			q:       backend.Query{Collection: "todos; DROP"},
			wantErr: true,
		},
		{
			name:    "bad field",
			q:       backend.Query{Collection: "todos", Filters: []backend.Filter{{Field: "a b"}}},
			wantErr: true,
		},
		{
			name:    "bad order",
			q:       backend.Query{Collection: "todos", OrderBy: "1x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, vars, err := buildSelect(tt.q)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantVars, vars)
		})
	}
}

func TestToDocument(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("record id and datetime", func(t *testing.T) {
		doc, err := toDocument(map[string]any{
			"id":         models.NewRecordID("todos", "abc"),
			"title":      "Buy milk",
			"completed":  false,
			"user_id":    "user:a",
			"created_at": models.CustomDateTime{Time: ts},
		})
		require.NoError(t, err)
		assert.Equal(t, "abc", doc.ID)
		assert.Equal(t, backend.Fields{
			"title":      "Buy milk",
			"completed":  false,
			"user_id":    "user:a",
			"created_at": ts,
		}, doc.Fields)
	})

	t.Run("pointer record id", func(t *testing.T) {
		rid := models.NewRecordID("todos", "p1")
		doc, err := toDocument(map[string]any{"id": &rid})
		require.NoError(t, err)
		assert.Equal(t, "p1", doc.ID)
	})

	t.Run("string id", func(t *testing.T) {
		doc, err := toDocument(map[string]any{"id": "todos:xyz"})
		require.NoError(t, err)
		assert.Equal(t, "xyz", doc.ID)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := toDocument(map[string]any{"title": "x"})
		require.Error(t, err)
	})
}

func TestPlainRecordReference(t *testing.T) {
	assert.Equal(t, "user:a1", plain(models.NewRecordID("user", "a1")))
	assert.Nil(t, plain((*models.CustomDateTime)(nil)))
	assert.Equal(t, 3, plain(3))
}

func TestWriteFieldsDropsServerTimestamp(t *testing.T) {
	out := writeFields(backend.Fields{
		"title":      "x",
		"completed":  false,
		"created_at": backend.ServerTimestamp,
	})
	assert.Equal(t, map[string]any{"title": "x", "completed": false}, out)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify("add", nil))

	err := classify("add", errors.New("There was a problem with authentication"))
	assert.True(t, backend.IsAuth(err))

	err = classify("select", errors.New("The token has expired"))
	assert.True(t, backend.IsAuth(err))

	plainErr := errors.New("connection reset by peer")
	err = classify("add", plainErr)
	assert.False(t, backend.IsAuth(err))
	assert.Same(t, plainErr, err)
}
