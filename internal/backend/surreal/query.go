package surreal

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/idilsaglam/tada/internal/backend"
)

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdent(kind, s string) error {
	if !identRE.MatchString(s) {
		return fmt.Errorf("invalid %s name %q", kind, s)
	}
	return nil
}

// buildSelect renders q as a parameterized SurrealQL SELECT.
// Only identifiers are interpolated, and only after validation.
func buildSelect(q backend.Query) (string, map[string]any, error) {
	if err := checkIdent("table", q.Collection); err != nil {
		return "", nil, err
	}
	var sb strings.Builder
	vars := map[string]any{"tb": q.Collection}
	sb.WriteString("SELECT * FROM type::table($tb)")
	for i, f := range q.Filters {
		if err := checkIdent("field", f.Field); err != nil {
			return "", nil, err
		}
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		p := fmt.Sprintf("f%d", i)
		fmt.Fprintf(&sb, "%s = $%s", f.Field, p)
		vars[p] = f.Value
	}
	if q.OrderBy != "" {
		if err := checkIdent("field", q.OrderBy); err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&sb, " ORDER BY %s", q.OrderBy)
		if q.Descending {
			sb.WriteString(" DESC")
		} else {
			sb.WriteString(" ASC")
		}
	}
	return sb.String(), vars, nil
}

// recordKey is the id part of a record id, as handed to the application.
func recordKey(rid models.RecordID) string {
	return fmt.Sprint(rid.ID)
}

// toDocument converts a decoded row into a Document with plain Go values.
func toDocument(row map[string]any) (backend.Document, error) {
	var id string
	switch v := row["id"].(type) {
	case models.RecordID:
		id = recordKey(v)
	case *models.RecordID:
		if v != nil {
			id = recordKey(*v)
		}
	case string:
		if i := strings.IndexByte(v, ':'); i >= 0 {
			id = v[i+1:]
		} else {
			id = v
		}
	}
	if id == "" {
		return backend.Document{}, fmt.Errorf("row without id: %v", row)
	}
	fields := make(backend.Fields, len(row))
	for k, v := range row {
		if k == "id" {
			continue
		}
		fields[k] = plain(v)
	}
	return backend.Document{ID: id, Fields: fields}, nil
}

// plain unwraps SDK value types the application does not know about.
func plain(v any) any {
	switch x := v.(type) {
	case models.CustomDateTime:
		return x.Time
	case *models.CustomDateTime:
		if x == nil {
			return nil
		}
		return x.Time
	case models.RecordID:
		return fmt.Sprintf("%s:%v", x.Table, x.ID)
	case *models.RecordID:
		if x == nil {
			return nil
		}
		return fmt.Sprintf("%s:%v", x.Table, x.ID)
	case time.Time:
		return x
	}
	return v
}

// writeFields drops server timestamps; the schema fills them with time::now().
func writeFields(fields backend.Fields) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if backend.IsServerTimestamp(v) {
			continue
		}
		out[k] = v
	}
	return out
}

// authErrorMarkers are fragments of SurrealDB errors caused by a missing,
// expired or insufficient session.
var authErrorMarkers = []string{
	"token has expired",
	"session has expired",
	"there was a problem with authentication",
	"not enough permissions",
	"iam error",
	"no record was returned",
}

// classify wraps err as an AuthError when it stems from the session.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, m := range authErrorMarkers {
		if strings.Contains(msg, m) {
			return &backend.AuthError{Op: op, Err: err}
		}
	}
	return err
}
