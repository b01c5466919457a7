package model

import (
	"fmt"
	"time"
)

// Collection and field names shared by every backend.
const (
	Collection     = "todos"
	FieldTitle     = "title"
	FieldCompleted = "completed"
	FieldOwner     = "user_id"
	FieldCreatedAt = "created_at"
)

// Item is the domain model for a todo entry.
// It is a read replica of a backend document; the client never edits one in place.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	OwnerID   string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ItemFromFields builds an Item from a document id and its raw fields.
// Missing fields keep their zero value; a field of the wrong type is an error.
func ItemFromFields(id string, fields map[string]any) (Item, error) {
	it := Item{ID: id}
	if v, ok := fields[FieldTitle]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return Item{}, fmt.Errorf("item %s: %s is %T, want string", id, FieldTitle, v)
		}
		it.Title = s
	}
	if v, ok := fields[FieldCompleted]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return Item{}, fmt.Errorf("item %s: %s is %T, want bool", id, FieldCompleted, v)
		}
		it.Completed = b
	}
	if v, ok := fields[FieldOwner]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return Item{}, fmt.Errorf("item %s: %s is %T, want string", id, FieldOwner, v)
		}
		it.OwnerID = s
	}
	if v, ok := fields[FieldCreatedAt]; ok && v != nil {
		switch t := v.(type) {
		case time.Time:
			it.CreatedAt = t
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return Item{}, fmt.Errorf("item %s: %s: %w", id, FieldCreatedAt, err)
			}
			it.CreatedAt = parsed
		default:
			return Item{}, fmt.Errorf("item %s: %s is %T, want time", id, FieldCreatedAt, v)
		}
	}
	return it, nil
}

// Stats counts done and pending items.
func Stats(items []Item) (done, pending int) {
	for _, it := range items {
		if it.Completed {
			done++
		} else {
			pending++
		}
	}
	return
}
