// Package editbuf tracks the single item being edited inline.
package editbuf

import "github.com/idilsaglam/tada/internal/model"

// Buffer holds at most one (item id, working title) pair. The zero value is empty.
type Buffer struct {
	target string
	text   string
	active bool
}

// Begin starts editing itemID with its current title. Unsaved text of a
// previous edit is discarded.
func (b *Buffer) Begin(itemID, currentTitle string) {
	b.target, b.text, b.active = itemID, currentTitle, true
}

// Update replaces the working title. No-op when nothing is being edited.
func (b *Buffer) Update(text string) {
	if b.active {
		b.text = text
	}
}

// Commit returns the pending edit and clears the buffer.
func (b *Buffer) Commit() (itemID, title string, ok bool) {
	if !b.active {
		return "", "", false
	}
	itemID, title = b.target, b.text
	b.Cancel()
	return itemID, title, true
}

// Cancel clears the buffer.
func (b *Buffer) Cancel() {
	*b = Buffer{}
}

func (b *Buffer) Active() bool   { return b.active }
func (b *Buffer) Target() string { return b.target }
func (b *Buffer) Text() string   { return b.text }

// Retain cancels the edit when its target is not among items and reports
// whether it did.
func (b *Buffer) Retain(items []model.Item) bool {
	if !b.active {
		return false
	}
	for _, it := range items {
		if it.ID == b.target {
			return false
		}
	}
	b.Cancel()
	return true
}
