package ui

import (
	"fmt"

	"github.com/mattn/go-runewidth"

	"github.com/idilsaglam/tada/internal/model"
)

const maxTitleWidth = 80

// Header renders the title line with counts.
func Header(items []model.Item) string {
	t := Current()
	d, p := model.Stats(items)
	return fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		C(t.Title, "Todos"),
		C(t.Success, t.SymDone), d,
		C(t.Pending, t.SymUnchecked), p,
		C(t.Accent, "Total"), len(items),
	)
}

// ItemLines renders items with 1-based indexes in the given order.
func ItemLines(items []model.Item) []string {
	return numbered(items, func(i int) int { return i + 1 })
}

func numbered(items []model.Item, index func(i int) int) []string {
	t := Current()
	if len(items) == 0 {
		return []string{C(t.Muted, "no items")}
	}
	out := make([]string, 0, len(items))
	for i, it := range items {
		idx := fmt.Sprintf("%2d.", index(i))
		box, color := t.BoxUnchecked, t.Muted
		if it.Completed {
			box, color = t.BoxChecked, t.Success
		}
		out = append(out, fmt.Sprintf("%s %s %s",
			C(dim, idx), C(color, box), runewidth.Truncate(it.Title, maxTitleWidth, "...")))
	}
	return out
}

// GroupLines renders pending then done items. Indexes stay those of the flat
// list so they can be passed to done and rm.
func GroupLines(items []model.Item) []string {
	t := Current()
	var pend, done []model.Item
	var pendIdx, doneIdx []int
	for i, it := range items {
		if it.Completed {
			done = append(done, it)
			doneIdx = append(doneIdx, i+1)
		} else {
			pend = append(pend, it)
			pendIdx = append(pendIdx, i+1)
		}
	}
	section := func(name string, items []model.Item, idx []int) []string {
		lines := []string{C(t.Accent, name)}
		if len(items) == 0 {
			return append(lines, C(t.Muted, "(none)"))
		}
		return append(lines, numbered(items, func(i int) int { return idx[i] })...)
	}
	lines := section("Pending", pend, pendIdx)
	lines = append(lines, "")
	return append(lines, section("Done", done, doneIdx)...)
}

// ListLines is the panel body of `todo ls --plain`.
func ListLines(who *model.Identity, items []model.Item, group bool) []string {
	t := Current()
	d, p := model.Stats(items)
	lines := []string{Header(items)}
	if who != nil {
		lines = append(lines, C(t.Muted, who.Email))
	}
	lines = append(lines, C(t.Muted, ProgressBar(d, d+p, 28)), "")
	if group {
		lines = append(lines, GroupLines(items)...)
	} else {
		lines = append(lines, ItemLines(items)...)
	}
	return append(lines, "", C(t.Muted, "Tip: add with `todo add \"Buy milk\"`"))
}
