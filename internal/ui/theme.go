package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme bundles palette + symbols + box borders for plain output, and the
// Lip Gloss palette the TUI styles are built from.
// All UI helpers pull from `current`.
type Theme struct {
	Name string

	Title, Muted, Accent, Success, Error, Pending string
	// Session states: a sign-out that may not have reached the backend,
	// and a live list waiting for its first snapshot.
	Stale, Syncing string

	BoxUnchecked, BoxChecked               string
	CornerTL, CornerTR, CornerBL, CornerBR string
	H, V                                   string
	SymDone, SymUnchecked                  string
	SymStale, SymSyncing                   string

	Palette Palette
}

// Palette holds TUI colors. An empty color keeps the terminal default.
type Palette struct {
	Accent, Success, Pending, Error, Stale, Border lipgloss.Color
}

var themes = map[string]func() Theme{
	"classic": classic,
	"neon":    neon,
	"mono":    mono,
}

// Themes lists the names SetTheme accepts.
var Themes = themeNames()

var current = classic()

func init() { applyStyles(current) }

func classic() Theme {
	return Theme{
		Name:  "classic",
		Title: bold, Muted: fgGray, Accent: fgBlue,
		Success: fgGreen, Error: fgRed, Pending: fgYellow,
		Stale: fgYellow, Syncing: fgGray,
		BoxUnchecked: "☐", BoxChecked: "☑",
		CornerTL: "┌", CornerTR: "┐", CornerBL: "└", CornerBR: "┘",
		H: "─", V: "│",
		SymDone: "✔", SymUnchecked: "•",
		SymStale: "⚠", SymSyncing: "⟳",
		Palette: Palette{Accent: "12", Success: "42", Pending: "214", Error: "9", Stale: "214", Border: "8"},
	}
}

func neon() Theme {
	return Theme{
		Name:  "neon",
		Title: "\033[95m", // bright magenta
		Muted: fgGray, Accent: "\033[96m",
		Success: fgGreen, Error: fgRed, Pending: "\033[93m",
		Stale: "\033[91m", Syncing: "\033[96m",
		BoxUnchecked: "◻", BoxChecked: "◼",
		CornerTL: "╭", CornerTR: "╮", CornerBL: "╰", CornerBR: "╯",
		H: "─", V: "│",
		SymDone: "✔", SymUnchecked: "•",
		SymStale: "⚠", SymSyncing: "⟳",
		Palette: Palette{Accent: "14", Success: "10", Pending: "11", Error: "9", Stale: "13", Border: "13"},
	}
}

func mono() Theme {
	return Theme{
		Name:         "mono",
		BoxUnchecked: "[ ]", BoxChecked: "[x]",
		CornerTL: "+", CornerTR: "+", CornerBL: "+", CornerBR: "+",
		H: "-", V: "|",
		SymDone: "x", SymUnchecked: "-",
		SymStale: "!", SymSyncing: "~",
	}
}

func themeNames() []string {
	names := make([]string, 0, len(themes))
	for n := range themes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SetTheme switches plain output and the TUI styles to the named theme.
func SetTheme(name string) error {
	mk, ok := themes[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown theme %q (have %s)", name, strings.Join(Themes, ", "))
	}
	current = mk()
	if current.Name == "mono" {
		disableColor = true
	}
	applyStyles(current)
	return nil
}

// Expose what renderers need
func Current() Theme { return current }
