// Package tui is the interactive list: a Bubble Tea program that feeds the
// controller's events into Update, so the controller's state only ever changes
// on the program's goroutine.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/tada/internal/app"
	"github.com/idilsaglam/tada/internal/event"
	"github.com/idilsaglam/tada/internal/model"
	"github.com/idilsaglam/tada/internal/ui"
)

type mode int

const (
	modeList mode = iota
	modeAdd
	modeEdit
	modeSignIn
)

// eventMsg carries one controller event into Update.
type eventMsg struct{ ev event.Event }

// stoppedMsg ends the program when the event queue is closed.
type stoppedMsg struct{ err error }

// listItem adapts model.Item to bubbles/list.Item
type listItem struct{ it model.Item }

func (i listItem) Title() string       { return i.it.Title }
func (i listItem) Description() string { return "" }
func (i listItem) FilterValue() string { return i.it.Title }

// Custom delegate to control how items render (single line)
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	li, _ := item.(listItem)
	box := ui.MutedStyle.Render(ui.BoxUnchecked)
	text := li.it.Title
	if li.it.Completed {
		box = ui.SuccessStyle.Render(ui.BoxChecked)
		text = ui.DoneStyle.Render(text)
	}
	prefix := "  "
	if index == m.Index() {
		prefix = ui.SelectedStyle.Render("> ")
	}
	fmt.Fprintf(w, "%s%s %s", prefix, box, text)
}

// Model is the Bubble Tea model.
type Model struct {
	ctx  context.Context
	ctrl *app.Controller
	keys keyMap

	mode     mode
	list     list.Model
	input    textinput.Model
	email    textinput.Model
	password textinput.Model
	signUp   bool

	width, height int
}

// New builds the model. The controller must already be started.
func New(ctx context.Context, ctrl *app.Controller) Model {
	keys := defaultKeys()

	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = ui.TitleStyle
	l.Styles.HelpStyle = ui.HelpStyle
	l.Styles.PaginationStyle = ui.HelpStyle
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("item", "items")
	l.AdditionalShortHelpKeys = keys.listHelp
	l.AdditionalFullHelpKeys = keys.listHelp

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200

	email := textinput.New()
	email.Prompt = "email    "
	email.Placeholder = "you@example.com"
	email.CharLimit = 254

	pw := textinput.New()
	pw.Prompt = "password "
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'

	m := Model{ctx: ctx, ctrl: ctrl, keys: keys, list: l, input: ti, email: email, password: pw, width: 80, height: 24}
	m.sync(nil)
	return m
}

// Run starts the interactive program and blocks until it quits.
func Run(ctx context.Context, ctrl *app.Controller) error {
	p := tea.NewProgram(New(ctx, ctrl), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) wait() tea.Cmd {
	return func() tea.Msg {
		ev, err := m.ctrl.Next(m.ctx)
		if err != nil {
			return stoppedMsg{err: err}
		}
		return eventMsg{ev: ev}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.wait(), textinput.Blink)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.ctrl.Handle(msg.ev)
		m.sync(msg.ev)
		return m, m.wait()
	case stoppedMsg:
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		switch m.mode {
		case modeSignIn:
			return m.updateSignIn(msg)
		case modeAdd, modeEdit:
			return m.updateInput(msg)
		}
		return m.updateList(msg)
	}

	var cmd tea.Cmd
	switch m.mode {
	case modeList:
		m.list, cmd = m.list.Update(msg)
	case modeAdd, modeEdit:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

// sync mirrors controller state into the widgets after ev was handled.
func (m *Model) sync(ev event.Event) {
	st := m.ctrl.State()

	if st.Identity == nil {
		if m.mode != modeSignIn {
			m.mode = modeSignIn
			m.input.Blur()
			m.password.SetValue("")
			m.focusField(0)
		}
	} else if m.mode == modeSignIn {
		m.mode = modeList
		m.email.Blur()
		m.password.Blur()
		m.password.SetValue("")
	}

	switch m.mode {
	case modeAdd:
		if cc, ok := ev.(event.CommandCompleted); ok && cc.Op == event.OpAdd && cc.Err == nil && st.Draft == "" {
			m.leaveInput()
		}
	case modeEdit:
		if !st.Editing {
			m.leaveInput()
		}
	}

	items := make([]list.Item, len(st.Items))
	for i, it := range st.Items {
		items[i] = listItem{it: it}
	}
	idx := m.list.Index()
	m.list.SetItems(items)
	if idx >= len(items) && len(items) > 0 {
		m.list.Select(len(items) - 1)
	}
	m.list.Title = m.title(st)
}

func (m *Model) title(st app.State) string {
	d, p := model.Stats(st.Items)
	th := ui.Current()
	t := fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		ui.TitleStyle.Render("Todos"),
		ui.SuccessStyle.Render(th.SymDone), d,
		ui.PendingStyle.Render(th.SymUnchecked), p,
		ui.AccentStyle.Render("Total"), len(st.Items),
	)
	if st.Identity != nil {
		t += "   " + ui.MutedStyle.Render(st.Identity.Email)
	}
	return t
}

func (m *Model) selected() (model.Item, bool) {
	li, ok := m.list.SelectedItem().(listItem)
	return li.it, ok
}

func (m *Model) leaveInput() {
	m.mode = modeList
	m.input.SetValue("")
	m.input.Blur()
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Add):
		m.mode = modeAdd
		m.input.Placeholder = "New item title..."
		m.input.SetValue(m.ctrl.State().Draft)
		m.input.CursorEnd()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Edit):
		if it, ok := m.selected(); ok && m.ctrl.BeginEdit(it.ID) == nil {
			m.mode = modeEdit
			m.input.Placeholder = "Edit item title..."
			m.input.SetValue(it.Title)
			m.input.CursorEnd()
			return m, m.input.Focus()
		}
		return m, nil
	case key.Matches(msg, m.keys.Toggle):
		if it, ok := m.selected(); ok {
			_ = m.ctrl.Toggle(it.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.Delete):
		if it, ok := m.selected(); ok {
			_ = m.ctrl.Delete(it.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		_ = m.ctrl.Refresh()
		return m, nil
	case key.Matches(msg, m.keys.SignOut):
		_ = m.ctrl.SignOut()
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Save):
		if m.mode == modeAdd {
			m.ctrl.SetDraft(m.input.Value())
			_ = m.ctrl.SubmitDraft()
		} else {
			m.ctrl.UpdateEdit(m.input.Value())
			_ = m.ctrl.SaveEdit()
		}
		return m, nil
	case key.Matches(msg, m.keys.Cancel):
		if m.mode == modeAdd {
			m.ctrl.SetDraft("")
		} else {
			m.ctrl.CancelEdit()
		}
		m.leaveInput()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == modeAdd {
		m.ctrl.SetDraft(m.input.Value())
	} else {
		m.ctrl.UpdateEdit(m.input.Value())
	}
	return m, cmd
}

func (m *Model) focusField(i int) tea.Cmd {
	if i == 0 {
		m.password.Blur()
		return m.email.Focus()
	}
	m.email.Blur()
	return m.password.Focus()
}

func (m Model) updateSignIn(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc:
		return m, tea.Quit
	case key.Matches(msg, m.keys.Next):
		if m.email.Focused() {
			return m, m.focusField(1)
		}
		return m, m.focusField(0)
	case key.Matches(msg, m.keys.Mode):
		m.signUp = !m.signUp
		return m, nil
	case key.Matches(msg, m.keys.Save):
		if m.email.Focused() {
			return m, m.focusField(1)
		}
		if m.signUp {
			_ = m.ctrl.SignUp(m.email.Value(), m.password.Value())
		} else {
			_ = m.ctrl.SignIn(m.email.Value(), m.password.Value())
		}
		return m, nil
	}
	var cmd tea.Cmd
	if m.email.Focused() {
		m.email, cmd = m.email.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	st := m.ctrl.State()
	if m.mode == modeSignIn {
		return ui.Frame(m.signInView(st))
	}

	listHeight := m.height - 6
	if m.mode != modeList {
		listHeight -= 4
	}
	if listHeight < 3 {
		listHeight = 3
	}
	m.list.SetSize(m.width-4, listHeight)

	var b strings.Builder
	b.WriteString(m.list.View())
	if m.mode != modeList {
		title := "Add new item"
		if m.mode == modeEdit {
			title = "Edit item"
		}
		b.WriteString("\n" + ui.BorderStyle.Render(title+"\n"+m.input.View()))
	}
	if line := statusLine(st); line != "" {
		b.WriteString("\n" + line)
	}
	return ui.Frame(b.String())
}

func (m Model) signInView(st app.State) string {
	heading := "Sign in"
	if m.signUp {
		heading = "Create account"
	}
	lines := []string{
		ui.TitleStyle.Render("Todos") + "   " + ui.AccentStyle.Render(heading),
		"",
		m.email.View(),
		m.password.View(),
		"",
		ui.HelpStyle.Render("enter submit • tab next field • ctrl+n sign in/sign up • esc quit"),
	}
	if line := statusLine(st); line != "" {
		lines = append(lines, "", line)
	}
	return strings.Join(lines, "\n")
}

func statusLine(st app.State) string {
	var parts []string
	th := ui.Current()
	if st.Stale != nil {
		parts = append(parts, ui.StaleStyle.Render(th.SymStale+" session may be stale"))
	}
	if st.Identity != nil && !st.Loaded {
		parts = append(parts, ui.SyncingStyle.Render(th.SymSyncing+" syncing..."))
	}
	switch {
	case st.Err != nil:
		parts = append(parts, ui.ErrorStyle.Render(st.Message))
	case st.Message != "":
		parts = append(parts, ui.MutedStyle.Render(st.Message))
	}
	return strings.Join(parts, "  ")
}
