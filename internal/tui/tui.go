// Package tui is the interactive list. It renders the todo.Container state
// and runs container operations as Bubble Tea commands.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/tada-cloud/internal/model"
	"github.com/Makepad-fr/tada-cloud/internal/todo"
)

// Options select the terminal streams. Nil means the process's stdio.
type Options struct {
	Input  io.Reader
	Output io.Writer
}

// stateMsg carries a new container state into the event loop.
type stateMsg todo.State

// resetScreenMsg closes any open panel; sent by the container before a
// confirmed delete.
type resetScreenMsg struct{}

// opErrMsg reports an error a container operation returned to its caller.
type opErrMsg struct{ err error }

type mode int

const (
	modeList mode = iota
	modeAdd
	modeEdit
	modeConfirm
)

// listItem adapts model.Todo to bubbles/list.Item
type listItem struct {
	ID   string
	Text string
}

func (i listItem) Title() string       { return i.Text }
func (i listItem) Description() string { return "" }
func (i listItem) FilterValue() string { return i.Text }

// Custom delegate to control how items render (single line)
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, _ := item.(listItem)
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+mutedStyle.Render(bullet)+" "+it.Text)
}

var (
	addBind     = key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add"))
	editBind    = key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit"))
	deleteBind  = key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete"))
	refreshBind = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh"))
)

type modelTUI struct {
	ctx   context.Context
	c     *todo.Container
	state todo.State

	list list.Model
	spin spinner.Model
	mode mode

	// Inline add / edit share one text input
	ti       textinput.Model
	editID   string
	inputErr string

	confirm todo.Confirmation

	width, height int
}

func newModel(ctx context.Context, c *todo.Container) modelTUI {
	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("item", "items")
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{addBind, editBind, deleteBind, refreshBind}
	}
	l.AdditionalFullHelpKeys = l.AdditionalShortHelpKeys

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = model.MaxTitleLen

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle))

	m := modelTUI{
		ctx:    ctx,
		c:      c,
		list:   l,
		ti:     ti,
		spin:   sp,
		width:  80,
		height: 24,
	}
	m.applyState(c.State())
	return m
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, c *todo.Container, opt Options) error {
	popts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if opt.Input != nil {
		popts = append(popts, tea.WithInput(opt.Input))
	}
	if opt.Output != nil {
		popts = append(popts, tea.WithOutput(opt.Output))
	}
	p := tea.NewProgram(newModel(ctx, c), popts...)

	unsubscribe := c.Subscribe(func(s todo.State) { p.Send(stateMsg(s)) })
	defer unsubscribe()
	c.SetNavigator(todo.NavigatorFunc(func() { p.Send(resetScreenMsg{}) }))
	defer c.SetNavigator(nil)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m modelTUI) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.fetch())
}

// Container calls dispatch and so block on Program.Send; they only ever
// run inside commands, never in Update.

func (m modelTUI) fetch() tea.Cmd {
	ctx, c := m.ctx, m.c
	return func() tea.Msg {
		c.FetchAll(ctx)
		return nil
	}
}

func (m modelTUI) add(title string) tea.Cmd {
	ctx, c := m.ctx, m.c
	return func() tea.Msg {
		c.AddItem(ctx, title)
		return nil
	}
}

func (m modelTUI) update(id, title string) tea.Cmd {
	ctx, c := m.ctx, m.c
	return func() tea.Msg {
		if err := c.UpdateItem(ctx, id, title); err != nil {
			return opErrMsg{err}
		}
		return nil
	}
}

func (m modelTUI) remove(token todo.Token) tea.Cmd {
	ctx, c := m.ctx, m.c
	return func() tea.Msg {
		if err := c.Confirm(ctx, token); err != nil {
			return opErrMsg{err}
		}
		return nil
	}
}

func (m *modelTUI) applyState(s todo.State) tea.Cmd {
	m.state = s
	items := make([]list.Item, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, listItem{ID: it.ID, Text: it.Title})
	}
	m.list.Title = fmt.Sprintf("%s   %s %d",
		titleStyle.Render("Todos"),
		accentStyle.Render("Total"), len(s.Items))
	return m.list.SetItems(items)
}

func (m *modelTUI) closePanel() {
	m.mode = modeList
	m.editID = ""
	m.inputErr = ""
	m.ti.SetValue("")
	m.ti.Blur()
}

func (m modelTUI) selected() (listItem, bool) {
	it, ok := m.list.SelectedItem().(listItem)
	return it, ok
}

// Update and View implement Bubble Tea's Model on modelTUI
func (m modelTUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		cmd := m.applyState(todo.State(msg))
		return m, cmd

	case resetScreenMsg:
		if m.mode == modeAdd || m.mode == modeEdit {
			m.closePanel()
		}
		return m, nil

	case opErrMsg:
		cmd := m.list.NewStatusMessage(errorStyle.Render(reason(msg.err)))
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	}

	switch m.mode {
	case modeAdd, modeEdit:
		return m.updateInput(msg)
	case modeConfirm:
		return m.updateConfirm(msg)
	}

	if km, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch km.String() {
		case "q", "esc", "ctrl+c":
			if km.String() == "esc" && m.list.FilterState() == list.FilterApplied {
				break
			}
			return m, tea.Quit
		case "a":
			m.mode = modeAdd
			m.inputErr = ""
			m.ti.SetValue("")
			m.ti.Placeholder = "New item title..."
			cmd := m.ti.Focus()
			return m, cmd
		case "e":
			it, ok := m.selected()
			if !ok {
				return m, nil
			}
			m.mode = modeEdit
			m.editID = it.ID
			m.inputErr = ""
			m.ti.SetValue(it.Text)
			m.ti.CursorEnd()
			m.ti.Placeholder = "Edit item title..."
			cmd := m.ti.Focus()
			return m, cmd
		case "d":
			it, ok := m.selected()
			if !ok {
				return m, nil
			}
			conf, err := m.c.RequestDelete(it.ID)
			if err != nil {
				cmd := m.list.NewStatusMessage(errorStyle.Render(reason(err)))
				return m, cmd
			}
			m.mode = modeConfirm
			m.confirm = conf
			return m, nil
		case "r":
			return m, m.fetch()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m modelTUI) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "enter":
			title := model.NormalizeTitle(m.ti.Value())
			if err := model.ValidateTitle(title); err != nil {
				m.inputErr = model.Reason(err)
				return m, nil
			}
			var cmd tea.Cmd
			if m.mode == modeAdd {
				cmd = m.add(title)
			} else {
				cmd = m.update(m.editID, title)
			}
			m.closePanel()
			return m, cmd
		case "esc":
			m.closePanel()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

func (m modelTUI) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch km.String() {
	case "y", "Y", "enter":
		token := m.confirm.Token
		m.mode = modeList
		m.confirm = todo.Confirmation{}
		return m, m.remove(token)
	case "n", "N", "esc", "q":
		_ = m.c.Cancel(m.confirm.Token)
		m.mode = modeList
		m.confirm = todo.Confirmation{}
		return m, nil
	}
	return m, nil
}

func (m modelTUI) View() string {
	footer := m.footer()
	listHeight := m.height - 4 - lineCount(footer)
	if listHeight < 3 {
		listHeight = 3
	}
	m.list.SetSize(m.width-4, listHeight)

	content := m.list.View()
	if footer != "" {
		content += "\n" + footer
	}
	return panelBorder.Render(content)
}

func (m modelTUI) footer() string {
	var parts []string
	if m.state.Loading {
		parts = append(parts, m.spin.View()+" "+mutedStyle.Render("Loading..."))
	}
	if m.state.Error != "" {
		parts = append(parts, errorStyle.Render(m.state.Error))
	}
	switch m.mode {
	case modeAdd, modeEdit:
		title := "Add new item"
		if m.mode == modeEdit {
			title = "Edit item"
		}
		if m.inputErr != "" {
			title += " - " + errorStyle.Render(m.inputErr)
		}
		parts = append(parts, panelBorder.Render(title+"\n"+m.ti.View()))
	case modeConfirm:
		body := titleStyle.Render(m.confirm.Heading) + "\n" +
			m.confirm.Message + "\n" +
			warnStyle.Render("y") + mutedStyle.Render(" delete  ") +
			accentStyle.Render("n") + mutedStyle.Render(" cancel")
		parts = append(parts, dialogBorder.Render(body))
	}
	return strings.Join(parts, "\n")
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func reason(err error) string {
	return model.Reason(err)
}
