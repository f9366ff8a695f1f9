package tui

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/c360studio/checklist/storage"
)

// Checklist is the API the interactive list talks to. *client.Client
// satisfies it.
type Checklist interface {
	Get(ctx context.Context) ([]storage.Item, error)
	SetChecked(ctx context.Context, name string, checked bool) ([]storage.Item, error)
}

// listItem adapts storage.Item to bubbles/list.Item.
type listItem struct {
	storage.Item
}

func (i listItem) Title() string       { return i.Name }
func (i listItem) Description() string { return "" }
func (i listItem) FilterValue() string { return i.Name }

type itemDelegate struct{}

func (d itemDelegate) Height() int                         { return 1 }
func (d itemDelegate) Spacing() int                        { return 0 }
func (d itemDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, _ := item.(listItem)
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+line(it.Item))
}

type itemsMsg []storage.Item

type errMsg struct{ err error }

var (
	toggleKey  = key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle"))
	refreshKey = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh"))
)

// Model is the interactive checklist.
type Model struct {
	ctx    context.Context
	api    Checklist
	list   list.Model
	err    error
	width  int
	height int
}

// NewModel creates the interactive list for api.
func NewModel(ctx context.Context, api Checklist) Model {
	l := list.New(nil, itemDelegate{}, 80, 20)
	l.Title = titleStyle.Render("Checklist")
	l.SetShowHelp(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.SetStatusBarItemName("item", "items")
	l.AdditionalShortHelpKeys = func() []key.Binding { return []key.Binding{toggleKey, refreshKey} }
	l.AdditionalFullHelpKeys = func() []key.Binding { return []key.Binding{toggleKey, refreshKey} }

	return Model{ctx: ctx, api: api, list: l}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.refresh()
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		items, err := m.api.Get(m.ctx)
		if err != nil {
			return errMsg{err}
		}
		return itemsMsg(items)
	}
}

func (m Model) toggle(it storage.Item) tea.Cmd {
	return func() tea.Msg {
		items, err := m.api.SetChecked(m.ctx, it.Name, !it.Checked)
		if err != nil {
			return errMsg{err}
		}
		return itemsMsg(items)
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-4)
		return m, nil

	case itemsMsg:
		m.err = nil
		cmd := m.setItems(msg)
		return m, cmd

	case errMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case " ":
			if it, ok := m.list.SelectedItem().(listItem); ok {
				return m, m.toggle(it.Item)
			}
			return m, nil
		case "r":
			return m, m.refresh()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) setItems(items []storage.Item) tea.Cmd {
	li := make([]list.Item, 0, len(items))
	for _, it := range items {
		li = append(li, listItem{it})
	}
	m.list.Title = header(items)
	return m.list.SetItems(li)
}

// Items returns the items currently shown.
func (m Model) Items() []storage.Item {
	out := make([]storage.Item, 0, len(m.list.Items()))
	for _, it := range m.list.Items() {
		if li, ok := it.(listItem); ok {
			out = append(out, li.Item)
		}
	}
	return out
}

// View implements tea.Model.
func (m Model) View() string {
	content := m.list.View()
	if m.err != nil {
		content += "\n" + errorStyle.Render(m.err.Error())
	}
	return panelStyle.Render(content)
}

// Run starts the interactive list and blocks until the user quits.
func Run(ctx context.Context, api Checklist) error {
	p := tea.NewProgram(NewModel(ctx, api), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
