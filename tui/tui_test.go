package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/checklist/storage"
)

type fakeChecklist struct {
	items []storage.Item
	err   error
	sets  []string
}

func (f *fakeChecklist) Get(context.Context) ([]storage.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]storage.Item(nil), f.items...), nil
}

func (f *fakeChecklist) SetChecked(_ context.Context, name string, checked bool) ([]storage.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sets = append(f.sets, name)
	for i := range f.items {
		if f.items[i].Name == name {
			f.items[i].Checked = checked
			return append([]storage.Item(nil), f.items...), nil
		}
	}
	return nil, storage.ErrItemNotFound
}

// apply runs cmd synchronously and feeds its message back into the model.
func apply(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	return next.(Model)
}

func press(m Model, k string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	if k == " " {
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	} else {
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestRender(t *testing.T) {
	out := Render([]storage.Item{
		{Name: "Trash", Checked: true},
		{Name: "Dishes"},
	})
	assert.Contains(t, out, "Checklist")
	assert.Contains(t, out, "Trash")
	assert.Contains(t, out, "Dishes")
	assert.Contains(t, out, "1/2")
}

func TestRenderEmpty(t *testing.T) {
	assert.Contains(t, Render(nil), "No items.")
}

func TestProgressBar(t *testing.T) {
	items := []storage.Item{{Checked: true}, {Checked: true}, {}, {}}
	bar := progressBar(items, 10)
	assert.Equal(t, 5, strings.Count(bar, "█"))
	assert.Equal(t, 5, strings.Count(bar, "░"))
	assert.True(t, strings.HasSuffix(bar, "2/4"))
}

func TestModelLoadsAndToggles(t *testing.T) {
	api := &fakeChecklist{items: []storage.Item{{Name: "Trash"}, {Name: "Dishes"}}}
	m := NewModel(context.Background(), api)

	m = apply(t, m, m.Init())
	assert.Equal(t, api.items, m.Items())

	m, cmd := press(m, " ")
	m = apply(t, m, cmd)
	assert.Equal(t, []string{"Trash"}, api.sets)
	assert.True(t, m.Items()[0].Checked)

	m, cmd = press(m, " ")
	m = apply(t, m, cmd)
	assert.False(t, m.Items()[0].Checked)
}

func TestModelRefresh(t *testing.T) {
	api := &fakeChecklist{items: []storage.Item{{Name: "Trash"}}}
	m := NewModel(context.Background(), api)
	m = apply(t, m, m.Init())

	api.items = append(api.items, storage.Item{Name: "Laundry", Checked: true})
	m, cmd := press(m, "r")
	m = apply(t, m, cmd)
	assert.Len(t, m.Items(), 2)
}

func TestModelShowsErrors(t *testing.T) {
	api := &fakeChecklist{err: errors.New("connection refused")}
	m := NewModel(context.Background(), api)
	m = apply(t, m, m.Init())

	assert.Contains(t, m.View(), "connection refused")
	assert.Empty(t, m.Items())
}

func TestModelQuit(t *testing.T) {
	m := NewModel(context.Background(), &fakeChecklist{})
	_, cmd := press(m, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
