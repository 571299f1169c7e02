package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/revgraph/pkg/revision"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m HeadListModel, keys ...string) (HeadListModel, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(key(k))
		m = next.(HeadListModel)
	}
	return m, cmd
}

func testHeads(t *testing.T) []*revision.Revision {
	m := builtMap(t)
	return []*revision.Revision{mustGet(t, m, "c1"), mustGet(t, m, "x1")}
}

func TestHeadListNavigation(t *testing.T) {
	m := NewHeadListModel(testHeads(t), nil)

	m, _ = press(m, "down")
	if m.Cursor != 1 {
		t.Errorf("Cursor after down = %d, want 1", m.Cursor)
	}
	m, _ = press(m, "j", "j")
	if m.Cursor != 1 {
		t.Errorf("Cursor past last head = %d, want 1", m.Cursor)
	}
	m, _ = press(m, "k")
	if m.Cursor != 0 {
		t.Errorf("Cursor after k = %d, want 0", m.Cursor)
	}
	m, _ = press(m, "up")
	if m.Cursor != 0 {
		t.Errorf("Cursor before first head = %d, want 0", m.Cursor)
	}
}

func TestHeadListScrolls(t *testing.T) {
	heads := testHeads(t)
	m := NewHeadListModel(append(heads, heads...), nil)
	m.Height = 2

	m, _ = press(m, "down", "down", "down")
	if m.Cursor != 3 || m.Offset != 2 {
		t.Errorf("Cursor, Offset = %d, %d, want 3, 2", m.Cursor, m.Offset)
	}
	m, _ = press(m, "up", "up", "up")
	if m.Cursor != 0 || m.Offset != 0 {
		t.Errorf("Cursor, Offset = %d, %d, want 0, 0", m.Cursor, m.Offset)
	}
}

func TestHeadListSelect(t *testing.T) {
	m := NewHeadListModel(testHeads(t), nil)

	m, cmd := press(m, "down", "enter")
	if m.Selected == nil || m.Selected.ID != "x1" {
		t.Fatalf("Selected = %v, want x1", m.Selected)
	}
	if cmd == nil {
		t.Error("enter should quit the program")
	}
}

func TestHeadListEmpty(t *testing.T) {
	m := NewHeadListModel(nil, nil)

	m, cmd := press(m, "down", "enter")
	if m.Selected != nil || cmd != nil {
		t.Errorf("enter on empty list: Selected = %v, cmd = %v", m.Selected, cmd)
	}
}

func TestHeadListQuit(t *testing.T) {
	for _, k := range []string{"q", "esc"} {
		m, cmd := press(NewHeadListModel(testHeads(t), nil), k)
		if cmd == nil {
			t.Errorf("%s should quit", k)
		}
		if m.Selected != nil {
			t.Errorf("%s selected %s", k, m.Selected.ID)
		}
	}
}

func TestHeadListWindowSize(t *testing.T) {
	m := NewHeadListModel(testHeads(t), nil)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 8})
	if got := next.(HeadListModel).Height; got != 5 {
		t.Errorf("Height = %d, want 5", got)
	}
	next, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	if got := next.(HeadListModel).Height; got != 34 {
		t.Errorf("Height = %d, want 34", got)
	}
}

func TestHeadListView(t *testing.T) {
	m := NewHeadListModel(testHeads(t), []string{"c1"})

	view := m.View()
	for _, want := range []string{"Select Upgrade Target", "c1", "x1", "billing", "current", "[1/2]"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}
