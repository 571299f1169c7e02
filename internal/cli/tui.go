package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/revgraph/pkg/revision"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// HeadListModel - Interactive head selection
// =============================================================================

// HeadListModel is the bubbletea model for picking one of several heads.
type HeadListModel struct {
	Heads    []*revision.Revision
	Current  map[string]bool
	Cursor   int
	Selected *revision.Revision
	Height   int
	Offset   int
}

// NewHeadListModel creates a new head list model. Heads already applied are
// marked as current.
func NewHeadListModel(heads []*revision.Revision, current []string) HeadListModel {
	return HeadListModel{
		Heads:   heads,
		Current: currentSet(current),
		Height:  15,
	}
}

func (m HeadListModel) Init() tea.Cmd {
	return nil
}

func (m HeadListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Heads)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Heads) == 0 {
				return m, nil
			}
			m.Selected = m.Heads[m.Cursor]
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m HeadListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Upgrade Target"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Heads))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		r := m.Heads[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		branches := strings.Join(r.Branches(), ", ")
		if branches == "" {
			branches = "—"
		}
		state := ""
		if m.Current[r.ID] {
			state = "current"
		}
		rows = append(rows, []string{cursor, r.ID, branches, state, r.Doc})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Head", "Branches", "State", "Message").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			idx := m.Offset + row
			if idx >= len(m.Heads) {
				return lipgloss.NewStyle()
			}
			base := lipgloss.NewStyle()
			if m.Current[m.Heads[idx].ID] {
				base = base.Foreground(colorDim)
			}
			if idx == m.Cursor {
				return base.Foreground(colorGreen).Bold(true)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Heads))))

	return b.String()
}

// pickHead runs the picker and returns the chosen head, or nil when the user
// quit without choosing.
func pickHead(heads []*revision.Revision, current []string) (*revision.Revision, error) {
	res, err := tea.NewProgram(NewHeadListModel(heads, current)).Run()
	if err != nil {
		return nil, err
	}
	return res.(HeadListModel).Selected, nil
}
