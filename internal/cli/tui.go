package cli

import (
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listGrabbedStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// OrderModel - Interactive layer reordering
// =============================================================================

// OrderModel is the bubbletea model for reordering layers. The list is shown
// top layer first; Order holds the result bottom to top.
type OrderModel struct {
	Order    []string
	Cursor   int // index into Order
	Grabbed  bool
	Done     bool
	Changed  bool
	Warnings map[string]string // layer id -> back-reference note
}

// NewOrderModel creates an order editor for order (bottom to top).
func NewOrderModel(order []string) OrderModel {
	return OrderModel{Order: slices.Clone(order), Cursor: len(order) - 1}
}

func (m OrderModel) Init() tea.Cmd {
	return nil
}

func (m OrderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	// The list is drawn top first, so "up" raises the index.
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "enter":
		m.Done = true
		return m, tea.Quit
	case " ":
		m.Grabbed = !m.Grabbed
	case "up", "k":
		m.move(+1)
	case "down", "j":
		m.move(-1)
	case "K", "shift+up":
		m.Grabbed = true
		m.move(+1)
	case "J", "shift+down":
		m.Grabbed = true
		m.move(-1)
	}
	return m, nil
}

// move shifts the cursor by d, dragging the grabbed layer along.
func (m *OrderModel) move(d int) {
	next := m.Cursor + d
	if next < 0 || next >= len(m.Order) {
		return
	}
	if m.Grabbed {
		m.Order[m.Cursor], m.Order[next] = m.Order[next], m.Order[m.Cursor]
		m.Changed = true
	}
	m.Cursor = next
}

func (m OrderModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Layer Order"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space grab  ⏎ save  q cancel"))
	b.WriteString("\n\n")

	for i := len(m.Order) - 1; i >= 0; i-- {
		id := m.Order[i]
		cursor := "  "
		style := listNormalStyle
		if i == m.Cursor {
			cursor = "▸ "
			style = listSelectedStyle
			if m.Grabbed {
				cursor = "≡ "
				style = listGrabbedStyle
			}
		}
		line := fmt.Sprintf("%s%2d  %s", cursor, i, id)
		b.WriteString(style.Render(line))
		if w, ok := m.Warnings[id]; ok {
			b.WriteString("  " + StyleWarning.Render(w))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("  top of stack is drawn first; layers read broadcasts from below"))
	return b.String()
}
