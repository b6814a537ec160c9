package cli

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/stratum/pkg/node"
)

func TestFormatAttrs(t *testing.T) {
	if got := formatAttrs(nil); got != "" {
		t.Errorf("formatAttrs(nil) = %q", got)
	}
	got := formatAttrs(node.Attrs{"lo": 0.0, "hi": 1.0, "angle": 90.0})
	if got != "angle=90 hi=1 lo=0" {
		t.Errorf("formatAttrs = %q", got)
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		t    time.Time
		want string
	}{
		{now, "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
	}
	for _, tt := range tests {
		if got := formatRelativeTime(tt.t); got != tt.want {
			t.Errorf("formatRelativeTime(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
	old := time.Date(2020, 3, 4, 5, 6, 0, 0, time.Local)
	if got := formatRelativeTime(old); got != "Mar 4 05:06" {
		t.Errorf("formatRelativeTime(old) = %q", got)
	}
}

func TestShortHash(t *testing.T) {
	if got := shortHash("abc"); got != "abc" {
		t.Errorf("shortHash(abc) = %q", got)
	}
	if got := shortHash(strings.Repeat("f", 64)); len(got) != 12 {
		t.Errorf("shortHash length = %d", len(got))
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m OrderModel, keys ...string) OrderModel {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(OrderModel)
	}
	return m
}

func TestOrderModelStartsAtTop(t *testing.T) {
	m := NewOrderModel([]string{"a", "b", "c"})
	if m.Cursor != 2 {
		t.Errorf("cursor = %d, want 2", m.Cursor)
	}
}

func TestOrderModelNavigate(t *testing.T) {
	m := press(NewOrderModel([]string{"a", "b", "c"}), "down", "down", "down")
	if m.Cursor != 0 {
		t.Errorf("cursor = %d, want 0 (clamped)", m.Cursor)
	}
	m = press(m, "k")
	if m.Cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.Cursor)
	}
	if m.Changed {
		t.Error("navigation alone should not change the order")
	}
}

func TestOrderModelDrag(t *testing.T) {
	// Grab the top layer and drag it to the bottom.
	m := press(NewOrderModel([]string{"a", "b", "c"}), " ", "down", "down", "enter")
	if got := strings.Join(m.Order, ","); got != "c,a,b" {
		t.Errorf("order = %s, want c,a,b", got)
	}
	if !m.Done || !m.Changed {
		t.Errorf("done=%v changed=%v", m.Done, m.Changed)
	}
}

func TestOrderModelShiftDrag(t *testing.T) {
	m := press(NewOrderModel([]string{"a", "b", "c"}), "down", "down", "K")
	if got := strings.Join(m.Order, ","); got != "b,a,c" {
		t.Errorf("order = %s, want b,a,c", got)
	}
}

func TestOrderModelCancel(t *testing.T) {
	m := press(NewOrderModel([]string{"a", "b"}), " ", "down", "esc")
	if m.Done {
		t.Error("esc should not confirm")
	}
}

func TestOrderModelView(t *testing.T) {
	m := NewOrderModel([]string{"bottom", "top"})
	m.Warnings = map[string]string{"bottom": "reads x from above"}
	v := m.View()
	if strings.Index(v, "top") > strings.Index(v, "bottom") {
		t.Error("view should list the top layer first")
	}
	if !strings.Contains(v, "reads x from above") {
		t.Error("view should show warnings")
	}
}
