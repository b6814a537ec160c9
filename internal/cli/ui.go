package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/stratum/pkg/layer"
	"github.com/matzehuels/stratum/pkg/node"
	"github.com/matzehuels/stratum/pkg/registry"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - commands
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleHighlight for emphasized values.
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleSuccess for success messages.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)

	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// =============================================================================
// File Output
// =============================================================================

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// =============================================================================
// Key-Value Output
// =============================================================================

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

// =============================================================================
// Export Display
// =============================================================================

// printExportStats prints export statistics on a single line.
func printExportStats(layers, nodes, sources int, shape [2]int, cached bool) {
	parts := []string{
		fmt.Sprintf("%d layers", layers),
		fmt.Sprintf("%d nodes", nodes),
		fmt.Sprintf("%d sources", sources),
		fmt.Sprintf("%dx%d", shape[0], shape[1]),
	}

	status := iconFresh
	statusStyle := styleComputed
	if cached {
		status = iconCached
		statusStyle = styleCached
	}

	line := "  "
	for i, part := range parts {
		if i > 0 {
			line += StyleDim.Render(" · ")
		}
		line += StyleDim.Render(part)
	}
	fmt.Println(line + StyleDim.Render(" · ") + statusStyle.Render(status))
}

// =============================================================================
// Tables
// =============================================================================

func newTable(headers ...string) *table.Table {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			if col == 0 {
				return StyleNumber.Padding(0, 1)
			}
			return StyleValue.Padding(0, 1)
		})
}

// printLayerTable prints layers bottom to top.
func printLayerTable(layers []*layer.Layer, detailed bool) {
	if len(layers) == 0 {
		printInfo("No layers")
		return
	}
	t := newTable("#", "Layer", "State", "Frame", "Nodes")
	for i, l := range layers {
		t.Row(fmt.Sprint(i), l.ID(), l.State().String(), l.Frame().String(), fmt.Sprint(len(l.Nodes())))
	}
	fmt.Println(t.Render())
	if !detailed {
		return
	}
	for _, l := range layers {
		fmt.Println(StyleTitle.Render(l.ID()))
		for _, n := range l.Nodes() {
			fmt.Printf("  %s %s %s\n", StyleHighlight.Render(n.ID()), StyleDim.Render(n.Kind()), formatAttrs(n.Attrs()))
		}
		for _, lk := range l.Links() {
			printDetail("%s.%s %s %s.%s", lk.From, lk.FromPort, iconArrow, lk.To, lk.ToPort)
		}
	}
}

// printTagTable prints published tags with their owners and subscribers.
func printTagTable(reg *registry.Registry) {
	records := reg.Table().Records()
	if len(records) == 0 {
		printInfo("No broadcast tags published")
		return
	}
	subs := subscribersByTag(reg)
	t := newTable("Tag", "Owner", "Shape", "Published", "Subscribers")
	for _, rec := range records {
		shape := "-"
		if rec.Data != nil {
			shape = fmt.Sprintf("%dx%d", rec.Data.NX, rec.Data.NY)
		}
		t.Row(rec.Tag, rec.Owner, shape, formatRelativeTime(rec.PublishedAt), strings.Join(subs[rec.Tag], ", "))
	}
	fmt.Println(t.Render())
}

func subscribersByTag(reg *registry.Registry) map[string][]string {
	out := map[string][]string{}
	for _, l := range reg.Layers() {
		for _, s := range l.Subscribers() {
			if tag := s.Subscription(); tag != "" {
				out[tag] = append(out[tag], l.ID()+"/"+s.ID())
			}
		}
	}
	return out
}

// printOrder prints the layer order bottom to top.
func printOrder(order []string) {
	styled := make([]string, len(order))
	for i, id := range order {
		styled[i] = StyleHighlight.Render(id)
	}
	fmt.Println(StyleDim.Render("order: ") + strings.Join(styled, StyleDim.Render(" < ")))
}

// printBackReferences warns about subscriptions the order gates off.
func printBackReferences(refs []registry.BackReference) {
	for _, r := range refs {
		printWarning("%s/%s reads %s, but %s is not below %s", r.Layer, r.Node, r.Tag, r.Owner, r.Layer)
	}
}

// formatAttrs renders node parameters as sorted key=value pairs.
func formatAttrs(a node.Attrs) string {
	if len(a) == 0 {
		return ""
	}
	parts := make([]string, 0, len(a))
	for _, k := range slices.Sorted(maps.Keys(a)) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, a[k]))
	}
	return strings.Join(parts, " ")
}

// formatRelativeTime renders t relative to now.
func formatRelativeTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return t.Format("Jan 2 15:04")
	}
}

// =============================================================================
// Commands & Next Steps
// =============================================================================

// printNextStep prints a suggested next command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

// shortHash truncates a hex digest for display.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
