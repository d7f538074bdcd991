package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ordertalk/tagflow/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#95E1D3"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// RenderSummary formats the report for terminal display.
func RenderSummary(r *model.Report) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Transcript Tag Analysis"))
	b.WriteString("\n\n")

	b.WriteString(headingStyle.Render("Run Summary"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Documents processed:  %d\n", r.Summary.DocumentsProcessed)
	fmt.Fprintf(&b, "  %s  %d\n", successStyle.Render("Succeeded:          "), r.Summary.Succeeded)
	fmt.Fprintf(&b, "  %s  %d\n", warningStyle.Render("Permanently failed: "), r.Summary.PermanentlyFailed)
	fmt.Fprintf(&b, "  Duration:             %.1fs\n", r.Summary.DurationSeconds)
	b.WriteString(subtleStyle.Render(fmt.Sprintf("  Run ID: %s", r.RunID)))
	b.WriteString("\n\n")

	b.WriteString(headingStyle.Render("Recommended Tags by Category"))
	b.WriteString("\n")
	if len(r.RecommendedTags) == 0 {
		b.WriteString(subtleStyle.Render("  (none)"))
		b.WriteString("\n")
	}
	for _, category := range sortedKeys(r.RecommendedTags) {
		fmt.Fprintf(&b, "  %s\n", strings.ReplaceAll(category, "_", " "))
		for _, tag := range r.RecommendedTags[category] {
			fmt.Fprintf(&b, "    • %s (%d)\n", tag, r.TagFrequency[tag])
		}
	}
	b.WriteString("\n")

	b.WriteString(headingStyle.Render("Top Tags"))
	b.WriteString("\n")
	for _, tag := range TopTags(r.TagFrequency, 10) {
		fmt.Fprintf(&b, "  %-24s %d\n", tag, r.TagFrequency[tag])
	}

	return b.String()
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 0; i < len(keys)-1; i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	return keys
}
