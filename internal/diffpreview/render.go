// Package diffpreview renders a colorized dry-run preview of a patch:
// context lines dimmed, deletions red, additions green.
package diffpreview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/floegence/diffstitch/internal/diffpatch"
)

// Styles holds the lipgloss styles used to render a preview.
type Styles struct {
	Context lipgloss.Style
	Add     lipgloss.Style
	Delete  lipgloss.Style
	Header  lipgloss.Style
}

// NewStyles returns the default preview palette: ANSI-16 colors for
// hunk lines and ANSI-256 color 39 for headers.
func NewStyles() Styles {
	return Styles{
		Context: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Add:     lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Delete:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		Header:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
	}
}

// Render produces a colorized preview of patch, one hunk at a time.
// It does not touch the filesystem or verify that the hunks can be
// located; pair it with a dry-run diffpatch.ApplyPatch result to show
// only hunks that actually resolved.
func Render(patch diffpatch.Patch, styles Styles) string {
	var b strings.Builder
	fmt.Fprintln(&b, styles.Header.Render(patch.FilePath))

	for i, hunk := range patch.Hunks {
		fmt.Fprintln(&b, styles.Header.Render(fmt.Sprintf("@@ hunk %d @@", i)))
		for _, line := range hunk.Lines {
			b.WriteString(renderLine(line, styles))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderLine(line diffpatch.Line, styles Styles) string {
	switch line.Sigil {
	case diffpatch.SigilAdd:
		return styles.Add.Render("+ " + line.Text)
	case diffpatch.SigilDelete:
		return styles.Delete.Render("- " + line.Text)
	default:
		return styles.Context.Render("  " + line.Text)
	}
}

// RenderFailureSummary renders a one-line note per hunk that could not
// be located, using the Delete style to draw the eye.
func RenderFailureSummary(failures []diffpatch.HunkFailure, styles Styles) string {
	if len(failures) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range failures {
		fmt.Fprintln(&b, styles.Delete.Render(fmt.Sprintf("hunk %d (%s): %s", f.Index, f.Path, f.Reason)))
	}
	return b.String()
}
