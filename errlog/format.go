package errlog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fatih/color"
)

// ErrorFormatter provides rustc-style error formatting
type ErrorFormatter struct {
	Color bool
	// MaxFiles limits the files listed per diagnostic; 0 lists all.
	MaxFiles int
}

func (ef *ErrorFormatter) paint(s string, attrs ...color.Attribute) string {
	c := color.New(attrs...)
	if ef.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

// Format formats a diagnostic in rustc style
func (ef *ErrorFormatter) Format(diag Diagnostic) string {
	var sb strings.Builder

	severity := string(diag.Severity)
	switch diag.Severity {
	case SeverityError:
		severity = ef.paint(severity, color.FgRed, color.Bold)
	case SeverityWarning:
		severity = ef.paint(severity, color.FgYellow, color.Bold)
	}
	fmt.Fprintf(&sb, "%s[%s]: %s\n", severity, diag.Code, diag.Message)
	fmt.Fprintf(&sb, " --> %s (%d reported)\n", diag.Tag, len(diag.Files))

	files := diag.Files
	more := 0
	if ef.MaxFiles > 0 && len(files) > ef.MaxFiles {
		more = len(files) - ef.MaxFiles
		files = files[:ef.MaxFiles]
	}
	sb.WriteString("     |\n")
	for _, f := range files {
		sb.WriteString("     | " + f + "\n")
	}
	if more > 0 {
		fmt.Fprintf(&sb, "     | ... and %d more\n", more)
	}

	for _, hint := range diag.Hints {
		sb.WriteString("     = " + ef.paint("help", color.FgCyan) + ": " + hint + "\n")
	}
	if diag.Category != "" {
		sb.WriteString("     = note: " + diag.Category + "\n")
	}
	return sb.String()
}

// Report renders per-category totals, largest first, with the element
// tags of each category.
func (ef *ErrorFormatter) Report(s *Summary) string {
	var sb strings.Builder
	sb.WriteString("Validation Error Summary\n")
	sb.WriteString("========================\n\n")

	cats := slices.Clone(s.Categories())
	slices.SortStableFunc(cats, func(a, b *Category) int { return b.Count() - a.Count() })

	total := 0
	for _, c := range cats {
		total += c.Count()
	}
	fmt.Fprintf(&sb, "Total Errors: %d\n\n", total)

	for _, c := range cats {
		percentage := float64(c.Count()) * 100 / float64(total)
		fmt.Fprintf(&sb, "%s: %d errors (%.1f%%)\n", ef.paint(strings.TrimSpace(c.Name), color.Bold), c.Count(), percentage)
		for _, el := range c.Elements {
			fmt.Fprintf(&sb, "  - %s: %d errors in %d documents\n", el.Tag, el.Count(), len(el.Documents()))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
