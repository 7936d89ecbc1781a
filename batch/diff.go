package batch

import (
	"fmt"
	"strings"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// diffContext is the number of unchanged lines kept around each change.
const diffContext = 2

// LineDiff renders a line-oriented diff of a document before and after its
// fixes. Unchanged runs longer than the surrounding context are collapsed.
// Identical inputs produce an empty string.
func LineDiff(name string, before, after []byte) string {
	dmp := diffpatch.New()
	a, b, lines := dmp.DiffLinesToChars(string(before), string(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	changed := false
	for _, d := range diffs {
		if d.Type != diffpatch.DiffEqual {
			changed = true
			break
		}
	}
	if !changed {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", name, name)
	for i, d := range diffs {
		text := splitLines(d.Text)
		switch d.Type {
		case diffpatch.DiffDelete:
			writePrefixed(&sb, "-", text)
		case diffpatch.DiffInsert:
			writePrefixed(&sb, "+", text)
		case diffpatch.DiffEqual:
			head, tail := diffContext, diffContext
			if i == 0 {
				head = 0
			}
			if i == len(diffs)-1 {
				tail = 0
			}
			if len(text) <= head+tail {
				writePrefixed(&sb, " ", text)
				continue
			}
			writePrefixed(&sb, " ", text[:head])
			fmt.Fprintf(&sb, "@@ %d unchanged lines @@\n", len(text)-head-tail)
			writePrefixed(&sb, " ", text[len(text)-tail:])
		}
	}
	return sb.String()
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func writePrefixed(sb *strings.Builder, prefix string, lines []string) {
	for _, l := range lines {
		sb.WriteString(prefix)
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
}
