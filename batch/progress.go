package batch

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Progress prints one glyph per finished document: "." when it was
// transformed, "S" when it was skipped and "F" when it failed. A nil
// Progress prints nothing.
type Progress struct {
	w     io.Writer
	color bool

	mu    sync.Mutex
	count int
}

// NewProgress writes glyphs to w, colored when useColor is set.
func NewProgress(w io.Writer, useColor bool) *Progress {
	return &Progress{w: w, color: useColor}
}

// Done records a transformed document.
func (p *Progress) Done() { p.glyph(".", color.FgGreen) }

// Skipped records a document whose output already exists.
func (p *Progress) Skipped() { p.glyph("S", color.FgYellow) }

// Failed records a document whose transformation returned an error.
func (p *Progress) Failed() { p.glyph("F", color.FgRed, color.Bold) }

func (p *Progress) glyph(s string, attrs ...color.Attribute) {
	if p == nil {
		return
	}
	c := color.New(attrs...)
	if p.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c.Fprint(p.w, s)
	p.count++
}

// Finish terminates the glyph line if anything was printed.
func (p *Progress) Finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.count > 0 {
		fmt.Fprintln(p.w)
	}
}

// WriteSummary prints the totals of res followed by each failure.
func WriteSummary(w io.Writer, res Result) {
	fmt.Fprintf(w, "%d processed, %d skipped, %d failed\n", len(res.Done), len(res.Skipped), len(res.Failed))
	for _, f := range res.Failed {
		fmt.Fprintf(w, "  %s: %v\n", f.Path, f.Err)
	}
}
