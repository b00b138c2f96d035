// Package progress provides CLI progress indicators. Output goes to stderr
// to keep stdout clean for piping, and TTY detection ensures proper formatting
// in both interactive and scripted usage.
package progress

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// minItems is the minimum number of items before showing progress.
// For small operations, progress adds noise without benefit.
const minItems = 100

// clearLine blanks a progress line on a terminal.
const clearLine = "\r\033[K"

// Progress tracks and displays document counts for export and import.
type Progress struct {
	w       io.Writer
	label   string
	total   int64
	current int64
	isTTY   bool
}

// New creates a progress reporter that writes to stderr. A total of zero
// means the count is unknown; only the running count is shown.
func New(label string, total int64) *Progress {
	return NewWriter(os.Stderr, label, total)
}

// NewWriter creates a progress reporter on w. Nothing is drawn unless w is
// a terminal.
func NewWriter(w io.Writer, label string, total int64) *Progress {
	f, ok := w.(*os.File)
	return &Progress{
		w:     w,
		label: label,
		total: total,
		isTTY: ok && term.IsTerminal(int(f.Fd())),
	}
}

// Add advances the counter by n and redraws.
func (p *Progress) Add(n int) {
	p.current += int64(n)
	p.draw()
}

// Count returns the number of items recorded so far.
func (p *Progress) Count() int64 { return p.current }

func (p *Progress) draw() {
	if !p.isTTY || (p.total > 0 && p.total < minItems) {
		return
	}
	if p.total > 0 {
		pct := p.current * 100 / p.total
		fmt.Fprintf(p.w, "\r%s... %d/%d (%d%%)", p.label, p.current, p.total, pct)
		return
	}
	fmt.Fprintf(p.w, "\r%s... %d", p.label, p.current)
}

// Done clears the progress line (on TTY) to make way for final output.
func (p *Progress) Done() {
	if p.isTTY && p.current > 0 {
		fmt.Fprint(p.w, clearLine)
	}
}
