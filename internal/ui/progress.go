package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Progress reports counted steps on one line. It only draws on a terminal;
// otherwise every call is a no-op.
type Progress struct {
	w       io.Writer
	message string
	total   int
	current int
	tty     bool
}

// NewProgress creates a progress line on w for total steps.
func NewProgress(w io.Writer, message string, total int) *Progress {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd())
	}
	return &Progress{w: w, message: message, total: total, tty: tty}
}

// Step advances the counter and shows label as the current step.
func (p *Progress) Step(label string) {
	p.current++
	if !p.tty {
		return
	}
	fmt.Fprintf(p.w, "\r\033[K%s %s %s", p.message, Muted.Render(fmt.Sprintf("(%d/%d)", p.current, p.total)), label)
}

// Done clears the progress line.
func (p *Progress) Done() {
	if p.tty {
		fmt.Fprint(p.w, "\r\033[K")
	}
}
