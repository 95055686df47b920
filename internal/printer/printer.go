// Package printer writes the human-facing console report. Colors are used
// only when the destination is a terminal and NO_COLOR is unset.
package printer

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Printer writes report lines to out and error lines to errOut.
type Printer struct {
	out    io.Writer
	errOut io.Writer

	green  *color.Color
	yellow *color.Color
	red    *color.Color
	cyan   *color.Color
}

// New returns a Printer for the given writers.
func New(out, errOut io.Writer) *Printer {
	p := &Printer{
		out:    out,
		errOut: errOut,
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed, color.Bold),
		cyan:   color.New(color.FgCyan),
	}
	setColor(colorEnabled(out), p.green, p.yellow, p.cyan)
	setColor(colorEnabled(errOut), p.red)
	return p
}

func setColor(on bool, cs ...*color.Color) {
	for _, c := range cs {
		if on {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// colorEnabled reports whether w is a terminal that accepts color.
func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Out returns the report writer.
func (p *Printer) Out() io.Writer { return p.out }

// Success prints a line in green.
func (p *Printer) Success(format string, a ...any) {
	p.green.Fprintf(p.out, format+"\n", a...)
}

// Warning prints a line in yellow.
func (p *Printer) Warning(format string, a ...any) {
	p.yellow.Fprintf(p.out, format+"\n", a...)
}

// Step prints a per-item progress line in cyan.
func (p *Printer) Step(format string, a ...any) {
	p.cyan.Fprintf(p.out, format+"\n", a...)
}

// Error prints a line in bold red to the error writer.
func (p *Printer) Error(format string, a ...any) {
	p.red.Fprintf(p.errOut, format+"\n", a...)
}

// Println prints a plain message (for output that doesn't need coloring)
func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.out, a...)
}

// Printf prints a plain formatted message (for output that doesn't need coloring)
func (p *Printer) Printf(format string, a ...any) {
	fmt.Fprintf(p.out, format, a...)
}
