// Package output provides formatting utilities for tankctl: colored status
// lines, JSON and aligned tables.
package output

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorCyan   = "\033[0;36m"
)

// Styler formats messages with optional color codes for terminal output.
type Styler struct {
	noColor bool
}

// NewStyler creates a new Styler. If noColor is true, ANSI color codes are omitted.
func NewStyler(noColor bool) *Styler {
	return &Styler{noColor: noColor}
}

// ForWriter returns a Styler that only colors when w is a terminal and
// neither --no-color nor NO_COLOR is set.
func ForWriter(w io.Writer, noColor bool) *Styler {
	return NewStyler(noColor || !colorCapable(w))
}

func colorCapable(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func (s *Styler) Success(msg string) string {
	return s.format(colorGreen, "✓", msg)
}

func (s *Styler) Error(msg string) string {
	return s.format(colorRed, "✗", msg)
}

func (s *Styler) Info(msg string) string {
	return s.format(colorCyan, "ℹ", msg)
}

func (s *Styler) Warn(msg string) string {
	return s.format(colorYellow, "⚠", msg)
}

// Active renders a registration's active flag.
func (s *Styler) Active(active bool) string {
	if active {
		return s.paint(colorGreen, "active")
	}
	return s.paint(colorYellow, "disabled")
}

func (s *Styler) format(color, symbol, msg string) string {
	return s.paint(color, symbol) + " " + msg
}

func (s *Styler) paint(color, text string) string {
	if s.noColor {
		return text
	}
	return color + text + colorReset
}

func (s *Styler) FprintSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, s.Success(msg))
}

func (s *Styler) FprintError(w io.Writer, msg string) {
	fmt.Fprintln(w, s.Error(msg))
}

func (s *Styler) FprintInfo(w io.Writer, msg string) {
	fmt.Fprintln(w, s.Info(msg))
}

func (s *Styler) FprintWarn(w io.Writer, msg string) {
	fmt.Fprintln(w, s.Warn(msg))
}
