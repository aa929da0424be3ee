// Package terminal detects what the attached terminal can do.
//
// Lookout uses it to decide between styled and plain output, whether spinners
// and countdowns may redraw in place, and whether it may prompt for a token.
package terminal

import (
	"os"

	"golang.org/x/term"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

// Info holds terminal capability information.
type Info struct {
	IsTTY      bool
	StdinIsTTY bool
	NoColor    bool
	Width      int
	Height     int
	ForceFlag  bool // set by --no-color
}

// Detect returns terminal information for the current process.
func Detect() *Info {
	stdoutFD := int(os.Stdout.Fd())
	isTTY := term.IsTerminal(stdoutFD)

	width, height := defaultWidth, defaultHeight

	if isTTY {
		if w, h, err := term.GetSize(stdoutFD); err == nil && w > 0 {
			width, height = w, h
		}
	}

	// https://no-color.org/
	_, noColor := os.LookupEnv("NO_COLOR")

	if os.Getenv("TERM") == "dumb" {
		noColor = true
	}

	return &Info{
		IsTTY:      isTTY,
		StdinIsTTY: term.IsTerminal(int(os.Stdin.Fd())),
		NoColor:    noColor,
		Width:      width,
		Height:     height,
	}
}

// ColorEnabled reports whether colored output should be used.
func (t *Info) ColorEnabled() bool {
	if t.ForceFlag {
		return false
	}

	return t.IsTTY && !t.NoColor
}

// InteractiveEnabled reports whether the user can answer a prompt.
func (t *Info) InteractiveEnabled() bool {
	return t.IsTTY && t.StdinIsTTY
}

// SpinnersEnabled reports whether in-place animations are allowed.
func (t *Info) SpinnersEnabled() bool {
	return t.IsTTY && !t.NoColor
}

// FullScreenEnabled reports whether the live dashboard can take over the
// screen. Narrow terminals fall back to line output.
func (t *Info) FullScreenEnabled() bool {
	return t.InteractiveEnabled() && t.Width >= 60
}
