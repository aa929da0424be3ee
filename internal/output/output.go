// Package output writes everything Lookout shows the user.
//
// Commands never touch os.Stdout directly; they receive a *Writer so tests
// can capture output and so --json, --quiet and --no-color apply uniformly.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/musher-dev/lookout/internal/terminal"
)

type contextKey struct{}

// Status symbols.
const (
	CheckMark   = "\u2713" // ✓
	XMark       = "\u2717" // ✗
	WarningMark = "\u26A0" // ⚠
	InfoMark    = "\u2139" // ℹ
)

// Tone selects the color and symbol of a status line.
type Tone int

// Tones in increasing severity.
const (
	ToneMuted Tone = iota
	ToneInfo
	ToneSuccess
	ToneWarning
	ToneFailure
)

// Writer handles CLI output with multiple modes.
type Writer struct {
	Out     io.Writer
	Err     io.Writer
	JSON    bool
	Quiet   bool
	Verbose bool
	NoInput bool

	terminal *terminal.Info
	palette  map[Tone]*color.Color
}

// Default returns a Writer for stdout/stderr.
func Default() *Writer {
	return NewWriter(os.Stdout, os.Stderr, terminal.Detect())
}

// NewWriter creates a Writer with custom writers and terminal info.
func NewWriter(out, errOut io.Writer, term *terminal.Info) *Writer {
	w := &Writer{
		Out:      out,
		Err:      errOut,
		terminal: term,
		palette: map[Tone]*color.Color{
			ToneMuted:   color.New(color.FgHiBlack),
			ToneInfo:    color.New(color.FgCyan),
			ToneSuccess: color.New(color.FgGreen),
			ToneWarning: color.New(color.FgYellow),
			ToneFailure: color.New(color.FgRed),
		},
	}

	if !term.ColorEnabled() {
		color.NoColor = true
	}

	return w
}

// WithContext stores the Writer in the context.
func (w *Writer) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, w)
}

// FromContext retrieves the Writer from context, or returns Default().
func FromContext(ctx context.Context) *Writer {
	if w, ok := ctx.Value(contextKey{}).(*Writer); ok {
		return w
	}

	return Default()
}

// Terminal returns the terminal info.
func (w *Writer) Terminal() *terminal.Info {
	return w.terminal
}

// SetNoColor disables colored output.
func (w *Writer) SetNoColor(disabled bool) {
	w.terminal.ForceFlag = disabled
	if disabled {
		color.NoColor = true
	}
}

// Print writes to stdout unless quiet.
func (w *Writer) Print(format string, args ...any) {
	if !w.Quiet {
		fmt.Fprintf(w.Out, format, args...)
	}
}

// Println writes a line to stdout unless quiet.
func (w *Writer) Println(args ...any) {
	if !w.Quiet {
		fmt.Fprintln(w.Out, args...)
	}
}

// PrintJSON writes v as indented JSON. It ignores quiet mode: a caller that
// asked for --json always gets a document.
func (w *Writer) PrintJSON(v any) error {
	enc := json.NewEncoder(w.Out)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// Error writes to stderr.
func (w *Writer) Error(format string, args ...any) {
	fmt.Fprintf(w.Err, format, args...)
}

// Errorln writes a line to stderr.
func (w *Writer) Errorln(args ...any) {
	fmt.Fprintln(w.Err, args...)
}

// Write implements io.Writer on Out.
func (w *Writer) Write(p []byte) (int, error) {
	if w.Quiet {
		return len(p), nil
	}

	return w.Out.Write(p)
}

// Debug writes to stdout only in verbose mode.
func (w *Writer) Debug(format string, args ...any) {
	if w.Verbose {
		w.palette[ToneMuted].Fprintf(w.Out, "[debug] "+format+"\n", args...)
	}
}

// Success writes a line prefixed with a check mark.
func (w *Writer) Success(format string, args ...any) {
	w.Status(ToneSuccess, format, args...)
}

// Failure writes a line prefixed with an X mark to stderr. Quiet mode does
// not hide failures.
func (w *Writer) Failure(format string, args ...any) {
	w.Status(ToneFailure, format, args...)
}

// Warning writes a line prefixed with a warning sign.
func (w *Writer) Warning(format string, args ...any) {
	w.Status(ToneWarning, format, args...)
}

// Info writes a line prefixed with an info sign.
func (w *Writer) Info(format string, args ...any) {
	w.Status(ToneInfo, format, args...)
}

// Muted writes gray text.
func (w *Writer) Muted(format string, args ...any) {
	w.Status(ToneMuted, format, args...)
}

// Status writes one line in the given tone.
func (w *Writer) Status(tone Tone, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	if tone == ToneFailure {
		w.writeStatus(w.Err, tone, XMark, msg)
		return
	}

	if w.Quiet {
		return
	}

	w.writeStatus(w.Out, tone, tone.symbol(), msg)
}

// Colorize returns s styled in the given tone when color is enabled.
func (w *Writer) Colorize(tone Tone, s string) string {
	if !w.terminal.ColorEnabled() {
		return s
	}

	return w.palette[tone].Sprint(s)
}

func (w *Writer) writeStatus(dst io.Writer, tone Tone, prefix, message string) {
	if prefix == "" {
		if w.terminal.ColorEnabled() {
			w.palette[tone].Fprintln(dst, message)
		} else {
			fmt.Fprintln(dst, message)
		}

		return
	}

	if w.terminal.ColorEnabled() {
		w.palette[tone].Fprint(dst, prefix+" ")
		fmt.Fprintln(dst, message)

		return
	}

	fmt.Fprintln(dst, prefix+" "+message)
}

func (t Tone) symbol() string {
	switch t {
	case ToneInfo:
		return InfoMark
	case ToneSuccess:
		return CheckMark
	case ToneWarning:
		return WarningMark
	case ToneFailure:
		return XMark
	default:
		return ""
	}
}
