// Package prompt asks the user for input on the terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/musher-dev/lookout/internal/output"
)

var errCanceled = errors.New("prompt canceled")

// IsCanceled reports whether err means the user aborted the prompt (EOF on
// stdin or Ctrl-D).
func IsCanceled(err error) bool {
	return errors.Is(err, errCanceled)
}

// Prompter handles interactive prompts.
type Prompter struct {
	out    *output.Writer
	reader *bufio.Reader
	secret func() ([]byte, error)
}

// New creates a Prompter reading from stdin.
func New(out *output.Writer) *Prompter {
	p := NewWithInput(out, os.Stdin)

	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		p.secret = func() ([]byte, error) { return term.ReadPassword(fd) }
	}

	return p
}

// NewWithInput creates a Prompter reading from in. Secret input is read as a
// plain line.
func NewWithInput(out *output.Writer, in io.Reader) *Prompter {
	return &Prompter{
		out:    out,
		reader: bufio.NewReader(in),
	}
}

// CanPrompt reports whether interactive prompts are available.
func (p *Prompter) CanPrompt() bool {
	return p.out.Terminal().InteractiveEnabled() && !p.out.NoInput
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(message string, defaultValue bool) (bool, error) {
	hint := "y/N"
	if defaultValue {
		hint = "Y/n"
	}

	p.out.Print("%s [%s]: ", message, hint)

	input, err := p.readLine()
	if err != nil {
		return defaultValue, err
	}

	switch strings.ToLower(input) {
	case "":
		return defaultValue, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Text asks for a line of visible input.
func (p *Prompter) Text(label string) (string, error) {
	p.out.Print("%s: ", label)
	return p.readLine()
}

// Secret asks for input without echoing it, such as an access token.
func (p *Prompter) Secret(label string) (string, error) {
	p.out.Print("%s: ", label)

	if p.secret == nil {
		return p.readLine()
	}

	value, err := p.secret()
	p.out.Println()

	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}

	return strings.TrimSpace(string(value)), nil
}

// Select asks the user to pick one option and returns its index.
func (p *Prompter) Select(message string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, fmt.Errorf("no options to select from")
	}

	p.out.Println(message)

	for i, opt := range options {
		p.out.Print("  [%d] %s\n", i+1, opt)
	}

	p.out.Println()

	for {
		p.out.Print("Select [1-%d]: ", len(options))

		input, err := p.readLine()
		if err != nil {
			return -1, err
		}

		if input == "" {
			continue
		}

		num, convErr := strconv.Atoi(input)
		if convErr != nil || num < 1 || num > len(options) {
			p.out.Warning("Invalid selection. Enter a number between 1 and %d", len(options))
			continue
		}

		return num - 1, nil
	}
}

func (p *Prompter) readLine() (string, error) {
	input, err := p.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && strings.TrimSpace(input) == "" {
			return "", errCanceled
		}

		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read input: %w", err)
		}
	}

	return strings.TrimSpace(input), nil
}
