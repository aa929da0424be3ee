package output

import (
	"time"

	"github.com/briandowns/spinner"
)

// Spinner wraps briandowns/spinner and degrades to plain "message... done"
// output when the terminal cannot animate.
type Spinner struct {
	spinner  *spinner.Spinner
	message  string
	writer   *Writer
	disabled bool
}

// Spinner creates a spinner for a backend call that may take a while.
func (w *Writer) Spinner(message string) *Spinner {
	if w.Quiet || w.JSON || !w.terminal.SpinnersEnabled() {
		return &Spinner{disabled: true, message: message, writer: w}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Writer = w.Err
	s.Suffix = " " + message

	return &Spinner{
		spinner: s,
		message: message,
		writer:  w,
	}
}

// Start begins the animation.
func (s *Spinner) Start() {
	if s.disabled {
		if !s.writer.JSON {
			s.writer.Print("%s... ", s.message)
		}

		return
	}

	s.spinner.Start()
}

// Stop stops the animation without a trailing message.
func (s *Spinner) Stop() {
	if s.disabled {
		if !s.writer.JSON {
			s.writer.Println()
		}

		return
	}

	s.spinner.Stop()
}

// StopWithSuccess stops the spinner and shows a success line.
func (s *Spinner) StopWithSuccess(message string) {
	s.stopWith("done", ToneSuccess, message)
}

// StopWithFailure stops the spinner and shows a failure line.
func (s *Spinner) StopWithFailure(message string) {
	s.stopWith("failed", ToneFailure, message)
}

// StopWithWarning stops the spinner and shows a warning line.
func (s *Spinner) StopWithWarning(message string) {
	s.stopWith("warning", ToneWarning, message)
}

// UpdateMessage changes the spinner message.
func (s *Spinner) UpdateMessage(message string) {
	s.message = message
	if !s.disabled {
		s.spinner.Suffix = " " + message
	}
}

func (s *Spinner) stopWith(word string, tone Tone, message string) {
	if s.disabled {
		if !s.writer.JSON {
			s.writer.Println(word)
		}
	} else {
		s.spinner.Stop()
	}

	if message != "" {
		s.writer.Status(tone, "%s", message)
	}
}
