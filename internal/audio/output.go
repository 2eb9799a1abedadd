package audio

import (
	"io"
	"time"
)

// TerminalOutput renders the beep as a terminal bell. It carries no real
// synthesiser, so pitch and duration are accepted and ignored.
type TerminalOutput struct {
	w io.Writer
}

func NewTerminalOutput(w io.Writer) *TerminalOutput {
	return &TerminalOutput{w: w}
}

func (t *TerminalOutput) Resume() error   { return nil }
func (t *TerminalOutput) Suspended() bool { return false }

func (t *TerminalOutput) Beep(freq float64, d time.Duration) {
	_, _ = t.w.Write([]byte("\a"))
}

// NopOutput discards every beep. Used when sound is disabled outright.
type NopOutput struct{}

func (NopOutput) Resume() error                      { return nil }
func (NopOutput) Suspended() bool                    { return false }
func (NopOutput) Beep(freq float64, d time.Duration) {}
