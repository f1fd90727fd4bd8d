// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and feeds it client events
package ui

import (
	"time"

	"github.com/Resonate-Protocol/clocksync-go/pkg/clocksync"
	tea "github.com/charmbracelet/bubbletea"
)

// NewModel creates a new TUI model for a configured client
func NewModel(endpoint string, params clocksync.Params) Model {
	return Model{
		endpoint:        endpoint,
		targetPrecision: params.TargetPrecision(),
		timeoutDelay:    params.TimeoutDelay(),
		minUpperBound:   params.MinUpperBound(),
	}
}

// Run creates the TUI program; the caller runs it
func Run(model Model) *tea.Program {
	return tea.NewProgram(model, tea.WithAltScreen())
}

// sender is the part of *tea.Program the observer needs
type sender interface {
	Send(msg tea.Msg)
}

// Observer forwards client events into a running program
type Observer struct {
	program sender
	now     func() time.Time
}

// NewObserver returns a clocksync.Observer that feeds p
func NewObserver(p *tea.Program) *Observer {
	return &Observer{program: p, now: time.Now}
}

// ObserveSample implements clocksync.Observer
func (o *Observer) ObserveSample(s clocksync.Sample) {
	o.program.Send(SampleMsg{Sample: s})
}

// ObserveReading implements clocksync.Observer
func (o *Observer) ObserveReading(r clocksync.Reading) {
	o.program.Send(ReadingMsg{Reading: r, At: o.now()})
}

// ObserveFailure implements clocksync.Observer
func (o *Observer) ObserveFailure(err error) {
	o.program.Send(FailureMsg{Err: err, At: o.now()})
}
