// ABOUTME: Bubbletea model for the watch TUI
// ABOUTME: Tracks readings and failures from repeated synchronizations
package ui

import (
	"fmt"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/pkg/clocksync"
	tea "github.com/charmbracelet/bubbletea"
)

// historySize is how many recent adjustments the sparkline keeps
const historySize = 30

// Model represents the TUI state
type Model struct {
	// Target
	endpoint        string
	targetPrecision float64
	timeoutDelay    float64
	minUpperBound   float64

	// Last exchange
	lastSample  clocksync.Sample
	hasSample   bool
	lastReading clocksync.Reading
	hasReading  bool
	lastErr     string
	lastAt      time.Time

	// Stats
	successful    int64
	untrustworthy int64
	failed        int64
	history       []float64

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case SampleMsg:
		m.lastSample = msg.Sample
		m.hasSample = true
	case ReadingMsg:
		m.applyReading(msg)
	case FailureMsg:
		m.applyFailure(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderReading()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders the target and the last outcome
func (m Model) renderHeader() string {
	icon := "…"
	text := "Waiting for first reading"
	switch {
	case m.lastErr != "":
		icon = "✗"
		text = "Failed"
	case m.hasReading && m.lastReading.Successful:
		icon = "✓"
		text = fmt.Sprintf("Synced (adjust: %+.1fms, error: ±%.1fms)", m.lastReading.Adjust, m.lastReading.Error)
	case m.hasReading:
		icon = "⚠"
		text = "Round trip too slow"
	}

	return fmt.Sprintf(`┌─ Clock Sync ─────────────────────────────────────────┐
│ Server: %-44s │
│ State:  %s %-42s │
├──────────────────────────────────────────────────────┤
`, truncate(m.endpoint, 44), icon, truncate(text, 42))
}

// renderReading renders the last reading or failure
func (m Model) renderReading() string {
	if m.lastErr != "" {
		return fmt.Sprintf("│ Error:  %-44s │\n", truncate(m.lastErr, 44))
	}
	if !m.hasReading {
		return "│ No reading yet                                       │\n"
	}

	r := m.lastReading
	s := fmt.Sprintf("│ Adjust:     %+10.1fms%-29s │\n", r.Adjust, "")
	s += fmt.Sprintf("│ Error:      %10.1fms%-29s │\n", r.Error, "")
	s += fmt.Sprintf("│ Round trip: %10.1fms%-29s │\n", 2*r.HalfRoundTrip, "")
	s += fmt.Sprintf("│ Precision:  [%s] %-20s │\n",
		renderBar(r.Error, m.targetPrecision, 20), precisionLabel(r, m.targetPrecision))
	s += fmt.Sprintf("│ History:    %-40s │\n", sparkline(m.history))

	return s
}

// renderStats renders outcome counters
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ OK: %-6d Slow: %-6d Failed: %-6d%-16s │
│                                                      │
`, m.successful, m.untrustworthy, m.failed, "")
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ c:Clear  d:Debug  q:Quit                             │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders the configured bounds and raw stamps
func (m Model) renderDebug() string {
	s := fmt.Sprintf(`│ DEBUG:                                               │
│   Timeout delay:   %8.2fms%-23s │
│   Min upper bound: %8.2fms%-23s │
`, m.timeoutDelay, "", m.minUpperBound, "")
	if m.hasSample {
		s += fmt.Sprintf("│   Sent %d  Recv %d%-14s │\n", m.lastSample.Sent, m.lastSample.Received, "")
		s += fmt.Sprintf("│   Remote %d%-28s │\n", m.lastSample.Remote, "")
	}
	return s
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "c":
		m.successful = 0
		m.untrustworthy = 0
		m.failed = 0
		m.history = nil
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyReading updates model from a reading
func (m *Model) applyReading(msg ReadingMsg) {
	m.lastReading = msg.Reading
	m.hasReading = true
	m.lastErr = ""
	m.lastAt = msg.At

	if msg.Reading.Successful {
		m.successful++
		m.history = append(m.history, msg.Reading.Adjust)
		if len(m.history) > historySize {
			m.history = m.history[len(m.history)-historySize:]
		}
	} else {
		m.untrustworthy++
	}
}

// applyFailure updates model from a failed attempt
func (m *Model) applyFailure(msg FailureMsg) {
	m.failed++
	m.lastAt = msg.At
	if msg.Err != nil {
		m.lastErr = msg.Err.Error()
	}
}

// SampleMsg carries a raw exchange
type SampleMsg struct {
	Sample clocksync.Sample
}

// ReadingMsg carries a completed reading
type ReadingMsg struct {
	Reading clocksync.Reading
	At      time.Time
}

// FailureMsg carries a failed exchange or timing assertion
type FailureMsg struct {
	Err error
	At  time.Time
}

// Utility functions
func renderBar(value, max float64, width int) string {
	filled := width
	if max > 0 {
		filled = int(value * float64(width) / max)
	}
	if filled > width {
		filled = width
	}
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func precisionLabel(r clocksync.Reading, target float64) string {
	if r.Error <= target {
		return "within target"
	}
	return "above target"
}

// sparkline scales values between their minimum and maximum
func sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	levels := []rune("▁▂▃▄▅▆▇█")

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	out := make([]rune, len(values))
	for i, v := range values {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(levels)-1))
		}
		out[i] = levels[idx]
	}
	return string(out)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
