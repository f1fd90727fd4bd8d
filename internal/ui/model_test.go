// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests reading updates, message handling, and rendering
package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/pkg/clocksync"
	tea "github.com/charmbracelet/bubbletea"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	return NewModel("http://localhost:5579", clocksync.DefaultParams())
}

func sized(m Model) Model {
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(Model)
}

func TestNewModel(t *testing.T) {
	model := newTestModel(t)

	if model.hasReading {
		t.Error("expected no reading initially")
	}

	if model.timeoutDelay != 102 {
		t.Errorf("expected timeoutDelay 102, got %v", model.timeoutDelay)
	}

	if model.minUpperBound != 1 {
		t.Errorf("expected minUpperBound 1, got %v", model.minUpperBound)
	}

	if model.showDebug {
		t.Error("expected showDebug to be false initially")
	}
}

func TestLoadingUntilSized(t *testing.T) {
	model := newTestModel(t)

	if model.View() != "Loading..." {
		t.Errorf("expected Loading..., got %q", model.View())
	}

	view := sized(model).View()
	if !strings.Contains(view, "localhost:5579") {
		t.Error("expected endpoint in view")
	}
	if !strings.Contains(view, "No reading yet") {
		t.Error("expected placeholder before first reading")
	}
}

func TestReadingMsg(t *testing.T) {
	model := sized(newTestModel(t))

	updated, _ := model.Update(ReadingMsg{
		Reading: clocksync.Reading{Error: 4, Adjust: 45, Successful: true, HalfRoundTrip: 5},
		At:      time.Unix(100, 0),
	})
	model = updated.(Model)

	if !model.hasReading {
		t.Fatal("expected reading to be recorded")
	}

	if model.successful != 1 || model.untrustworthy != 0 {
		t.Errorf("expected 1 successful, got %d/%d", model.successful, model.untrustworthy)
	}

	if len(model.history) != 1 || model.history[0] != 45 {
		t.Errorf("expected history [45], got %v", model.history)
	}

	view := model.View()
	if !strings.Contains(view, "Synced") {
		t.Error("expected synced state in view")
	}
	if !strings.Contains(view, "+45.0ms") {
		t.Errorf("expected adjust in view, got:\n%s", view)
	}
}

func TestUntrustworthyReading(t *testing.T) {
	model := sized(newTestModel(t))

	updated, _ := model.Update(ReadingMsg{Reading: clocksync.Reading{Error: 98, Adjust: -50}})
	model = updated.(Model)

	if model.untrustworthy != 1 {
		t.Errorf("expected 1 untrustworthy reading, got %d", model.untrustworthy)
	}

	if len(model.history) != 0 {
		t.Error("untrustworthy readings should not enter history")
	}

	if !strings.Contains(model.View(), "Round trip too slow") {
		t.Error("expected slow state in view")
	}
}

func TestFailureMsg(t *testing.T) {
	model := sized(newTestModel(t))

	updated, _ := model.Update(FailureMsg{Err: errors.New("connection refused")})
	model = updated.(Model)

	if model.failed != 1 {
		t.Errorf("expected 1 failure, got %d", model.failed)
	}

	if !strings.Contains(model.View(), "connection refused") {
		t.Error("expected error in view")
	}

	// A later reading clears the error
	updated, _ = model.Update(ReadingMsg{Reading: clocksync.Reading{Successful: true}})
	model = updated.(Model)

	if model.lastErr != "" {
		t.Errorf("expected error cleared, got %q", model.lastErr)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	model := newTestModel(t)

	for i := 0; i < historySize+5; i++ {
		model.applyReading(ReadingMsg{Reading: clocksync.Reading{Adjust: float64(i), Successful: true}})
	}

	if len(model.history) != historySize {
		t.Fatalf("expected %d entries, got %d", historySize, len(model.history))
	}

	if model.history[0] != 5 {
		t.Errorf("expected oldest entries dropped, first is %v", model.history[0])
	}
}

func TestKeys(t *testing.T) {
	model := sized(newTestModel(t))
	model.applyReading(ReadingMsg{Reading: clocksync.Reading{Adjust: 1, Successful: true}})
	model.applyFailure(FailureMsg{Err: errors.New("boom")})

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	model = updated.(Model)
	if !model.showDebug {
		t.Error("expected d to toggle debug")
	}
	if !strings.Contains(model.View(), "Timeout delay") {
		t.Error("expected debug section in view")
	}

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	model = updated.(Model)
	if model.successful != 0 || model.failed != 0 || len(model.history) != 0 {
		t.Error("expected c to clear stats")
	}

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Error("expected q to return a quit command")
	}
}

type recordingSender struct {
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.msgs = append(r.msgs, msg)
}

func TestObserverForwardsEvents(t *testing.T) {
	rec := &recordingSender{}
	at := time.Unix(42, 0)
	obs := &Observer{program: rec, now: func() time.Time { return at }}

	var _ clocksync.Observer = obs

	obs.ObserveSample(clocksync.Sample{Sent: 1})
	obs.ObserveReading(clocksync.Reading{Adjust: 2})
	obs.ObserveFailure(errors.New("x"))

	if len(rec.msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(rec.msgs))
	}

	if msg, ok := rec.msgs[1].(ReadingMsg); !ok || msg.Reading.Adjust != 2 || !msg.At.Equal(at) {
		t.Errorf("unexpected reading message %#v", rec.msgs[1])
	}

	if _, ok := rec.msgs[2].(FailureMsg); !ok {
		t.Errorf("unexpected failure message %#v", rec.msgs[2])
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value, max float64
		width      int
		expected   string
	}{
		{0, 50, 4, "░░░░"},
		{25, 50, 4, "██░░"},
		{50, 50, 4, "████"},
		{500, 50, 4, "████"},
		{1, 0, 2, "██"},
	}

	for _, tt := range tests {
		result := renderBar(tt.value, tt.max, tt.width)
		if result != tt.expected {
			t.Errorf("renderBar(%v, %v, %d) = %q, expected %q",
				tt.value, tt.max, tt.width, result, tt.expected)
		}
	}
}

func TestSparkline(t *testing.T) {
	if sparkline(nil) != "" {
		t.Error("expected empty sparkline for no values")
	}

	if got := sparkline([]float64{3, 3}); got != "▁▁" {
		t.Errorf("flat values: got %q", got)
	}

	if got := sparkline([]float64{0, 10}); got != "▁█" {
		t.Errorf("min/max: got %q", got)
	}
}

func TestTruncateFunction(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"this is longer than allowed", 10, "this is..."},
		{"", 10, ""},
		{"abcd", 4, "abcd"},
		{"abcde", 4, "a..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, expected %q",
				tt.input, tt.maxLen, result, tt.expected)
		}
	}
}
