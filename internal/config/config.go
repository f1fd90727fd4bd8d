// ABOUTME: YAML configuration file for the clocksync command
// ABOUTME: Explicit zero values are kept apart from unset fields
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/pkg/clocksync"
	"gopkg.in/yaml.v3"
)

// File mirrors the YAML document. Pointer fields distinguish "unset" from an
// explicit zero, which is a meaningful value for delay and drift.
type File struct {
	Server          string   `yaml:"server"`
	TargetPrecision *float64 `yaml:"target_precision"`
	MinReadingDelay *float64 `yaml:"min_reading_delay"`
	ClockDrift      *float64 `yaml:"clock_drift"`
	Timeout         string   `yaml:"timeout"`
	NTPServer       string   `yaml:"ntp_server"`
	MetricsAddr     string   `yaml:"metrics_addr"`
	Log             Log      `yaml:"log"`

	timeout time.Duration
}

// Log configures the command's logger
type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads and validates a configuration file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a YAML document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	f := &File{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", f.Timeout, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("invalid timeout %q: must not be negative", f.Timeout)
		}
		f.timeout = d
	}

	return f, nil
}

// TimeoutDuration returns the parsed timeout and whether one was set
func (f *File) TimeoutDuration() (time.Duration, bool) {
	return f.timeout, f.Timeout != ""
}

// ClientOptions converts the set fields into client options
func (f *File) ClientOptions() []clocksync.Option {
	var opts []clocksync.Option
	if f.TargetPrecision != nil {
		opts = append(opts, clocksync.WithTargetPrecision(*f.TargetPrecision))
	}
	if f.MinReadingDelay != nil {
		opts = append(opts, clocksync.WithMinReadingDelay(*f.MinReadingDelay))
	}
	if f.ClockDrift != nil {
		opts = append(opts, clocksync.WithClockDrift(*f.ClockDrift))
	}
	if d, ok := f.TimeoutDuration(); ok {
		opts = append(opts, clocksync.WithTimeout(d))
	}
	return opts
}
