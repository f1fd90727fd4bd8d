// ABOUTME: Root command for the clocksync CLI
// ABOUTME: Global flags, config file loading and client construction
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/internal/config"
	"github.com/Resonate-Protocol/clocksync-go/internal/logging"
	"github.com/Resonate-Protocol/clocksync-go/internal/version"
	"github.com/Resonate-Protocol/clocksync-go/pkg/clocksync"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// globalFlags holds the persistent flags
type globalFlags struct {
	configPath      string
	logLevel        string
	logFile         string
	targetPrecision float64
	minReadingDelay float64
	clockDrift      float64
	timeout         time.Duration
}

// app is shared by every subcommand of one invocation
type app struct {
	flags globalFlags
	file  *config.File
}

// Execute runs the CLI and exits non-zero on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	a := &app{file: &config.File{}}

	root := &cobra.Command{
		Use:   version.Product,
		Short: "Estimate the offset between this clock and a reference server",
		Long: `clocksync measures the offset between the local clock and a reference
time server with one timestamped round trip per reading.

Each reading reports the adjustment to add to local time, the error bound
of that adjustment, and whether the round trip was fast enough to trust.
The local clock is never changed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.flags.configPath == "" {
				return nil
			}
			f, err := config.Load(a.flags.configPath)
			if err != nil {
				return err
			}
			a.file = f
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "YAML config file")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (default info)")
	pf.StringVar(&a.flags.logFile, "log-file", "", "Also write JSON logs to this file, rotated by size")
	pf.Float64Var(&a.flags.targetPrecision, "target-precision", clocksync.DefaultTargetPrecision, "Desired precision in milliseconds")
	pf.Float64Var(&a.flags.minReadingDelay, "min-reading-delay", clocksync.DefaultMinReadingDelay, "Minimum server processing delay in milliseconds")
	pf.Float64Var(&a.flags.clockDrift, "clock-drift", clocksync.DefaultClockDrift, "Fractional clock drift rate, e.g. 0.0001")
	pf.DurationVar(&a.flags.timeout, "timeout", clocksync.DefaultTimeout, "Per-exchange timeout (0 disables)")

	root.AddCommand(newSyncCommand(a))
	root.AddCommand(newExchangeCommand(a))
	root.AddCommand(newWatchCommand(a))
	root.AddCommand(newVersionCommand())

	return root
}

// newLogger builds the logger for a command. Console output goes to the
// command's stderr unless quiet is set.
func (a *app) newLogger(cmd *cobra.Command, quiet bool) (*zap.Logger, error) {
	cfg := logging.Config{
		Level: firstNonEmpty(a.flags.logLevel, a.file.Log.Level),
		File:  firstNonEmpty(a.flags.logFile, a.file.Log.File),
	}
	if !quiet {
		cfg.Console = cmd.ErrOrStderr()
	}
	return logging.New(cfg)
}

// target picks the server from the arguments, then the config file
func (a *app) target(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if a.file.Server != "" {
		return a.file.Server, nil
	}
	return "", fmt.Errorf("no server given: pass a URL or set server in the config file")
}

// clientOptions layers config file values under explicitly set flags
func (a *app) clientOptions(cmd *cobra.Command, logger *zap.Logger) []clocksync.Option {
	opts := a.file.ClientOptions()

	flags := cmd.Flags()
	if flags.Changed("target-precision") {
		opts = append(opts, clocksync.WithTargetPrecision(a.flags.targetPrecision))
	}
	if flags.Changed("min-reading-delay") {
		opts = append(opts, clocksync.WithMinReadingDelay(a.flags.minReadingDelay))
	}
	if flags.Changed("clock-drift") {
		opts = append(opts, clocksync.WithClockDrift(a.flags.clockDrift))
	}
	if flags.Changed("timeout") {
		opts = append(opts, clocksync.WithTimeout(a.flags.timeout))
	}

	return append(opts, clocksync.WithLogger(logger))
}

// exchangeTimeout is the effective per-exchange timeout
func (a *app) exchangeTimeout(cmd *cobra.Command) time.Duration {
	if cmd.Flags().Changed("timeout") {
		return a.flags.timeout
	}
	if d, ok := a.file.TimeoutDuration(); ok {
		return d
	}
	return clocksync.DefaultTimeout
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
