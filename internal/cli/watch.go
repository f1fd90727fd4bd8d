// ABOUTME: watch subcommand taking independent readings on an interval
// ABOUTME: Shows a TUI or streams one line per reading, with optional metrics
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/internal/metrics"
	"github.com/Resonate-Protocol/clocksync-go/internal/ui"
	"github.com/Resonate-Protocol/clocksync-go/pkg/clocksync"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type watchFlags struct {
	interval    time.Duration
	count       int
	noTUI       bool
	metricsAddr string
}

func newWatchCommand(a *app) *cobra.Command {
	var f watchFlags

	cmd := &cobra.Command{
		Use:   "watch [url]",
		Short: "Take a reading on every interval",
		Long: `Take an independent reading on every interval until interrupted.

Failed exchanges are reported and the next interval proceeds; nothing is
retried and no reading depends on an earlier one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.interval <= 0 {
				return fmt.Errorf("interval must be positive, got %s", f.interval)
			}

			// The TUI owns the terminal; logs go to the file only
			useTUI := !f.noTUI
			logger, err := a.newLogger(cmd, useTUI)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			target, err := a.target(args)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			observers := &multiObserver{}

			if metricsAddr := firstNonEmpty(f.metricsAddr, a.file.MetricsAddr); metricsAddr != "" {
				reg := prometheus.NewRegistry()
				*observers = append(*observers, metrics.NewClientMetrics(reg))
				stopMetrics := serveMetrics(metricsAddr, reg, logger)
				defer stopMetrics()
			}

			opts := append(a.clientOptions(cmd, logger), clocksync.WithObserver(observers))
			client, err := clocksync.New(target, opts...)
			if err != nil {
				return err
			}

			if !useTUI {
				return watchLoop(ctx, client, f, lineReporter(cmd.OutOrStdout(), logger))
			}

			program := ui.Run(ui.NewModel(client.Endpoint().String(), client.Params()))
			*observers = append(*observers, ui.NewObserver(program))

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = watchLoop(ctx, client, f, func(clocksync.Reading, error) {})
				if f.count > 0 {
					program.Quit()
				}
			}()

			_, err = program.Run()
			cancel()
			wg.Wait()
			return err
		},
	}

	cmd.Flags().DurationVar(&f.interval, "interval", time.Second, "Time between readings")
	cmd.Flags().IntVar(&f.count, "count", 0, "Stop after this many attempts (0 runs until interrupted)")
	cmd.Flags().BoolVar(&f.noTUI, "no-tui", false, "Disable TUI, print one line per reading instead")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9579")

	return cmd
}

// watchLoop syncs immediately and then on every tick until ctx is done or
// count attempts were made
func watchLoop(ctx context.Context, client *clocksync.Client, f watchFlags, report func(clocksync.Reading, error)) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		reading, err := client.Sync(ctx)
		if ctx.Err() != nil {
			return nil
		}
		report(reading, err)

		if f.count > 0 && attempt >= f.count {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// lineReporter prints one line per attempt
func lineReporter(w io.Writer, logger *zap.Logger) func(clocksync.Reading, error) {
	return func(r clocksync.Reading, err error) {
		if err != nil {
			logger.Warn("Reading failed", zap.Error(err))
			fmt.Fprintf(w, "failed: %v\n", err)
			return
		}

		verdict := "ok"
		if !r.Successful {
			verdict = "slow"
		}
		fmt.Fprintf(w, "adjust=%+.3fms error=%.3fms rtt=%.3fms %s\n",
			r.Adjust, r.Error, 2*r.HalfRoundTrip, verdict)
	}
}

// serveMetrics exposes reg on addr until the returned func is called
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// multiObserver fans client events out to several observers
type multiObserver []clocksync.Observer

func (m multiObserver) ObserveSample(s clocksync.Sample) {
	for _, o := range m {
		o.ObserveSample(s)
	}
}

func (m multiObserver) ObserveReading(r clocksync.Reading) {
	for _, o := range m {
		o.ObserveReading(r)
	}
}

func (m multiObserver) ObserveFailure(err error) {
	for _, o := range m {
		o.ObserveFailure(err)
	}
}
