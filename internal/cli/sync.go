// ABOUTME: sync and exchange subcommands
// ABOUTME: One round trip each, printed as text or JSON
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/internal/discovery"
	"github.com/Resonate-Protocol/clocksync-go/internal/ntpcheck"
	"github.com/Resonate-Protocol/clocksync-go/pkg/clocksync"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type syncFlags struct {
	json            bool
	ntpServer       string
	discover        bool
	discoverTimeout time.Duration
}

type syncOutput struct {
	Server     string     `json:"server"`
	Adjust     float64    `json:"adjust_ms"`
	Error      float64    `json:"error_ms"`
	RoundTrip  float64    `json:"round_trip_ms"`
	Successful bool       `json:"successful"`
	NTP        *ntpOutput `json:"ntp,omitempty"`
}

type ntpOutput struct {
	Server       string  `json:"server"`
	Offset       float64 `json:"offset_ms"`
	RTT          float64 `json:"rtt_ms"`
	Stratum      uint8   `json:"stratum"`
	Disagreement float64 `json:"disagreement_ms"`
	WithinBound  bool    `json:"within_bound"`
}

type exchangeOutput struct {
	Server   string `json:"server"`
	Sent     int64  `json:"sent"`
	Received int64  `json:"received"`
	Remote   int64  `json:"remote"`
}

func newSyncCommand(a *app) *cobra.Command {
	var f syncFlags

	cmd := &cobra.Command{
		Use:   "sync [url]",
		Short: "Take one reading against a reference server",
		Long: `Take one reading: send the local time, receive the server's time and
report the adjustment, its error bound and whether the reading is trustworthy.

The url may be http://, https://, ws://, wss:// or a bare host[:port]; the
default port is 5579.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := a.newLogger(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()

			target, err := a.resolveTarget(ctx, args, f.discover, f.discoverTimeout, logger)
			if err != nil {
				return err
			}

			client, err := clocksync.New(target, a.clientOptions(cmd, logger)...)
			if err != nil {
				return err
			}

			reading, err := client.Sync(ctx)
			if err != nil {
				return err
			}

			out := syncOutput{
				Server:     client.Endpoint().String(),
				Adjust:     reading.Adjust,
				Error:      reading.Error,
				RoundTrip:  2 * reading.HalfRoundTrip,
				Successful: reading.Successful,
			}

			ntpServer := firstNonEmpty(f.ntpServer, a.file.NTPServer)
			if ntpServer != "" {
				res, err := ntpcheck.New(a.exchangeTimeout(cmd)).Compare(ntpServer, reading)
				if err != nil {
					return err
				}
				out.NTP = &ntpOutput{
					Server:       res.Server,
					Offset:       millis(res.NTPOffset),
					RTT:          millis(res.NTPRTT),
					Stratum:      res.Stratum,
					Disagreement: millis(res.Disagreement),
					WithinBound:  res.WithinBound,
				}
			}

			if f.json {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printSync(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&f.json, "json", false, "Print the reading as JSON")
	cmd.Flags().StringVar(&f.ntpServer, "ntp-server", "", "Cross-check the reading against this NTP server")
	cmd.Flags().BoolVar(&f.discover, "discover", false, "Find a server with mDNS when no url is given")
	cmd.Flags().DurationVar(&f.discoverTimeout, "discover-timeout", 10*time.Second, "How long to browse for a server")

	return cmd
}

func newExchangeCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "exchange [url]",
		Short: "Perform one raw timestamp exchange",
		Long:  "Perform one round trip and print the three timestamps without computing a reading.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := a.newLogger(cmd, false)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			target, err := a.target(args)
			if err != nil {
				return err
			}

			client, err := clocksync.New(target, a.clientOptions(cmd, logger)...)
			if err != nil {
				return err
			}

			sample, err := client.Exchange(cmd.Context())
			if err != nil {
				return err
			}

			out := exchangeOutput{
				Server:   client.Endpoint().String(),
				Sent:     sample.Sent,
				Received: sample.Received,
				Remote:   sample.Remote,
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "server:     %s\n", out.Server)
			fmt.Fprintf(w, "sent:       %d\n", out.Sent)
			fmt.Fprintf(w, "received:   %d\n", out.Received)
			fmt.Fprintf(w, "remote:     %d\n", out.Remote)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the sample as JSON")

	return cmd
}

// resolveTarget falls back to mDNS discovery when asked to
func (a *app) resolveTarget(ctx context.Context, args []string, discover bool, timeout time.Duration, logger *zap.Logger) (string, error) {
	if len(args) > 0 || !discover {
		return a.target(args)
	}

	logger.Info("Starting server discovery...")
	server, err := discovery.Discover(ctx, timeout, logger)
	if err != nil {
		return "", err
	}
	logger.Info("Discovered server",
		zap.String("name", server.Name),
		zap.String("url", server.URL()))
	return server.URL(), nil
}

func printSync(w io.Writer, out syncOutput) {
	fmt.Fprintf(w, "server:     %s\n", out.Server)
	fmt.Fprintf(w, "adjust:     %+.3fms\n", out.Adjust)
	fmt.Fprintf(w, "error:      ±%.3fms\n", out.Error)
	fmt.Fprintf(w, "round trip: %.3fms\n", out.RoundTrip)
	fmt.Fprintf(w, "successful: %t\n", out.Successful)

	if out.NTP != nil {
		fmt.Fprintf(w, "ntp server: %s (stratum %d)\n", out.NTP.Server, out.NTP.Stratum)
		fmt.Fprintf(w, "ntp offset: %+.3fms\n", out.NTP.Offset)
		fmt.Fprintf(w, "difference: %+.3fms (within bound: %t)\n", out.NTP.Disagreement, out.NTP.WithinBound)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
