// ABOUTME: Entry point for the reference time server
// ABOUTME: Parses CLI flags and runs the server until interrupted
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/clocksync-go/internal/logging"
	"github.com/Resonate-Protocol/clocksync-go/internal/server"
	"github.com/Resonate-Protocol/clocksync-go/internal/version"
	"github.com/Resonate-Protocol/clocksync-go/pkg/clocksync"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type serverFlags struct {
	port    int
	name    string
	logFile string
	debug   bool
	noMDNS  bool
	noTUI   bool
	skew    time.Duration
}

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var f serverFlags

	cmd := &cobra.Command{
		Use:           "clocksync-server",
		Short:         "Reference time server for clocksync clients",
		Version:       version.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}

	cmd.Flags().IntVar(&f.port, "port", clocksync.DefaultPort, "HTTP and WebSocket port")
	cmd.Flags().StringVar(&f.name, "name", "", "Server friendly name (default: hostname-clocksync-server)")
	cmd.Flags().StringVar(&f.logFile, "log-file", "clocksync-server.log", "Log file path")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&f.noMDNS, "no-mdns", false, "Disable mDNS advertisement")
	cmd.Flags().BoolVar(&f.noTUI, "no-tui", false, "Disable TUI, use streaming logs instead")
	cmd.Flags().DurationVar(&f.skew, "skew", 0, "Offset added to every reported timestamp, for demonstrations")

	return cmd
}

func run(cmd *cobra.Command, f serverFlags) error {
	useTUI := !f.noTUI

	level := "info"
	if f.debug {
		level = "debug"
	}
	logCfg := logging.Config{Level: level, File: f.logFile}
	if !useTUI {
		// TUI mode logs only to the file
		logCfg.Console = cmd.ErrOrStderr()
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Determine server name
	serverName := f.name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-clocksync-server", hostname)
	}

	logger.Info("Starting clock server",
		zap.String("name", serverName),
		zap.Int("port", f.port),
		zap.String("logFile", f.logFile),
		zap.Duration("skew", f.skew))

	srv := server.New(server.Config{
		Port:       f.port,
		Name:       serverName,
		EnableMDNS: !f.noMDNS,
		Debug:      f.debug,
		UseTUI:     useTUI,
		Skew:       f.skew,
	}, logger)

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig, ok := <-sigChan
		if !ok {
			return
		}
		logger.Info("Received signal, shutting down gracefully...", zap.String("signal", sig.String()))
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}
