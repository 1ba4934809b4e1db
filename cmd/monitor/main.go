/*
Package main implements the fraud alert monitor service.

The monitor connects to an upstream inference service over WebSocket,
consumes scored transaction frames in real time, and maintains bounded
views of recent transactions and alerts together with running session
counters. A read-only HTTP API serves the state to dashboard frontends,
including a WebSocket push channel for live updates.

Usage:

	go run main.go -feed=ws://localhost:9000/ws/realtime-monitor -addr=:8080

The monitor runs until interrupted. If -reconnect is set, dropped feed
connections are redialed with exponential backoff; each new connection
starts a fresh monitoring session.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fraudmonitor/internal/api"
	"fraudmonitor/internal/service"
	"fraudmonitor/internal/utils"
)

// Command-line flags for configuring the monitor behavior
var (
	// feed is the WebSocket URL of the upstream alert feed
	feed = flag.String("feed", "ws://localhost:9000/ws/realtime-monitor", "Alert feed WebSocket URL")
	// addr is the listen address for the dashboard API
	addr = flag.String("addr", ":8080", "Dashboard API listen address")
	// txWindow bounds the recent-transaction view
	txWindow = flag.Int("tx-window", 50, "Recent transactions to retain")
	// alertWindow bounds the recent-alert view
	alertWindow = flag.Int("alert-window", 20, "Recent alerts to retain")
	// reconnect enables redialing a dropped feed; zero disables
	reconnect = flag.Duration("reconnect", 2*time.Second, "Initial reconnect backoff, 0 to disable")
	// maxReconnect caps the reconnect backoff
	maxReconnect = flag.Duration("max-reconnect", 30*time.Second, "Maximum reconnect backoff")
	// insecure disables TLS certificate verification on the feed dial
	insecure = flag.Bool("insecure", false, "Skip TLS certificate verification")
	// debug enables debug-level logging
	debug = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	// Initialize structured logger with timestamp and configured level
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := validateConfig(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Shut down cleanly on Ctrl+C or SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mon := service.New(service.Config{
		Endpoint:          *feed,
		TransactionWindow: *txWindow,
		AlertWindow:       *alertWindow,
		ReconnectWait:     *reconnect,
		MaxReconnectWait:  *maxReconnect,
		TLSInsecureSkip:   *insecure,
	})
	if err := mon.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start monitor")
	}
	defer mon.Stop()

	apiServer, err := api.NewServer(api.Config{
		Addr:    *addr,
		Monitor: mon,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create API server")
	}

	log.Info().
		Str("feed", *feed).
		Str("addr", *addr).
		Int("tx_window", *txWindow).
		Int("alert_window", *alertWindow).
		Msg("monitor starting")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return apiServer.ListenAndServe(ctx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("failed to serve")
	}

	// Leave a record of what the session saw before exiting.
	snap := mon.Snapshot()
	log.Info().
		Uint64("total", snap.Stats.Total).
		Uint64("alerts", snap.Stats.Alerts).
		Uint64("true_positives", snap.Stats.TruePositives).
		Uint64("false_positives", snap.Stats.FalsePositives).
		Msg("monitor shut down")
}

// validateConfig performs validation of command-line configuration parameters.
func validateConfig() error {
	if feed == nil {
		return fmt.Errorf("feed URL cannot be empty")
	}
	if err := utils.ValidateEndpoint(*feed); err != nil {
		return fmt.Errorf("feed URL: %w", err)
	}
	if addr == nil || *addr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if *txWindow <= 0 {
		return fmt.Errorf("tx-window must be greater than 0")
	}
	if *alertWindow <= 0 {
		return fmt.Errorf("alert-window must be greater than 0")
	}
	if *reconnect < 0 {
		return fmt.Errorf("reconnect cannot be negative")
	}
	return nil
}
