/*
Package main implements a synthetic alert feed for developing against the
fraud monitor without the real inference service.

It generates a dataset of scored transactions with planted fraud rings and
replays it over WebSocket at /ws/realtime-monitor, frame for frame in the
inference service's wire format.

Usage:

	go run main.go -addr=:9000 -transactions=5000 -interval=50ms -loop
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fraudmonitor/internal/simulator"
)

// Command-line flags for configuring the replay behavior
var (
	// addr is the listen address for the feed endpoint
	addr = flag.String("addr", ":9000", "Feed listen address")
	// nodes is the synthetic account population size
	nodes = flag.Int("nodes", 1000, "Account population size")
	// transactions is the dataset size
	transactions = flag.Int("transactions", 5000, "Transactions to generate")
	// interval paces the replay
	interval = flag.Duration("interval", 50*time.Millisecond, "Delay between frames")
	// loop restarts the replay when the dataset runs out
	loop = flag.Bool("loop", false, "Restart the replay when exhausted")
	// seed fixes the dataset; zero seeds from the clock
	seed = flag.Int64("seed", 0, "Random seed, 0 for clock-based")
)

func main() {
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := validateConfig(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := simulator.NewServer(simulator.ServerConfig{
		Generator: simulator.NewGenerator(simulator.GeneratorConfig{
			Nodes:        *nodes,
			Transactions: *transactions,
			Seed:         *seed,
		}),
		Interval: *interval,
		Loop:     *loop,
	})

	srv := &http.Server{
		Addr:    *addr,
		Handler: sim.Handler(),
	}

	log.Info().
		Str("addr", *addr).
		Int("transactions", *transactions).
		Dur("interval", *interval).
		Bool("loop", *loop).
		Msg("feed simulator starting")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("failed to serve")
	}

	log.Info().Msg("feed simulator shut down")
}

// validateConfig performs validation of command-line configuration parameters.
func validateConfig() error {
	if addr == nil || *addr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if *nodes <= 1 {
		return fmt.Errorf("nodes must be greater than 1")
	}
	if *transactions <= 0 {
		return fmt.Errorf("transactions must be greater than 0")
	}
	if *interval <= 0 {
		return fmt.Errorf("interval must be greater than 0")
	}
	return nil
}
