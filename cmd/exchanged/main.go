package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/saiexchange/predictx/internal/config"
	"github.com/saiexchange/predictx/internal/coordinator"
	"github.com/saiexchange/predictx/internal/engine"
	"github.com/saiexchange/predictx/internal/identity"
	"github.com/saiexchange/predictx/internal/ledger"
	"github.com/saiexchange/predictx/internal/snapshot"
	"github.com/saiexchange/predictx/internal/transport"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	configureLogging(cfg.Logging)

	eng, led, ids := loadOrInit(cfg.Snapshot.Path)
	coord := coordinator.New(eng, led, ids)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	srv := transport.New(cfg.Listen.Address, cfg.Listen.Port, coord, eng, led, ids, cfg.Listen.MaxConnWorkers)

	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()
	go periodicSnapshot(ctx, cfg.Snapshot, srv)

	// Both branches wait for Run to actually return before the shutdown
	// save below: Run only returns once every tomb-supervised goroutine
	// (dispatchLoop and every handleConnection) has exited, so by the time
	// saveSnapshot runs directly here nothing can still be mutating the
	// Engine/Ledger maps it reads.
	select {
	case <-ctx.Done():
		<-runErr
	case err := <-runErr:
		log.Error().Err(err).Msg("transport exited unexpectedly")
	}

	if err := saveSnapshot(cfg.Snapshot.Path, eng, led, ids); err != nil {
		log.Error().Err(err).Msg("failed to persist snapshot on shutdown")
	}
}

// periodicSnapshot saves state on a fixed interval in addition to the
// shutdown save, so a crash between saves loses at most one interval's
// worth of commands. An unparsable interval disables periodic saving
// entirely; shutdown-on-exit is still always attempted. The save itself is
// routed through srv.SaveSnapshot rather than a direct dump, so it runs on
// the dispatch loop's goroutine, between commands, never concurrently with
// one.
func periodicSnapshot(ctx context.Context, cfg config.SnapshotConfig, srv *transport.Server) {
	interval, err := time.ParseDuration(cfg.SaveInterval)
	if err != nil || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := srv.SaveSnapshot(cfg.Path); err != nil {
				log.Error().Err(err).Msg("periodic snapshot save failed")
			}
		}
	}
}

// loadOrInit restores state from path if it exists, otherwise starts the
// exchange empty. A missing snapshot file is the expected case on first
// boot, not an error worth logging loudly.
func loadOrInit(path string) (*engine.Engine, *ledger.Ledger, *identity.Mapper) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Info().Str("path", path).Msg("no snapshot found, starting fresh")
		return engine.New(), ledger.New(), identity.New()
	}

	eng, led, ids, err := snapshot.Load(data)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to load snapshot")
	}
	log.Info().Str("path", path).Msg("restored state from snapshot")
	return eng, led, ids
}

func saveSnapshot(path string, eng *engine.Engine, led *ledger.Ledger, ids *identity.Mapper) error {
	doc := snapshot.Dump(eng, led, ids)
	data, err := snapshot.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func configureLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
