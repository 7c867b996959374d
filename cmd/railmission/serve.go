package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hirameki/rail-mission/internal/catalog"
	"github.com/hirameki/rail-mission/internal/config"
	"github.com/hirameki/rail-mission/internal/game"
	"github.com/hirameki/rail-mission/internal/server"
	"github.com/hirameki/rail-mission/internal/store"
)

var (
	serveConfigPath string
	serveAddr       string
	serveDataDir    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the kiosk game server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "path to YAML config file")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveDataDir, "data", "", "data directory (overrides config)")
}

func runServe() error {
	logger := log.New(os.Stdout, "[railmission] ", log.LstdFlags)

	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	if serveDataDir != "" {
		cfg.DataDir = serveDataDir
	}

	cat, err := catalog.Load()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	db, err := store.NewSQLiteDB(filepath.Join(cfg.DataDir, "results.db"))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	resultLog, err := store.OpenResultLog(filepath.Join(cfg.DataDir, "results.jsonl"))
	if err != nil {
		return err
	}
	defer resultLog.Close()

	engine := game.New(cat, game.Config{
		TickInterval:  cfg.TickInterval(),
		SweepInterval: cfg.WatchdogSweep(),
		IdleTimeout:   cfg.IdleTimeout(),
	}, store.MultiSink{resultLog, store.SQLiteSink{DB: db}}, logger)

	engine.SetDefaults(catalog.Difficulty(cfg.DefaultDifficulty), game.Mode(cfg.DefaultMode))
	engine.SetRejectHook(func(kioskID, msgType string, state game.State) {
		logger.Printf("dropped message kiosk=%s type=%s state=%s", kioskID, msgType, state)
	})

	hub := server.NewHub(engine, logger)
	srv := server.NewServer(engine, db, hub, cfg.ExportLimit)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go engine.RunWatchdog(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening addr=%s cards=%d", cfg.Addr, len(cat.Cards))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
