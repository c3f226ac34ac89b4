package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kjannette/brent-backend/internal/api"
	"github.com/kjannette/brent-backend/internal/config"
	"github.com/kjannette/brent-backend/internal/db"
	"github.com/kjannette/brent-backend/internal/external"
	"github.com/kjannette/brent-backend/internal/notifications"
	"github.com/kjannette/brent-backend/internal/repository"
	"github.com/kjannette/brent-backend/internal/scheduler"
	"github.com/kjannette/brent-backend/internal/store"
	"github.com/urfave/cli/v2"
)

var version = "dev"

const banner = `
╔══════════════════════════════════════╗
║     Brent Daily Price Extractor      ║
╚══════════════════════════════════════╝
`

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "brent",
		Version: version,
		Usage:   "fetch daily Brent crude prices from Alpha Vantage into a CSV store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Value:   ".env",
				Usage:   "optional KEY=VALUE file read before the environment",
				EnvVars: []string{"ENV_FILE"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "extract now, then every EXTRACTION_INTERVAL_HOURS until stopped",
				Action: runLoop,
			},
			{
				Name:   "once",
				Usage:  "run a single extraction cycle and exit",
				Action: runOnce,
			},
			{
				Name:   "serve",
				Usage:  "serve the stored prices over HTTP",
				Action: serve,
			},
		},
		DefaultCommand: "run",
	}
}

func loadConfig(c *cli.Context, requireKey bool) (*config.Config, error) {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("config load error: %v", err), 1)
	}
	if requireKey {
		if err := cfg.Validate(); err != nil {
			return nil, cli.Exit(err.Error(), 1)
		}
	}
	return cfg, nil
}

// buildScheduler wires fetcher, store, notifier and the optional Postgres
// mirror. The returned cleanup closes the pool.
func buildScheduler(cfg *config.Config) (*scheduler.ExtractionScheduler, func(), error) {
	client := external.NewAlphaVantageClient(external.AlphaVantageOptions{
		APIKey:   cfg.AlphaVantageKey,
		BaseURL:  cfg.BaseURL,
		Function: cfg.Function,
		Interval: cfg.Interval,
		Currency: cfg.Currency,
		Unit:     cfg.Unit,
		Timeout:  cfg.RequestTimeout(),
	})
	csvStore := store.NewCSVStore(cfg.DataDir, cfg.DataFile)
	notify := notifications.NewSender(cfg.WebhookURL, cfg.BotName)

	schedCfg := scheduler.ExtractionConfig{
		Interval: cfg.RunInterval(),
		Notifier: notify,
	}

	cleanup := func() {}
	if cfg.DBEnabled {
		fmt.Printf("\n[DB] Connecting to %s:%d/%s ...\n", cfg.DBHost, cfg.DBPort, cfg.DBName)
		pool, err := db.Connect(cfg.DSN())
		if err != nil {
			return nil, cleanup, fmt.Errorf("[DB] connection failed: %w", err)
		}
		cleanup = func() {
			pool.Close()
			fmt.Println("[DB] Connection pool closed")
		}
		if err := db.TestConnection(pool); err != nil {
			return nil, cleanup, fmt.Errorf("[DB] %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.EnsureSchema(ctx, pool); err != nil {
			return nil, cleanup, fmt.Errorf("[DB] %w", err)
		}
		repo := repository.NewPriceRepo(pool)
		if latest, err := repo.GetLatest(ctx); err == nil && latest != nil {
			fmt.Printf("[DB] Latest mirrored price: %s $%.2f\n", latest.Date, latest.Price)
		}
		schedCfg.Mirror = repo
	}

	return scheduler.NewExtractionScheduler(client, csvStore, schedCfg), cleanup, nil
}

func runLoop(c *cli.Context) error {
	fmt.Print(banner)

	cfg, err := loadConfig(c, true)
	if err != nil {
		return err
	}
	cfg.Print()

	sched, cleanup, err := buildScheduler(cfg)
	defer cleanup()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = sched.Run(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Println("\nShutdown complete")
		return nil
	}
	return err
}

func runOnce(c *cli.Context) error {
	cfg, err := loadConfig(c, true)
	if err != nil {
		return err
	}

	sched, cleanup, err := buildScheduler(cfg)
	defer cleanup()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report := sched.RunOnce(ctx)
	if report.Failed() {
		err := report.FetchErr
		if err == nil {
			err = report.StoreErr
		}
		return cli.Exit(fmt.Sprintf("extraction %s failed: %v", report.ID, err), 1)
	}
	return nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c, false)
	if err != nil {
		return err
	}

	csvStore := store.NewCSVStore(cfg.DataDir, cfg.DataFile)
	srv := api.NewServer(csvStore, csvStore.Path(), cfg.APIPort, cfg.APIKey, cfg.CORSAllowOrigin)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return cli.Exit(fmt.Sprintf("[API] Server error: %v", err), 1)
		}
		return nil
	case <-ctx.Done():
	}

	fmt.Println("\nShutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "[API] Shutdown error: %v\n", err)
	}
	fmt.Println("[API] Server closed")
	return nil
}
