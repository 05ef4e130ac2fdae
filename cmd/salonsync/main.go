// Salonsync keeps a salon's Hot Pepper Beauty reservation board and a
// Google calendar consistent: new bookings on either side are mirrored to
// the other, status changes are propagated, and every mutation attempt is
// recorded in an audit log served over HTTP.
//
// Usage:
//
//	salonsync serve [--config <path>]      # HTTP API + periodic sync cycles
//	salonsync sync-once [--config <path>]  # single sync cycle then exit
//	salonsync status                       # show config and database state
//	salonsync version                      # print version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kokoraro/salonsync/internal/config"
	"github.com/kokoraro/salonsync/internal/gcal"
	"github.com/kokoraro/salonsync/internal/httpapi"
	"github.com/kokoraro/salonsync/internal/salonboard"
	"github.com/kokoraro/salonsync/internal/store"
	syncengine "github.com/kokoraro/salonsync/internal/sync"
	"github.com/kokoraro/salonsync/internal/telemetry"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	switch cmd := os.Args[1]; cmd {
	case "serve":
		return runApp(os.Args[2:], true)
	case "sync-once":
		return runApp(os.Args[2:], false)
	case "status":
		return runStatus()
	case "version":
		fmt.Println("salonsync", version)
		return nil
	default:
		return fmt.Errorf("unknown command %q, run 'salonsync' for usage", cmd)
	}
}

func printUsage() error {
	fmt.Fprintln(os.Stderr, "Salonsync keeps Salon Board and Google Calendar consistent")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  salonsync serve [--config ...]      HTTP API + periodic sync cycles")
	fmt.Fprintln(os.Stderr, "  salonsync sync-once [--config ...]  Single sync cycle then exit")
	fmt.Fprintln(os.Stderr, "  salonsync status                    Show config and database state")
	fmt.Fprintln(os.Stderr, "  salonsync version                   Print version")
	fmt.Fprintln(os.Stderr, "")

	os.Exit(1)
	return nil // unreachable
}

// runStatus prints the current configuration and database state.
func runStatus() error {
	cfgPath, _ := config.DefaultPath()
	dbPath, _ := store.DefaultDBPath()

	fmt.Println("Salonsync Status")
	fmt.Println("----------------")

	if _, err := os.Stat(cfgPath); err == nil {
		if cfg, loadErr := config.Load(cfgPath); loadErr == nil {
			fmt.Printf("  Config:    %s\n", cfgPath)
			fmt.Printf("  Listen:    %s\n", cfg.ListenAddr)
			fmt.Printf("  Board:     %s\n", cfg.SalonBoard.BaseURL)
			fmt.Printf("  Calendar:  %s\n", cfg.GoogleCalendar.CalendarID)
			fmt.Printf("  Interval:  %s\n", cfg.SyncInterval)
			if cfg.DBPath != "" {
				dbPath = cfg.DBPath
			}
		} else {
			fmt.Printf("  Config:    %s (invalid: %v)\n", cfgPath, loadErr)
		}
	} else {
		fmt.Printf("  Config:    not found (%s)\n", cfgPath)
	}

	if info, err := os.Stat(dbPath); err == nil {
		fmt.Printf("  Database:  %s (%s)\n", dbPath, humanSize(info.Size()))
	} else {
		fmt.Printf("  Database:  not found (%s)\n", dbPath)
	}

	return nil
}

// runApp handles both "serve" and "sync-once".
func runApp(args []string, serve bool) error {
	fs := flag.NewFlagSet("salonsync", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", *cfgPath, err)
	}
	logger.Info("config loaded",
		"board_url", cfg.SalonBoard.BaseURL,
		"calendar", cfg.GoogleCalendar.CalendarID,
		"sync_interval", cfg.SyncInterval,
	)

	if cfg.Telemetry != nil {
		shutdownTel, err := telemetry.Setup(context.Background(), telemetry.Config{
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			Insecure:     cfg.Telemetry.Insecure,
			ServiceName:  cfg.Telemetry.ServiceName,
			Headers:      cfg.Telemetry.Headers,
		})
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTel(flushCtx); err != nil {
					logger.Error("telemetry shutdown error", "error", err)
				}
			}()
		}
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		if dbPath, err = store.DefaultDBPath(); err != nil {
			return fmt.Errorf("resolving database path: %w", err)
		}
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening database at %q: %w", dbPath, err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("closing database", "error", closeErr)
		}
	}()
	logger.Info("database opened", "path", dbPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	loc, err := time.LoadLocation(cfg.SalonBoard.Timezone)
	if err != nil {
		return fmt.Errorf("loading salon timezone: %w", err)
	}
	booking := salonboard.NewAdapter(
		cfg.SalonBoard.BaseURL,
		cfg.SalonBoard.Username,
		cfg.SalonBoard.Password,
		loc,
		logger,
	)

	calendar, err := gcal.NewAdapter(ctx,
		cfg.GoogleCalendar.CredentialsFile,
		cfg.GoogleCalendar.TokenFile,
		cfg.GoogleCalendar.CalendarID,
		logger,
	)
	if err != nil {
		return fmt.Errorf("initialising Google Calendar client: %w", err)
	}

	orchestrator := syncengine.NewOrchestrator(booking, calendar, st, cfg.AdapterTimeout, logger)
	scheduler := syncengine.NewScheduler(orchestrator, cfg.SyncInterval, logger)

	if !serve {
		logger.Info("running single sync cycle")
		sum := orchestrator.RunCycle(ctx, time.Now(), time.Now().Add(30*24*time.Hour))
		logger.Info("sync complete",
			"created", sum.Created,
			"updated", sum.Updated,
			"failed", sum.Failed,
			"skipped", sum.Skipped,
		)
		if sum.Failed > 0 {
			return fmt.Errorf("%d operation(s) failed, see sync logs", sum.Failed)
		}
		return nil
	}

	api := httpapi.New(st, scheduler, logger)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go scheduler.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}
	scheduler.Wait()
	logger.Info("shutdown complete")
	return nil
}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
