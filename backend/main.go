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

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"bloodbank/m/internal/allocator"
	"bloodbank/m/internal/api"
	"bloodbank/m/internal/config"
	"bloodbank/m/internal/database"
	"bloodbank/m/internal/logger"
	"bloodbank/m/internal/migrations"
	"bloodbank/m/internal/seed"
	"bloodbank/m/internal/service"
	"bloodbank/m/internal/sheet"
	"bloodbank/m/internal/store"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "bloodbank",
		Usage: "Blood bank inventory service",
		Commands: []*cli.Command{
			serveCmd,
			migrateCmd,
			importCmd,
			exportCmd,
			forecastCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// env is everything a command needs, built from configuration.
type env struct {
	cfg config.Config
	log *zap.Logger
	db  *sqlx.DB
	svc *service.Service
}

func setup() (*env, error) {
	cfg := config.Load()
	log, err := logger.New(cfg, "bloodbank")
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	for _, warning := range cfg.Warnings {
		log.Warn(warning)
	}

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, err
	}

	st := store.NewSQLStore(db)
	alloc := allocator.New(st, log.Named("allocator"))
	svc := service.New(st, alloc, log.Named("service"), service.Options{
		StockHigh:   cfg.StockHigh,
		StockMedium: cfg.StockMedium,
	})
	return &env{cfg: cfg, log: log, db: db, svc: svc}, nil
}

func (e *env) close() {
	_ = e.log.Sync()
	e.db.Close()
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "Run the HTTP API",
	Action: func(ctx *cli.Context) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		if e.cfg.SeedFile != "" {
			if _, err := seed.LoadInventory(ctx.Context, e.svc, e.cfg.SeedFile, e.log); err != nil {
				e.log.Warn("unable to seed inventory", zap.Error(err))
			}
		}

		handler := api.New(e.svc, e.log.Named("http"), e.cfg.CORSOrigins, e.cfg.ForecastDays)
		srv := &http.Server{
			Addr:              ":" + e.cfg.HTTPPort,
			Handler:           handler.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-sigCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		e.log.Info("blood bank server starting", zap.String("addr", srv.Addr), zap.String("driver", e.cfg.DatabaseDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		e.log.Info("blood bank server stopped")
		return nil
	},
}

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "Create the database schema",
	Action: func(ctx *cli.Context) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()
		e.log.Info("schema is up to date")
		return nil
	},
}

var importCmd = &cli.Command{
	Name:  "import",
	Usage: "Merge an inventory spreadsheet into the ledger",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "file",
			Required: true,
			Usage:    "specify the input .xlsx or .csv file",
		},
	},
	Action: func(ctx *cli.Context) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		n, err := seed.LoadInventory(ctx.Context, e.svc, ctx.String("file"), e.log)
		if err != nil {
			return err
		}
		fmt.Printf("imported %d rows from %s\n", n, ctx.String("file"))
		return nil
	},
}

var exportCmd = &cli.Command{
	Name:  "export",
	Usage: "Write the current inventory to a spreadsheet",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "file",
			Required: true,
			Usage:    "specify the output .xlsx file",
		},
	},
	Action: func(ctx *cli.Context) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		batches, err := e.svc.Inventory(ctx.Context)
		if err != nil {
			return err
		}
		f, err := os.Create(ctx.String("file"))
		if err != nil {
			return err
		}
		if err := sheet.WriteInventory(f, batches); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("inventory saved to %s\n", ctx.String("file"))
		return nil
	},
}

var forecastCmd = &cli.Command{
	Name:  "forecast",
	Usage: "Print stock against forecast demand",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "days",
			Usage: "specify the forecast horizon in days (default FORECAST_DAYS)",
		},
	},
	Action: func(ctx *cli.Context) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		days := ctx.Int("days")
		if days == 0 {
			days = e.cfg.ForecastDays
		}
		summary, err := e.svc.StockSummary(ctx.Context)
		if err != nil {
			return err
		}
		predictions, err := e.svc.Forecast(ctx.Context, days)
		if err != nil {
			return err
		}

		fmt.Printf("%-6s %8s %-7s %10s\n", "Type", "Stock", "Level", fmt.Sprintf("%dd demand", days))
		for i, total := range summary {
			fmt.Printf("%-6s %8d %-7s %10.1f\n", total.BloodType, total.Units, total.Level, predictions[i].Units)
		}
		return nil
	},
}
