// @title			Worklog API
// @version		1.0
// @description	Team task tracking with audit trail, automatic work logs and realtime notifications.
// @BasePath		/api/v1

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mtlprog/worklog/internal/config"
	"github.com/mtlprog/worklog/internal/database"
	"github.com/mtlprog/worklog/internal/dispatch"
	"github.com/mtlprog/worklog/internal/handler"
	"github.com/mtlprog/worklog/internal/logger"
	"github.com/mtlprog/worklog/internal/notification"
	"github.com/mtlprog/worklog/internal/realtime"
	"github.com/mtlprog/worklog/internal/reminder"
	"github.com/mtlprog/worklog/internal/repository"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	// .env is optional and must be loaded before flags read their EnvVars;
	// variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "failed to load .env:", err)
		os.Exit(1)
	}

	app := &cli.App{
		Name:  "worklog",
		Usage: "Team task tracking and notifications",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   config.DefaultLogLevel,
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   config.DefaultLogFormat,
				Usage:   "Log format (json, text)",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:     "database-url",
				Aliases:  []string{"d"},
				Value:    config.DefaultDatabaseURL,
				Usage:    "PostgreSQL database URL",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")), c.String("log-format"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the web server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   config.DefaultPort,
						Usage:   "HTTP server port",
						EnvVars: []string{"PORT"},
					},
					&cli.IntFlag{
						Name:    "dispatch-workers",
						Value:   config.DefaultDispatchWorkers,
						Usage:   "Notification delivery workers",
						EnvVars: []string{"DISPATCH_WORKERS"},
					},
					&cli.IntFlag{
						Name:    "dispatch-queue",
						Value:   config.DefaultDispatchQueue,
						Usage:   "Pending notification jobs before new ones are dropped",
						EnvVars: []string{"DISPATCH_QUEUE"},
					},
					&cli.DurationFlag{
						Name:    "dispatch-timeout",
						Value:   config.DefaultDispatchTimeout,
						Usage:   "Timeout of a single notification job",
						EnvVars: []string{"DISPATCH_TIMEOUT"},
					},
					&cli.DurationFlag{
						Name:    "reminder-interval",
						Value:   config.DefaultReminderInterval,
						Usage:   "Run reminders in-process at this interval (0 disables)",
						EnvVars: []string{"REMINDER_INTERVAL"},
					},
				},
				Action: runServe,
			},
			{
				Name:  "run-reminders",
				Usage: "Send due, work log and daily summary reminders",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:    "interval",
						Value:   reminder.DefaultInterval,
						Usage:   "Interval between reminder runs",
						EnvVars: []string{"REMINDER_INTERVAL"},
					},
					&cli.BoolFlag{
						Name:  "once",
						Usage: "Run a single pass and exit",
					},
				},
				Action: runReminders,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations and exit",
				Action: runMigrate,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func openDatabase(ctx context.Context, c *cli.Context) (*database.DB, error) {
	db, err := database.New(ctx, c.String("database-url"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := c.String("port")
	if port == "" {
		port = config.DefaultPort
	}

	db, err := openDatabase(ctx, c)
	if err != nil {
		return err
	}
	defer db.Close()

	workers := c.Int("dispatch-workers")
	if workers == 0 {
		workers = config.DefaultDispatchWorkers
	}
	queue := c.Int("dispatch-queue")
	if queue == 0 {
		queue = config.DefaultDispatchQueue
	}
	bridge := dispatch.New(workers, queue, c.Duration("dispatch-timeout"))
	hub := realtime.NewHub()

	h := handler.New(db.Pool(), hub, bridge)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "server_addr", "http://localhost:"+port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if interval := c.Duration("reminder-interval"); interval > 0 {
		reminders := newReminderService(db, h.Router())
		g.Go(func() error {
			return reminders.Run(gctx, interval)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown failed: %w", err))
		}
		if err := bridge.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("server stopped")
	return nil
}

func newReminderService(db *database.DB, router *notification.Router) *reminder.Service {
	return reminder.NewService(
		repository.NewTaskRepository(db.Pool()),
		repository.NewTeamRepository(db.Pool()),
		router,
		time.Now,
	)
}

func runReminders(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, c)
	if err != nil {
		return err
	}
	defer db.Close()

	pool := db.Pool()
	teamRepo := repository.NewTeamRepository(pool)
	// Nobody is connected to this process, so messages are stored for the
	// inbox without a realtime push.
	router := notification.NewRouter(
		repository.NewTemplateRepository(pool),
		repository.NewMessageRepository(pool),
		teamRepo,
		repository.NewUserRepository(pool),
		realtime.NewHub(),
	)
	reminders := newReminderService(db, router)

	if c.Bool("once") {
		return reminders.RunOnce(ctx)
	}

	slog.Info("starting reminder loop", "interval", c.Duration("interval"))
	return reminders.Run(ctx, c.Duration("interval"))
}

func runMigrate(c *cli.Context) error {
	ctx := c.Context

	db, err := openDatabase(ctx, c)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := database.MigrationVersion(ctx, db.Pool())
	if err != nil {
		return err
	}

	slog.Info("database is up to date", "version", version)
	return nil
}
