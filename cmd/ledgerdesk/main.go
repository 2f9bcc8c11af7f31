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

	"github.com/hibiken/asynq"

	"github.com/ledgerdesk/ledgerdesk/cmd/ledgerdesk/cli"
	"github.com/ledgerdesk/ledgerdesk/internal/app"
	"github.com/ledgerdesk/ledgerdesk/internal/auth"
	bookshttp "github.com/ledgerdesk/ledgerdesk/internal/books/http"
	"github.com/ledgerdesk/ledgerdesk/internal/observability"
	"github.com/ledgerdesk/ledgerdesk/internal/platform/cache"
	"github.com/ledgerdesk/ledgerdesk/internal/session"
	"github.com/ledgerdesk/ledgerdesk/jobs"
)

const usage = `usage: ledgerdesk [command] [flags]

commands:
  serve            run the HTTP server (default)
  trial-balance    print the trial balance (exit 10 when it does not tally)
  daybook          print the day book
  jobs trigger     enqueue an integrity check
  jobs stats       show default queue statistics`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		err = serve(ctx, stop, cfg, logger)
	case "trial-balance", "daybook":
		os.Exit(runReport(ctx, cfg, logger, command, args))
	case "jobs":
		err = runJobs(ctx, cfg, args)
	case "help", "-h", "--help":
		fmt.Println(usage)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error(command, slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	stack, err := app.NewBooksStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, 0)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionStore := session.NewStore(redisClient, session.Options{
		CookieName: "ledgerdesk_session",
		Secret:     cfg.SessionSecret,
		TTL:        cfg.SessionTTL,
		Secure:     cfg.IsProduction(),
		Refresh:    stack.RefreshFunc(),
		Logger:     logger,
	})

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		SessionStore: sessionStore,
		AuthHandler:  auth.NewHandler(logger, auth.NewService(stack.Upstream)),
		BooksHandler: bookshttp.NewHandler(stack.Service, jobClient, logger),
		JobHandler:   jobs.NewHandler(inspector, logger),
		Metrics:      metrics,
		Ready: func(r *http.Request) error {
			return stack.Ready(r.Context())
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("source", cfg.BooksSource))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

func runReport(ctx context.Context, cfg *app.Config, logger *slog.Logger, command string, args []string) int {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	opts := cli.ReportOptions{}
	fs.BoolVar(&opts.JSONOutput, "json", false, "print JSON")
	fs.BoolVar(&opts.CSVOutput, "csv", false, "print CSV")
	fs.StringVar(&opts.Locale, "locale", cfg.BooksLocale, "locale for amount grouping")
	if command == "daybook" {
		fs.StringVar(&opts.From, "from", "", "first day (YYYY-MM-DD)")
		fs.StringVar(&opts.To, "to", "", "last day (YYYY-MM-DD)")
		fs.StringVar(&opts.Type, "type", "", "voucher type")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	stack, err := app.NewBooksStack(ctx, cfg, logger)
	if err != nil {
		logger.Error("books source", slog.Any("error", err))
		return 1
	}
	defer stack.Close()

	booksCLI, err := cli.NewBooksCLI(stack.Service)
	if err != nil {
		logger.Error("books cli", slog.Any("error", err))
		return 1
	}
	if command == "daybook" {
		return booksCLI.DayBookCommand(ctx, opts)
	}
	return booksCLI.TrialBalanceCommand(ctx, opts)
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("jobs: expected trigger or stats")
	}
	jobsCLI, err := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		return err
	}
	defer jobsCLI.Close()

	switch args[0] {
	case "trigger":
		info, err := jobsCLI.Trigger(ctx, jobs.TaskBooksIntegrityCheck, "cli")
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	default:
		return fmt.Errorf("jobs: unknown subcommand %q", args[0])
	}
	return nil
}
