package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"pulse/internal/domain/ingest"
	"pulse/internal/domain/metrics"
	"pulse/internal/domain/report"
	"pulse/internal/infrastructure/github"
	"pulse/internal/infrastructure/mercury"
	"pulse/internal/infrastructure/postgres"
	"pulse/internal/infrastructure/quickbooks"
	"pulse/internal/infrastructure/slack"
	"pulse/internal/scheduler"
	"pulse/internal/shared/config"
	"pulse/internal/shared/logger"
	"pulse/internal/shared/retry"
	"pulse/internal/shared/telemetry"
)

const usage = `pulse - weekly business health tracker

Usage:
  pulse [command] [flags]

Commands:
  sync     Pull commits, PRs, invoices, payments, accounts and transactions
           from the sources and load them into Postgres
  report   Compute the weekly snapshot, persist it and notify Slack
  full     sync followed by report (default)
  serve    Run as a daemon: daily sync at the scheduled times, weekly report
           on the configured weekday

Flags:
  --week-start YYYY-MM-DD  Week to report on (report/full; default: current week)
  --lookback N             Override lookback window in days
  --timeout DURATION       Overall run timeout (default 10m)
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	command := "full"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command = args[0]
		args = args[1:]
	}

	flags := flag.NewFlagSet(command, flag.ExitOnError)
	flags.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	weekStartFlag := flags.String("week-start", "", "week to report on (YYYY-MM-DD)")
	lookbackFlag := flags.Int("lookback", 0, "override lookback window in days")
	timeoutFlag := flags.Duration("timeout", 10*time.Minute, "overall run timeout")
	if err := flags.Parse(args); err != nil {
		return err
	}

	switch command {
	case "sync", "report", "full", "serve":
	case "help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}

	// Optional; a missing .env just means real environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New()

	var weekStart time.Time
	if *weekStartFlag != "" {
		weekStart, err = time.Parse("2006-01-02", *weekStartFlag)
		if err != nil {
			return fmt.Errorf("invalid --week-start (expected YYYY-MM-DD): %w", err)
		}
	}

	lookback := cfg.Sync.LookbackDays
	if *lookbackFlag > 0 {
		lookback = *lookbackFlag
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	app := buildApp(cfg, db, log)

	if command == "serve" {
		return serve(ctx, cfg, app, lookback, log)
	}

	runCtx, cancelRun := context.WithTimeout(ctx, *timeoutFlag)
	defer cancelRun()

	if command == "sync" || command == "full" {
		result, err := app.pipeline.Run(runCtx, lookback)
		if result != nil {
			printSyncResult(result)
		}
		if err != nil {
			return err
		}
	}

	if command == "report" || command == "full" {
		snapshot, err := app.report.Run(runCtx, weekStart)
		if err != nil {
			return err
		}
		printSnapshot(snapshot)
	}

	return nil
}

type app struct {
	pipeline *ingest.Pipeline
	report   *report.Service
}

func buildApp(cfg *config.Config, db *postgres.DB, log zerolog.Logger) *app {
	policy := retry.DefaultPolicy()

	githubClient := github.NewClient(cfg.GitHub.Token, cfg.GitHub.Org, policy, log)
	mercuryClient := mercury.NewClient(cfg.Mercury.APIKey, policy, log).
		WithBaseURL(cfg.Mercury.BaseURL)
	quickbooksClient := quickbooks.NewClient(
		cfg.QuickBooks.ClientID, cfg.QuickBooks.ClientSecret,
		cfg.QuickBooks.RefreshToken, cfg.QuickBooks.RealmID,
		cfg.QuickBooks.Sandbox, policy, log)

	commitRepo := postgres.NewCommitRepository(db)
	prRepo := postgres.NewPullRequestRepository(db, log)
	invoiceRepo := postgres.NewInvoiceRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db, log)
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewBankTransactionRepository(db)
	metricsRepo := postgres.NewMetricsRepository(db)

	githubSync := ingest.NewGitHubSyncService(githubClient, commitRepo, prRepo, cfg.GitHub.Repo, log)
	mercurySync := ingest.NewMercurySyncService(mercuryClient, accountRepo, transactionRepo, log)
	quickbooksSync := ingest.NewQuickBooksSyncService(quickbooksClient, invoiceRepo, paymentRepo, log)
	pipeline := ingest.NewPipeline(githubSync, mercurySync, quickbooksSync, log)

	calculator := metrics.NewCalculator(commitRepo, prRepo, invoiceRepo, paymentRepo, accountRepo, transactionRepo)

	notifier := slack.NewNotifier(cfg.Slack.WebhookURLs, log)
	var notifiers []report.Notifier
	if notifier.Configured() {
		notifiers = append(notifiers, notifier)
	} else {
		log.Warn().Msg("no slack webhooks configured, reports will only be persisted")
	}

	reportService := report.NewService(calculator, metricsRepo, notifiers, log)

	return &app{pipeline: pipeline, report: reportService}
}

func serve(ctx context.Context, cfg *config.Config, app *app, lookback int, log zerolog.Logger) error {
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("telemetry shutdown failed")
			}
		}()
	}

	sched, err := scheduler.New(scheduler.Config{
		ScheduleTimes: cfg.Scheduler.ScheduleTimes,
		ReportWeekday: cfg.Scheduler.ReportWeekday,
		WorkerCount:   cfg.Scheduler.WorkerCount,
		JobDelay:      cfg.Scheduler.JobDelay,
		QueueSize:     cfg.Scheduler.QueueSize,
		RunOnStartup:  cfg.Scheduler.RunOnStartup,
		SyncJob:       scheduler.NewSyncJob(app.pipeline, lookback),
		ReportJob:     scheduler.NewReportJob(app.report),
	}, log)
	if err != nil {
		return err
	}

	sched.Start()
	log.Info().Time("next_run", sched.NextScheduledTime()).Msg("daemon running")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	sched.Shutdown(30 * time.Second)

	return nil
}

func printSyncResult(result *ingest.PipelineResult) {
	fmt.Printf("sync run %s\n", result.RunID)

	if r := result.GitHub; r != nil {
		fmt.Printf("  github:     %d commits loaded (%d skipped), %d PRs loaded (%d skipped)\n",
			r.CommitsLoaded, r.CommitsSkipped, r.PRsLoaded, r.PRsSkipped)
		printErrors(r.Errors)
	}
	if r := result.Mercury; r != nil {
		fmt.Printf("  mercury:    %d accounts loaded, %d transactions loaded (%d skipped)\n",
			r.AccountsLoaded, r.TransactionsLoaded, r.TransactionsSkipped)
		printErrors(r.Errors)
	}
	if r := result.QuickBooks; r != nil {
		fmt.Printf("  quickbooks: %d invoices loaded, %d payments loaded (%d skipped)\n",
			r.InvoicesLoaded, r.PaymentsLoaded, r.PaymentsSkipped)
		printErrors(r.Errors)
	}
}

func printErrors(errs []string) {
	for _, e := range errs {
		fmt.Printf("    error: %s\n", e)
	}
}

func printSnapshot(s *metrics.Snapshot) {
	fmt.Printf("week %s to %s\n", s.WeekStart.Format("2006-01-02"), s.WeekEnd.Format("2006-01-02"))
	fmt.Printf("  current balance:     %12.2f\n", s.CurrentBalance)
	fmt.Printf("  accounts receivable: %12.2f\n", s.AccountsReceivable)
	fmt.Printf("  invoiced:            %12.2f\n", s.InvoicedAmount)
	fmt.Printf("  cash collected:      %12.2f\n", s.CashCollected)
	fmt.Printf("  collection rate:     %11.1f%%\n", s.CollectionRate())
	fmt.Printf("  commits:             %6d\n", s.DeveloperCommits)
	fmt.Printf("  PRs merged:          %6d\n", s.PRsMerged)
}
