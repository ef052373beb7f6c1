package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/cache"
	"ledger/internal/cli"
	ledgerlog "ledger/internal/log"
	"ledger/internal/metrics"
	"ledger/internal/report"
	"ledger/internal/report/sheets"
	"ledger/internal/services"
)

const cacheSweepInterval = time.Minute

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, ledgerlog.ComponentApp)

	logger.Info("Starting ledger-worker")

	logCtx := ledgerlog.NewContext(context.Background(), logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	m := metrics.New()

	budgetCfg := services.BudgetServiceConfig{
		Defaults:    cfg.Defaults(),
		Metrics:     m,
		Concurrency: cfg.BudgetRefreshConcurrency,
	}
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPAlertQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, alerts will be stored as notifications", ledgerlog.FieldError, err)
		} else {
			defer amqpClient.Close()
			budgetCfg.Publisher = amqpClient
			logger.Info("AMQP client initialized, alerts will be delivered by notify-worker")
		}
	} else {
		logger.Info("AMQP disabled, alerts will be stored as notifications")
	}

	expenseService := services.NewExpenseService(repo, cfg.Defaults())
	processor := services.NewRecurringProcessor(repo, expenseService, m)
	budgetService := services.NewBudgetService(repo, budgetCfg)

	var exporter *report.Exporter
	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err := sheets.New(logCtx, sheets.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleReportSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleCredentialsFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", ledgerlog.FieldError, err)
		} else {
			exporter = report.NewExporter(repo, sheetsClient)
			logger.Info("Budget report export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		}
	}

	janitor := cache.NewJanitor(budgetService.Snapshots())
	janitor.Start(logCtx, cacheSweepInterval)

	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metrics.NewServeMux(m, logger.WithComponent(ledgerlog.ComponentMetrics)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Metrics server listening", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", ledgerlog.FieldError, err)
		}
	}()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		janitor.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", ledgerlog.FieldError, err)
		}
	})

	recurringLog := logger.WithComponent(ledgerlog.ComponentRecurring)
	recurringLog.Info("Recurring expense processor configured", "interval", cfg.RecurringInterval)
	go cli.Every(ctx, cfg.RecurringInterval, func(ctx context.Context, now time.Time) {
		count, err := processor.ProcessDue(ctx, now)
		if err != nil {
			recurringLog.Error("Recurring processing failed", ledgerlog.FieldError, err)
			return
		}
		recurringLog.Info("Recurring processing complete",
			ledgerlog.FieldCount, count,
			"next_check", now.Add(cfg.RecurringInterval).Format(time.TimeOnly))
	})

	budgetLog := logger.WithComponent(ledgerlog.ComponentBudget)
	budgetLog.Info("Budget refresh configured",
		"interval", cfg.BudgetRefreshInterval,
		"concurrency", cfg.BudgetRefreshConcurrency)
	go cli.Every(ctx, cfg.BudgetRefreshInterval, func(ctx context.Context, now time.Time) {
		count, err := budgetService.RefreshAll(ctx, now)
		if err != nil {
			budgetLog.Error("Budget refresh finished with errors", ledgerlog.FieldCount, count, ledgerlog.FieldError, err)
		} else {
			budgetLog.Info("Budget refresh complete", ledgerlog.FieldCount, count)
		}

		if exporter == nil {
			return
		}
		rows, err := exporter.Export(ctx, now)
		if err != nil {
			logger.WithComponent(ledgerlog.ComponentReport).Error("Budget report export failed", ledgerlog.FieldError, err)
			return
		}
		logger.WithComponent(ledgerlog.ComponentReport).Info("Budget report exported", ledgerlog.FieldCount, rows)
	})

	cli.WaitForShutdown(ctx, done)
}
