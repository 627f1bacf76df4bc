package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ogurasousui/onboarding-compliance/internal/adapters/grpc/handler"
	"github.com/ogurasousui/onboarding-compliance/internal/adapters/repository/postgres"
	"github.com/ogurasousui/onboarding-compliance/internal/core/compliance"
	"github.com/ogurasousui/onboarding-compliance/internal/core/contract"
	"github.com/ogurasousui/onboarding-compliance/internal/core/employee"
	"github.com/ogurasousui/onboarding-compliance/internal/core/integration"
	"github.com/ogurasousui/onboarding-compliance/internal/core/ledger"
	"github.com/ogurasousui/onboarding-compliance/internal/core/report"
	"github.com/ogurasousui/onboarding-compliance/internal/core/sweep"
	"github.com/ogurasousui/onboarding-compliance/internal/platform/auth"
	"github.com/ogurasousui/onboarding-compliance/internal/platform/config"
	pg "github.com/ogurasousui/onboarding-compliance/internal/platform/db/postgres"
	"github.com/ogurasousui/onboarding-compliance/internal/platform/obs"
	"github.com/ogurasousui/onboarding-compliance/internal/platform/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := obs.NewLogger(cfg.Log, os.Stdout)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	weekdays, err := integration.ParseWeekdays(cfg.Integration.AllowedSchedulingWeekdays)
	if err != nil {
		return err
	}
	policy := integration.Policy{
		AllowedWeekdays:                weekdays,
		AttendanceGraceDays:            cfg.Integration.AttendanceGraceDays,
		DefaultExamValidityDays:        cfg.Integration.DefaultExamValidityDays,
		DefaultIntegrationValidityDays: cfg.Integration.DefaultIntegrationValidityDays,
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := obs.NewMetrics(registry)
	if err != nil {
		return err
	}
	metrics.SetBuildInfo(version)

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	tx := pg.NewTransactionManager(dbPool)
	ledgerSvc := ledger.NewService(postgres.NewLedgerRepository(dbPool), nil, tx)
	contractSvc := contract.NewService(postgres.NewContractRepository(dbPool), nil, tx)
	employeeSvc := employee.NewService(postgres.NewEmployeeRepository(dbPool), contractSvc, ledgerSvc, nil, tx)
	docs := compliance.NewService(
		postgres.NewRequiredDocumentRepository(dbPool),
		postgres.NewAttachmentRepository(dbPool),
		postgres.NewApprovalRecordRepository(dbPool),
		nil,
		tx,
	)

	sweeper := sweep.NewSweeper(ledgerSvc, contractSvc, employeeSvc, policy.AttendanceGraceDays, nil, tx).
		WithLogger(logger.With(slog.String("component", "sweep"))).
		WithObservers(metrics, metrics)
	workflow := integration.NewWorkflow(ledgerSvc, employeeSvc, docs, policy, tx).WithObserver(metrics)
	reports := report.NewService(ledgerSvc, employeeSvc, docs, sweep.NewTrigger(sweeper, cfg.Sweep.MinTriggerInterval))

	integrationHandler := handler.NewIntegrationHandler(handler.Dependencies{
		Workflow:  workflow,
		Employees: employeeSvc,
		Contracts: contractSvc,
		Documents: docs,
		Reports:   reports,
	})
	grpcServer := server.New(cfg.Server.ListenAddr, integrationHandler, server.Options{
		Logger:   logger.With(slog.String("component", "grpc")),
		Metrics:  metrics,
		Verifier: auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
	})

	go sweep.NewScheduler(sweeper, cfg.Sweep.Interval).Start(ctx)

	if cfg.Server.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           metricsMux(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("addr", cfg.Server.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	return grpcServer.Run(ctx)
}

func metricsMux(registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", obs.Handler(registry))
	return mux
}
