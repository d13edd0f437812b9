package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"auditrelay/internal/audit"
	"auditrelay/internal/blacklist"
	"auditrelay/internal/compliance"
	compliancehandler "auditrelay/internal/compliance/handler"
	"auditrelay/internal/jwttoken"
	"auditrelay/internal/ledger"
	"auditrelay/internal/pipeline"
	"auditrelay/internal/platform/config"
	"auditrelay/internal/platform/httpserver"
	"auditrelay/internal/platform/logger"
	"auditrelay/internal/platform/metrics"
	"auditrelay/internal/platform/middleware"
	httptransport "auditrelay/internal/transport/http"
	"auditrelay/internal/webhook"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The decoder is useless without its schema; refuse to start without one.
	schema, err := ledger.LoadSchema(cfg.SchemaPath)
	if err != nil {
		log.Error("event schema load failed", "error", err)
		os.Exit(1)
	}

	// Audit ledger: postgres when configured, in-memory otherwise, optionally
	// teed into a rotating JSONL file.
	var auditLedger audit.Ledger
	if cfg.DatabaseURL != "" {
		pg, err := audit.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres audit ledger unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		auditLedger = pg
		log.Info("audit ledger backed by postgres")
	} else {
		auditLedger = audit.NewInMemoryLedger()
	}
	if cfg.AuditLogFile != "" {
		sink := audit.NewFileSink(cfg.AuditLogFile)
		defer sink.Close()
		auditLedger = audit.WithFileSink(auditLedger, sink)
		log.Info("audit trail teed to file", "path", cfg.AuditLogFile)
	}

	var blocklist blacklist.Store
	if cfg.RedisURL != "" {
		rs, err := blacklist.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Error("redis blacklist store unavailable", "error", err)
			os.Exit(1)
		}
		defer rs.Close()
		blocklist = rs
		log.Info("blacklist backed by redis")
	} else {
		blocklist = blacklist.NewInMemoryStore()
	}

	gate := compliance.NewGate(blocklist, compliance.GateConfig{
		ScreeningURL: cfg.ScreeningURL,
		Timeout:      cfg.ScreeningTimeout,
		FailClosed:   cfg.ScreeningFailClosed,
	}, log, m)

	dispatcher := webhook.NewDispatcher(webhook.Config{
		URL:            cfg.WebhookURL,
		MaxRetries:     cfg.WebhookMaxRetries,
		AttemptTimeout: cfg.WebhookTimeout,
		QueueSize:      cfg.WebhookQueueSize,
		Workers:        cfg.WebhookWorkers,
	}, log, m)
	if cfg.WebhookURL != "" {
		log.Info("webhook configured",
			"url", cfg.WebhookURL,
			"max_retries", cfg.WebhookMaxRetries,
			"timeout", cfg.WebhookTimeout.String(),
		)
	}

	ingest := pipeline.New(
		ledger.NewDecoder(schema),
		pipeline.NewMapper(cfg.ProgramID),
		auditLedger,
		dispatcher,
		cfg.ProgramID,
		log,
		m,
	)

	var validator middleware.TokenValidator
	if cfg.APIJWTSecret != "" {
		validator = jwttoken.NewService(cfg.APIJWTSecret, "auditrelay")
	} else {
		log.Warn("API_JWT_SECRET unset, mutation endpoints are open")
	}

	handler := compliancehandler.New(auditLedger, blocklist, gate, validator, cfg.DefaultNamespace, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(log, handler))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting auditrelay", "addr", cfg.Addr, "program_id", cfg.ProgramID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := dispatcher.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.RunListener && cfg.LedgerWSURL != "" {
		sub := ledger.NewSubscriber(cfg.LedgerWSURL, cfg.ProgramID, func(signature string, logs []string, err error) {
			ingest.Process(context.Background(), signature, logs, err)
		}, log)
		g.Go(func() error {
			err := sub.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		log.Info("event listener disabled",
			"run_listener", cfg.RunListener,
			"ws_configured", cfg.LedgerWSURL != "",
		)
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
}
