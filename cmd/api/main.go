package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	proformaAPI "deal_proforma/pkg/api/proforma"
	waterfallAPI "deal_proforma/pkg/api/waterfall"
	"deal_proforma/pkg/core/config"
	"deal_proforma/pkg/core/distribution"
	"deal_proforma/pkg/core/logger"
	"deal_proforma/pkg/core/metrics"
	"deal_proforma/pkg/core/mq"
	"deal_proforma/pkg/core/proforma"
	"deal_proforma/pkg/core/store"
)

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.RecordHTTPRequest(r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func main() {
	configPath := flag.String("config", "config/proforma.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.Log = log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Ledger
	ledger, err := store.OpenLedger(ctx, cfg.Database.URL, cfg.Database.SQLitePath)
	if err != nil {
		log.Fatal("Failed to open ledger", zap.Error(err))
	}
	defer ledger.Close()
	defer store.Close()

	policy, _ := cfg.Policy()
	svc := distribution.NewService(ledger, policy, cfg.AccrualRule(), log)

	// 2. Optional de-duplication and queue
	var dedup *store.EventDeduper
	if cfg.Redis.Addr != "" {
		rdb := store.NewRedisClient(store.RedisOptions{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		dedup = store.NewEventDeduper(rdb, cfg.Redis.DedupTTL)
		log.Info("Event de-duplication enabled", zap.String("redis", cfg.Redis.Addr))
	}

	var publisher waterfallAPI.EventPublisher
	if cfg.MQ.URL != "" {
		p, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Fatal("Failed to connect publisher", zap.Error(err))
		}
		defer p.Close()
		publisher = p
		log.Info("Events are queued for the worker", zap.String("exchange", mq.ExchangeName))
	} else {
		log.Info("No queue configured, events are distributed inline")
	}

	// 3. Routes
	mux := http.NewServeMux()
	proformaAPI.NewHandler(proforma.NewEngine(cfg.Engine.HorizonMonths), log).Register(mux)
	waterfallAPI.NewHandler(svc, dedup, publisher, cfg.Waterfall.LPSharePct, log).Register(mux)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           instrument(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("API server starting",
		zap.String("addr", cfg.Server.Addr),
		zap.Int("horizon_months", cfg.Engine.HorizonMonths),
		zap.String("noi_mode", string(policy.NOIMode)),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Server failed", zap.Error(err))
	}
	log.Info("API server stopped")
}
