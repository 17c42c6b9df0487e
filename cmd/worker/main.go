package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"deal_proforma/pkg/core/config"
	"deal_proforma/pkg/core/distribution"
	"deal_proforma/pkg/core/logger"
	"deal_proforma/pkg/core/mq"
	"deal_proforma/pkg/core/scheduler"
	"deal_proforma/pkg/core/store"
)

func main() {
	configPath := flag.String("config", "config/proforma.yaml", "path to the YAML config")
	accrueNow := flag.Bool("accrue-now", false, "run one accrual pass at startup")
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

	ledger, err := store.OpenLedger(ctx, cfg.Database.URL, cfg.Database.SQLitePath)
	if err != nil {
		log.Fatal("Failed to open ledger", zap.Error(err))
	}
	defer ledger.Close()
	defer store.Close()

	policy, _ := cfg.Policy()
	svc := distribution.NewService(ledger, policy, cfg.AccrualRule(), log)

	// 1. Accrual schedule
	sched := scheduler.NewAccrualScheduler(ctx, svc, log)
	if err := sched.Register(cfg.Schedule.AccrualCron); err != nil {
		log.Fatal("Failed to schedule accrual", zap.Error(err))
	}
	if *accrueNow {
		sched.RunNow()
	}
	sched.Start()
	defer sched.Stop()

	// 2. Event queue; without one the worker only accrues
	if cfg.MQ.URL == "" {
		log.Info("No queue configured, running accrual only", zap.String("cron", cfg.Schedule.AccrualCron))
		<-ctx.Done()
		return
	}

	consumer, err := mq.NewConsumer(cfg.MQ.URL, cfg.MQ.Queue, mq.RoutingKeyEventSubmitted, log)
	if err != nil {
		log.Fatal("Failed to create consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(svc.HandleMessage)

	log.Info("Worker started",
		zap.String("queue", cfg.MQ.Queue),
		zap.String("cron", cfg.Schedule.AccrualCron),
	)
	if err := consumer.StartConsuming(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Consumer stopped", zap.Error(err))
	}
	log.Info("Worker stopped")
}
