package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	configs "activity_service/config"
	"activity_service/internal/repository"
	"activity_service/pkg/db"
	"activity_service/pkg/kafka"
	"activity_service/pkg/logger"
)

func main() {
	log := logger.New()
	defer func() { _ = log.Sync() }()

	cfg, err := configs.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pg, err := db.NewPostgres(db.Config{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.DBName,
		SSLMode:  cfg.DB.SSLMode,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = pg.Close() }()

	producer, err := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
	if err != nil {
		log.Fatalf("Failed to create Kafka producer: %v", err)
	}
	defer func() { _ = producer.Close() }()

	activityRepo := repository.NewActivityRepository(pg.DB())

	worker := NewReconcileWorker(activityRepo, producer, log, cfg.Worker.ReconcileInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Start(ctx)
	log.Infof("Reconcile worker started, interval %s", cfg.Worker.ReconcileInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down reconcile worker...")
	cancel()
	log.Info("Reconcile worker stopped")
}
