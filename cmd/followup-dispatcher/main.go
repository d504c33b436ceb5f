package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pharmaguard/pipeline/pkg/audit"
	"github.com/pharmaguard/pipeline/pkg/caselink"
	"github.com/pharmaguard/pipeline/pkg/common/config"
	"github.com/pharmaguard/pipeline/pkg/common/database"
	"github.com/pharmaguard/pipeline/pkg/common/kafka"
	"github.com/pharmaguard/pipeline/pkg/common/logger"
	"github.com/pharmaguard/pipeline/pkg/followup"
)

func main() {
	logger.Init("followup-dispatcher")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := followup.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate follow-up tables")
	}
	if err := caselink.NewRepository(db).AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate case tables")
	}
	if err := audit.NewRecorder(db).AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate audit tables")
	}

	tokens := followup.NewTokenStore(database.GetRedis(), cfg.FollowUpTokenTTL)

	producer := kafka.NewProducer(cfg.NotificationTopic)
	defer producer.Close()

	dlq := kafka.NewProducer(cfg.FollowUpDLQTopic)
	defer dlq.Close()

	svc := followup.NewService(repo, caselink.NewRepository(db), followup.Options{
		DueDays:     cfg.FollowUpDueDays,
		MaxAttempts: cfg.FollowUpMaxAttempts,
	})

	dispatcher := followup.NewDispatcher(svc, repo, tokens, producer, dlq, time.Minute)
	listener := followup.NewResponseListener(db, tokens, followup.Options{
		DueDays:     cfg.FollowUpDueDays,
		MaxAttempts: cfg.FollowUpMaxAttempts,
	})
	consumer := kafka.NewConsumer(cfg.FollowUpResponseTopic, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Log.Info("Follow-up Dispatcher started")
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Error("dispatcher stopped with error")
		}
	}()

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		logger.Log.Info("Follow-up response consumer started")
		if err := consumer.Consume(ctx, listener.Handle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Error("response consumer stopped with error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Follow-up Dispatcher...")
	cancel()
	<-done
	<-consumerDone

	if err := consumer.Close(); err != nil {
		logger.Log.WithError(err).Warn("failed to close response consumer")
	}

	if err := database.CloseRedis(); err != nil {
		logger.Log.WithError(err).Warn("failed to close redis connection")
	}

	logger.Log.Info("Follow-up Dispatcher stopped")
}
