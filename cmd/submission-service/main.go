package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/pharmaguard/pipeline/pkg/audit"
	"github.com/pharmaguard/pipeline/pkg/caselink"
	"github.com/pharmaguard/pipeline/pkg/common/config"
	"github.com/pharmaguard/pipeline/pkg/common/database"
	"github.com/pharmaguard/pipeline/pkg/common/kafka"
	"github.com/pharmaguard/pipeline/pkg/common/logger"
	"github.com/pharmaguard/pipeline/pkg/common/middleware"
	"github.com/pharmaguard/pipeline/pkg/followup"
	"github.com/pharmaguard/pipeline/pkg/intake"
	"github.com/pharmaguard/pipeline/pkg/normalize"
	"github.com/pharmaguard/pipeline/pkg/reporter"
	"github.com/pharmaguard/pipeline/pkg/scoring"
)

func main() {
	logger.Init("submission-service")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	migrations := []func() error{
		intake.NewRepository(db).AutoMigrate,
		normalize.NewRepository(db).AutoMigrate,
		caselink.NewRepository(db).AutoMigrate,
		scoring.NewRepository(db).AutoMigrate,
		followup.NewRepository(db).AutoMigrate,
		reporter.NewDirectory(db).AutoMigrate,
		audit.NewRecorder(db).AutoMigrate,
	}
	for _, migrate := range migrations {
		if err := migrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate tables")
		}
	}

	lexicon, err := normalize.LoadLexicon(cfg.LexiconPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load lexicon")
	}

	producer := kafka.NewProducer(cfg.PipelineTopic)
	defer producer.Close()

	svc := intake.NewService(
		db,
		intake.NewValidator(cfg.IntakeAllowedSources),
		normalize.NewNormalizer(lexicon),
		producer,
		intake.Options{
			DedupBucket:       cfg.DedupTimeBucket,
			LinkingWindowDays: cfg.LinkingWindowDays,
			FollowUp: followup.Options{
				DueDays:     cfg.FollowUpDueDays,
				MaxAttempts: cfg.FollowUpMaxAttempts,
			},
		},
	)
	handler := intake.NewHTTPHandler(svc, cfg.MaxRequestBody)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Logging, middleware.Recovery, middleware.Actor)
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Submission Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Submission Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Submission Service stopped")
}
