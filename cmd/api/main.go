package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"scriptparser-go/internal/config"
	"scriptparser-go/internal/llm"
	"scriptparser-go/internal/logger"
	"scriptparser-go/internal/resolver"
	"scriptparser-go/internal/staging"
	"scriptparser-go/internal/storage"
	"scriptparser-go/internal/transcription"
	"scriptparser-go/internal/workflow"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "scriptparser-go").Info("starting service")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("configuration invalid")
	}

	var store storage.ObjectStore
	if cfg.OSS.Configured() {
		store = storage.NewOSS(cfg.OSS)
		log.WithField("bucket", cfg.OSS.Bucket).Info("object storage configured")
	} else {
		log.Warn("object storage not configured; file uploads are disabled")
	}
	stager := staging.New(cfg, store)

	srv := &server{
		cfg:    cfg,
		stager: stager,
		orch:   workflow.New(cfg, resolver.New(), stager, transcription.New(cfg.ASR), llm.New(cfg)),
	}

	addr := fmt.Sprintf(":%s", cfg.Port)
	httpSrv := &http.Server{
		Addr:        addr,
		Handler:     srv.routes(),
		ReadTimeout: 15 * time.Second,
		// one full pipeline run has to fit inside the response window
		WriteTimeout: cfg.TotalBudget + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", addr).Info("listening")
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}
