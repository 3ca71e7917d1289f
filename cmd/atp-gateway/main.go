package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/atplabs/atp-gateway/internal/audit"
	"github.com/atplabs/atp-gateway/internal/config"
	"github.com/atplabs/atp-gateway/internal/execution"
	"github.com/atplabs/atp-gateway/internal/httpserver"
	"github.com/atplabs/atp-gateway/internal/risk"
	"github.com/atplabs/atp-gateway/internal/service"
	"github.com/atplabs/atp-gateway/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	var (
		st       store.Store
		auditLog audit.Log
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open: %v", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
		if err := db.Ping(); err != nil {
			log.Fatalf("db ping: %v", err)
		}
		if _, err := db.Exec(store.Schema); err != nil {
			log.Fatalf("apply action schema: %v", err)
		}
		if _, err := db.Exec(audit.Schema); err != nil {
			log.Fatalf("apply audit schema: %v", err)
		}
		st = store.NewPGStore(db)
		auditLog = audit.NewPGLog(db)
	} else {
		log.Printf("[startup] no database configured, using in-memory store")
		st = store.NewMemoryStore()
		auditLog = audit.NewMemoryLog()
	}

	var assessor risk.Assessor = risk.NewRuleAssessor()
	if cfg.RiskURL != "" {
		httpAssessor, err := risk.NewHTTPAssessor(risk.HTTPAssessorConfig{
			BaseURL:  cfg.RiskURL,
			Timeout:  cfg.RiskTimeout,
			Retries:  cfg.RiskRetries,
			Fallback: assessor,
		})
		if err != nil {
			log.Fatalf("risk assessor init: %v", err)
		}
		assessor = httpAssessor
	}

	gateway := service.New(st, auditLog, assessor, execution.NewWebhookEngine(nil), cfg.Version)
	server := httpserver.New(gateway, cfg.JWTSecret)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.KafkaBrokers) > 0 {
		source, ok := auditLog.(audit.PendingSource)
		if !ok {
			log.Fatalf("[startup] audit streaming requires a database-backed audit log")
		}
		producer, err := audit.NewKafkaProducer(audit.KafkaProducerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			log.Fatalf("kafka producer init: %v", err)
		}

		var archiver audit.Archiver
		if cfg.S3Bucket != "" {
			archiver, err = audit.NewS3Archiver(ctx, cfg.S3Bucket, cfg.S3Prefix)
			if err != nil {
				log.Fatalf("s3 archiver init: %v", err)
			}
		}

		streamer := audit.NewStreamer(source, producer, archiver, audit.StreamerConfig{})
		go streamer.Run(ctx)
		log.Printf("[startup] audit streamer running (topic=%s)", cfg.KafkaTopic)
	}

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("ATP gateway listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	waitForShutdown(cancel, httpServer)
}

func waitForShutdown(cancel context.CancelFunc, srv *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
