// Package main runs the repricing API server: Postgres-backed
// configuration, S3 model artifacts, and a ClickHouse audit trail.
package main

import (
	"context"
	"os"
	"time"

	"repricer/api"
	"repricer/db/clickhouse"
	"repricer/decision/repricer"
	"repricer/internal/audit"
	"repricer/internal/config"
	"repricer/internal/models"
	"repricer/pkg/platform"
)

func main() {
	log := platform.NewLogger(platform.GetEnv("LOG_LEVEL", "info"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgCfg := config.DefaultPostgresConfig()
	if dsn := platform.GetEnv("CONFIG_DATABASE_URL", ""); dsn != "" {
		pgCfg.DSN = dsn
	}
	store, err := config.NewPostgresStore(pgCfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open config store")
	}
	defer store.Close()

	configCache := config.NewCache(store, log)

	var fetcher models.ArtifactFetcher
	if platform.GetEnvBool("MODEL_ARTIFACTS_LOCAL", false) {
		fetcher = models.FileFetcher{}
	} else {
		s3Fetcher, err := models.NewS3Fetcher(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize artifact store")
		}
		fetcher = s3Fetcher
	}
	modelCache := models.NewCache(configCache, fetcher, log)

	auditStore, err := clickhouse.NewAuditStore(&clickhouse.Config{
		Host:     platform.GetEnv("CLICKHOUSE_HOST", "localhost"),
		Port:     platform.GetEnvInt("CLICKHOUSE_PORT", 9000),
		Database: platform.GetEnv("CLICKHOUSE_DATABASE", "repricer"),
		Username: platform.GetEnv("CLICKHOUSE_USER", "default"),
		Password: platform.GetEnv("CLICKHOUSE_PASSWORD", ""),
		Debug:    platform.GetEnvBool("CLICKHOUSE_DEBUG", false),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to audit store")
	}
	defer auditStore.Close()

	if err := auditStore.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize audit schema")
	}

	var sink audit.Sink = auditStore
	if url := platform.GetEnv("AUDIT_WEBHOOK_URL", ""); url != "" {
		sink = audit.NewMulti(auditStore, audit.NewWebhookSink(url, url, log))
	}

	engine := repricer.NewEngine(configCache, modelCache, log, engineOptions()).
		WithRecorder(sink)
	engine.Optimizer().WithRecorder(sink)

	srvCfg := api.DefaultConfig()
	srvCfg.Port = platform.GetEnvInt("PORT", 8080)

	server := api.NewServer(engine, auditStore, srvCfg, log)
	if err := server.StartWithGracefulShutdown(); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func engineOptions() repricer.Options {
	opts := repricer.DefaultOptions()
	if samples := platform.GetEnvInt("OPTIMIZER_GRID_SAMPLES", 0); samples > 1 {
		opts.GridSamples = samples
	}
	return opts
}
