// Bulk import of discounts from parquet files into the configured catalog
// and vector index.
//
// Usage:
//
//	ENV=prod dishpal-loader -data-dir /data -batch-size 64
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dishpal/internal/app"
	"github.com/kailas-cloud/dishpal/internal/config"
	"github.com/kailas-cloud/dishpal/internal/loader"
	logpkg "github.com/kailas-cloud/dishpal/internal/logger"
	"github.com/kailas-cloud/dishpal/internal/version"
)

func main() {
	dataDir := flag.String("data-dir", "/data", "directory with *.parquet files")
	batchSize := flag.Int("batch-size", 0, "discounts per batch (0 = index.max_batch_size)")
	flag.Parse()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger("dishpal-loader", env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if *batchSize <= 0 {
		*batchSize = cfg.Index.MaxBatchSize
	}
	logger.Info("Starting dishpal loader",
		zap.String("version", version.String()),
		zap.String("data_dir", *dataDir),
		zap.Int("batch_size", *batchSize),
	)

	a, err := app.New(ctx, &cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build services", zap.Error(err))
	}
	defer a.Close()

	start := time.Now()
	st, err := loader.New(a.Ingest, *batchSize, logger).LoadDir(ctx, *dataDir)
	fields := []zap.Field{
		zap.Int("files", st.Files),
		zap.Int("rows", st.Rows),
		zap.Int("loaded", st.Loaded),
		zap.Int("skipped", st.Skipped),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		a.Close()
		logger.Fatal("Load failed", append(fields, zap.Error(err))...)
	}
	logger.Info("Load complete", fields...)
}
