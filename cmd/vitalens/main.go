package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sanspareilsmyn/vitalens/internal/config"
	"github.com/sanspareilsmyn/vitalens/internal/logging"
	"github.com/sanspareilsmyn/vitalens/internal/notify"
	"github.com/sanspareilsmyn/vitalens/internal/pipeline"
	"github.com/sanspareilsmyn/vitalens/internal/server"
	"github.com/sanspareilsmyn/vitalens/internal/session"
	"github.com/sanspareilsmyn/vitalens/internal/store"
	"github.com/sanspareilsmyn/vitalens/internal/vitals"
)

var configFile = flag.String("config", "configs/config.dev.yaml", "Path to the configuration file (empty for built-in defaults)")

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration from %q: %v\n", *configFile, err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	sugar := logger.Sugar()
	sugar.Infow("Configuration loaded", "path", *configFile, "log_level", cfg.Log.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runErr := run(ctx, cfg, logger)

	finalLevel := zapcore.InfoLevel
	reason := "gracefully"
	errField := zap.Skip()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		finalLevel = zapcore.ErrorLevel
		reason = "due to error"
		errField = zap.Error(runErr)
	}
	logger.Log(finalLevel, fmt.Sprintf("VitaLens shutdown %s.", reason), zap.String("reason", reason), errField)

	if finalLevel == zapcore.ErrorLevel {
		_ = logger.Sync()
		os.Exit(1)
	}
}

// run builds every component and blocks until ctx ends or a component fails.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	estimator, err := vitals.NewEstimator(cfg.Signal)
	if err != nil {
		return err
	}

	manager := session.NewManager(estimator, cfg.ROI, cfg.Session, logger.Named("sessions"))
	if err := pipeline.RegisterActiveStreams(prometheus.DefaultRegisterer, manager); err != nil {
		return err
	}

	publishers, err := notify.New(cfg, logger.Named("notify"))
	if err != nil {
		return err
	}
	defer func() {
		if err := publishers.Close(); err != nil {
			logger.Warn("Failed to close publishers", zap.Error(err))
		}
	}()

	var (
		saver   pipeline.ReportSaver
		reports server.ReportLister
	)
	if cfg.Storage.Enabled {
		st, err := store.Open(cfg.Storage, logger.Named("store"))
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				logger.Warn("Failed to close report store", zap.Error(err))
			}
		}()
		saver, reports = st, st
	}

	reporter := pipeline.NewReporter(publishers, saver, nil, logger.Named("reporter"))
	batch := pipeline.NewBatch(estimator, cfg.ROI, cfg.Server, reporter, logger.Named("batch"))
	srv := server.New(cfg.Server, manager, batch, reporter, reports, logger.Named("server"))

	components := map[string]func(context.Context) error{
		"server":  srv.Run,
		"sweeper": manager.Run,
	}
	if cfg.Kafka.Enabled {
		pipe, err := pipeline.New(cfg.Kafka, manager, reporter, logger)
		if err != nil {
			return err
		}
		components["kafka-pipeline"] = pipe.Run
	}

	return runAll(ctx, components, logger)
}

// runAll starts every component and cancels the rest when the first one fails.
func runAll(ctx context.Context, components map[string]func(context.Context) error, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, len(components))

	for name, fn := range components {
		wg.Add(1)
		go func(name string, fn func(context.Context) error) {
			defer wg.Done()
			logger.Info("Starting component", zap.String("component", name))
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", name, err)
				return
			}
			logger.Debug("Component stopped", zap.String("component", name))
		}(name, fn)
	}

	var firstErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown requested, waiting for components...")
	case firstErr = <-errCh:
		logger.Error("Component failed, shutting down", zap.Error(firstErr))
	}
	cancel()
	wg.Wait()
	return firstErr
}
