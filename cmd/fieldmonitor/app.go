package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"fieldmonitor/internal/blob"
	"fieldmonitor/internal/config"
	"fieldmonitor/internal/core"
	"fieldmonitor/internal/events"
	"fieldmonitor/internal/log"
	"fieldmonitor/internal/persistence"
	"fieldmonitor/internal/report"
	"fieldmonitor/internal/seed"
)

// app holds the wired collaborators shared by every command.
type app struct {
	cfg       *config.Config
	logger    *log.Logger
	blobs     blob.Store
	store     *core.Store
	service   *core.Service
	publisher events.Publisher
	registry  *prometheus.Registry
	expvar    *core.ExpvarMetricsRecorder
	reporter  *report.Reporter
}

func newLogger(cfg *config.Config, w io.Writer) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}
	return log.New(log.Config{Level: level, Format: cfg.LogFormat, Writer: w}), nil
}

func blobConfig(cfg *config.Config) blob.Config {
	return blob.Config{
		Driver:      blob.Driver(cfg.StoreDriver),
		FSRoot:      cfg.FSRoot,
		SQLitePath:  cfg.SQLitePath,
		PostgresDSN: cfg.PostgresDSN,
		S3: blob.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		},
	}
}

// openApp validates cfg and wires storage, metrics, events and reporting.
func openApp(ctx context.Context, cfg *config.Config, logw io.Writer) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, logw)
	if err != nil {
		return nil, err
	}
	log.SetDefault(logger)

	defaults, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return nil, err
	}

	blobs, err := blob.Open(ctx, blobConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	logger.Info("store opened", log.FieldOperation, log.OpStartup, log.FieldDriver, blobs.Driver())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		_ = blobs.Close()
		return nil, err
	}
	expvarRec := core.NewExpvarMetricsRecorder("")
	recorder := core.MultiRecorder{prom, expvarRec}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			_ = blobs.Close()
			return nil, err
		}
		publisher = amqpPub
	}

	var gen report.Generator
	if cfg.ReportAPIKey != "" {
		gemini, err := report.NewGemini(ctx, cfg.ReportAPIKey, cfg.ReportModel)
		if err != nil {
			logger.Warn("report generator unavailable", log.FieldError, err)
		} else {
			gen = gemini
		}
	}

	store := core.NewStore(ctx, persistence.New(blobs, logger), defaults,
		core.WithStoreMetrics(recorder),
		core.WithStoreLogger(logger),
	)
	service := core.NewService(store,
		core.WithPublisher(publisher),
		core.WithLogger(logger),
		core.WithMetrics(recorder),
		core.WithDefaultRate(cfg.DefaultRate),
	)
	return &app{
		cfg:       cfg,
		logger:    logger,
		blobs:     blobs,
		store:     store,
		service:   service,
		publisher: publisher,
		registry:  registry,
		expvar:    expvarRec,
		reporter:  report.NewReporter(gen, logger),
	}, nil
}

// Close releases the publisher and the byte store.
func (a *app) Close() error {
	return errors.Join(a.publisher.Close(), a.blobs.Close())
}
