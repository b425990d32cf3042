package main

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/banshee-data/ride.report/internal/analysis"
	"github.com/banshee-data/ride.report/internal/config"
	"github.com/banshee-data/ride.report/internal/db"
	"github.com/banshee-data/ride.report/internal/events"
	"github.com/banshee-data/ride.report/internal/monitoring"
	"github.com/banshee-data/ride.report/internal/report"
	"github.com/banshee-data/ride.report/internal/ride/cv"
	"github.com/banshee-data/ride.report/internal/ride/hazards"
	"github.com/banshee-data/ride.report/internal/ride/pipeline"
	"github.com/banshee-data/ride.report/internal/ride/risk"
	"github.com/banshee-data/ride.report/internal/ride/sampler"
)

// loadConfig reads the app config and installs the process logger.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.LoadAppConfig(*configPath)
	if err != nil {
		return nil, err
	}
	logger, err := monitoring.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	monitoring.Install(logger)
	wireLogStreams(logger, cfg.Log)
	return cfg, nil
}

// logStreams are the writers handed to each package's SetLogWriters. A
// nil writer disables that stream.
type logStreams struct {
	ops, diag, trace io.Writer
}

func newLogStreams(l *zap.SugaredLogger, lc config.LogConfig) logStreams {
	s := logStreams{ops: monitoring.StreamWriter(l, "ops", zap.WarnLevel)}
	if lc.Diag {
		s.diag = monitoring.StreamWriter(l, "diag", zap.InfoLevel)
	}
	if lc.Trace {
		s.trace = monitoring.StreamWriter(l, "trace", zap.DebugLevel)
	}
	return s
}

// wireLogStreams routes the package streams through l. Ops is always on;
// diag and trace follow the log config.
func wireLogStreams(l *zap.SugaredLogger, lc config.LogConfig) {
	s := newLogStreams(l, lc)
	sampler.SetLogWriters(s.diag, s.trace)
	hazards.SetLogWriters(s.ops, s.diag, s.trace)
	pipeline.SetLogWriters(s.ops, s.diag, s.trace)
	analysis.SetLogWriters(s.ops, s.diag)
	events.SetLogWriters(s.ops, s.diag)
}

func detectorConfig(dc config.DetectorConfig) cv.DetectorConfig {
	return cv.DetectorConfig{
		ModelPath:     dc.ModelPath,
		InputSize:     dc.InputSize,
		ConfThreshold: float32(dc.ConfThreshold),
		NMSThreshold:  float32(dc.NMSThreshold),
	}
}

func openVideo(path string) (pipeline.VideoSource, io.Closer, error) {
	v, err := cv.OpenVideo(path)
	if err != nil {
		return nil, nil, err
	}
	return v, v, nil
}

// serviceOptions selects the optional sinks of an analysis service.
type serviceOptions struct {
	Store     *db.DB
	Publish   bool
	ReportDir string
}

// newService builds the analysis service from the config. The returned
// cleanup closes the detector and the event publisher.
func newService(cfg *config.AppConfig, opts serviceOptions) (*analysis.Service, func(), error) {
	thresholds, err := cfg.TuningThresholds()
	if err != nil {
		return nil, nil, err
	}
	model, err := risk.NewTrainedModel()
	if err != nil {
		return nil, nil, fmt.Errorf("train risk model: %w", err)
	}
	det, err := cv.NewDetector(detectorConfig(cfg.Detector))
	if err != nil {
		return nil, nil, err
	}

	var pub events.Publisher = events.Nop{}
	if opts.Publish && cfg.Kafka.Enabled {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			det.Close()
			return nil, nil, err
		}
		pub = kp
	}

	svc := &analysis.Service{
		Runner:    pipeline.NewEngine(thresholds, cv.NewFarneback(), det, cv.NewPixels(), model),
		Open:      openVideo,
		Publisher: pub,
	}
	if opts.Store != nil {
		svc.Store = opts.Store
	}
	if opts.ReportDir != "" {
		svc.Reports = report.NewWriter(opts.ReportDir)
	}

	cleanup := func() {
		if err := pub.Close(); err != nil {
			monitoring.Logf("event publisher close: %v", err)
		}
		if err := det.Close(); err != nil {
			monitoring.Logf("detector close: %v", err)
		}
	}
	return svc, cleanup, nil
}

func openStore(cfg *config.AppConfig) (*db.DB, error) {
	store, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	return store, nil
}
