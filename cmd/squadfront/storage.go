package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/squadfront/server/internal/api"
	"github.com/squadfront/server/internal/config"
	"github.com/squadfront/server/internal/influx"
	"github.com/squadfront/server/internal/monitor"
	"github.com/squadfront/server/internal/storage"
	"gorm.io/gorm"
)

// setupArchive creates the configured match archive behind a Recorder.
func setupArchive(log *slog.Logger, dbLog zerolog.Logger) (*storage.Recorder, error) {
	storageCfg := config.GetStorageConfig()

	backend, err := storage.NewBackend(storageCfg, storage.Dependencies{
		DB:       config.GetDBConfig(),
		Logger:   log.With("component", "storage"),
		DBLogger: dbLog,
	})
	if err != nil {
		log.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		log.Error("Failed to initialize storage backend", "type", storageCfg.Type, "error", err)
		return nil, err
	}
	log.Info("Storage backend initialized", "type", storageCfg.Type)

	opts := storage.RecorderOptions{Logger: log.With("component", "recorder")}
	if apiCfg := config.GetAPIConfig(); apiCfg.ServerURL != "" {
		client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
		hctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Healthcheck(hctx)
		cancel()
		if err != nil {
			log.Warn("Results server is not reachable, uploads may fail", "url", apiCfg.ServerURL, "error", err)
		} else {
			log.Info("Results server reachable", "url", apiCfg.ServerURL)
		}
		opts.Uploader = client
	}
	return storage.NewRecorder(backend, opts), nil
}

// metricsSink owns the influx connection and the monitor loop.
type metricsSink struct {
	influx  *influx.Manager
	monitor *monitor.Service
	log     *slog.Logger
}

func setupMonitor(ctx context.Context, engine monitor.StatsSource, archive *storage.Recorder, log *slog.Logger, dbLog zerolog.Logger) *metricsSink {
	m := &metricsSink{log: log}
	deps := monitor.Dependencies{
		Engine:     engine,
		Logger:     log.With("component", "monitor"),
		Interval:   config.GetMonitorInterval(),
		StatusFile: config.GetString("monitor.statusFile"),
		Server:     config.GetString("monitor.server"),
	}

	influxCfg := config.GetInfluxConfig()
	backup := filepath.Join(config.GetString("logsDir"), "influx_backup.lp.gz")
	m.influx = influx.NewManager(influxCfg, dbLog, backup)
	switch err := m.influx.Connect(ctx); {
	case errors.Is(err, influx.ErrDisabled):
		log.Debug("InfluxDB disabled")
	case err != nil:
		log.Error("Failed to connect to InfluxDB", "url", m.influx.ServerURL(), "error", err)
	default:
		deps.Influx = m.influx
		deps.Bucket = m.influx.Bucket()
	}

	// database-backed archives also keep the engine samples
	if db, ok := archive.Backend().(interface{ DB() *gorm.DB }); ok {
		deps.DB = db.DB()
	}

	m.monitor = monitor.NewService(deps)
	if err := m.monitor.Start(); err != nil {
		log.Error("Failed to start monitor", "error", err)
	}
	return m
}

func (m *metricsSink) Close() {
	m.monitor.Stop()
	st := m.influx.Stats()
	if st.Written+st.BackedUp > 0 {
		m.log.Info("InfluxDB points", "written", st.Written, "backedUp", st.BackedUp)
	}
	if err := m.influx.Close(); err != nil {
		m.log.Error("Failed to close InfluxDB", "error", err)
	}
}
