package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/squadfront/server/internal/model"
	"github.com/squadfront/server/internal/session"

	"gorm.io/gorm"
)

// Measurement is the influx measurement name of engine samples.
const Measurement = "engine_performance"

// StatsSource reports engine load.
type StatsSource interface {
	Stats() session.Stats
}

// PointWriter accepts influx points.
type PointWriter interface {
	WritePoint(bucket string, point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Engine     StatsSource
	Influx     PointWriter // optional
	Bucket     string
	DB         *gorm.DB // optional
	Logger     *slog.Logger
	Interval   time.Duration
	StatusFile string // optional, rewritten with the latest sample
	Server     string // server tag on influx points, defaults to the hostname
}

// Service samples engine stats on an interval
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	if deps.Server == "" {
		deps.Server = defaultServer()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Sample reads the engine once
func (s *Service) Sample(now time.Time) model.EnginePerformance {
	st := s.deps.Engine.Stats()
	return model.EnginePerformance{
		Time:           now,
		Sessions:       st.Sessions,
		CombatSessions: st.CombatSessions,
		Figures:        st.Figures,
		Projectiles:    st.Projectiles,
		LastTickMs:     float32(st.LastTick.Microseconds()) / 1000,
	}
}

func defaultServer() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "unknown"
}

// Point converts a sample to an influx point tagged with the server that took it
func Point(perf model.EnginePerformance, server string) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(Measurement,
		map[string]string{"server": server},
		map[string]any{
			"sessions":        perf.Sessions,
			"combat_sessions": perf.CombatSessions,
			"figures":         perf.Figures,
			"projectiles":     perf.Projectiles,
			"last_tick_ms":    perf.LastTickMs,
		},
		perf.Time,
	)
}

// Record samples the engine and writes the sample to every configured sink
func (s *Service) Record(now time.Time) model.EnginePerformance {
	perf := s.Sample(now)
	logger := s.deps.Logger

	if s.deps.Influx != nil {
		if err := s.deps.Influx.WritePoint(s.deps.Bucket, Point(perf, s.deps.Server)); err != nil {
			logger.Error("Error writing perf point to InfluxDB", "error", err)
		}
	}

	// write model to the archive database
	if s.deps.DB != nil {
		if err := s.deps.DB.Create(&perf).Error; err != nil {
			logger.Error("Error writing perf model to DB", "error", err)
		}
	}

	if s.deps.StatusFile != "" {
		if err := writeStatus(s.deps.StatusFile, perf); err != nil {
			logger.Error("Error writing status file", "error", err)
		}
	}

	return perf
}

func writeStatus(path string, perf model.EnginePerformance) error {
	data, err := json.MarshalIndent(perf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.deps.Engine == nil {
		s.mu.Unlock()
		return fmt.Errorf("monitor: no engine")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.deps.Logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				s.Record(now)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
