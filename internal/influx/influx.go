// Package influx ships engine samples to InfluxDB. When the server is down at
// startup, points are appended to a gzip line-protocol file instead.
package influx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/squadfront/server/internal/config"
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influxdb is disabled")

const defaultRetentionDays = 90

// Stats counts points since Connect.
type Stats struct {
	Written  int64 // handed to the influx write API
	BackedUp int64 // appended to the backup file
}

// Manager writes points to the configured bucket.
type Manager struct {
	cfg        config.InfluxConfig
	log        zerolog.Logger
	backupPath string

	mu     sync.Mutex
	client influxdb2.Client
	writer influxdb2_api.WriteAPI
	backup *lineBackup
	online bool
	stats  Stats
}

func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = defaultRetentionDays
	}
	return &Manager{cfg: cfg, log: log, backupPath: backupPath}
}

// ServerURL returns the configured InfluxDB address.
func (m *Manager) ServerURL() string {
	return fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port)
}

// Bucket is the only bucket WritePoint accepts.
func (m *Manager) Bucket() string { return m.cfg.Bucket }

// Online reports whether points go to the server rather than the backup file.
func (m *Manager) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Connect pings the server and prepares the org and bucket. An unreachable
// server is not an error: the backup file is opened instead.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(
		m.ServerURL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	if running, err := client.Ping(ctx); err != nil || !running {
		client.Close()
		m.log.Warn().Err(err).Str("url", m.ServerURL()).Str("backupPath", m.backupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		backup, err := openLineBackup(m.backupPath)
		if err != nil {
			return err
		}
		m.mu.Lock()
		m.backup = backup
		m.mu.Unlock()
		return nil
	}

	if err := m.ensureBucket(ctx, client); err != nil {
		client.Close()
		return err
	}

	writer := client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errs <-chan error) {
		for err := range errs {
			m.log.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(writer.Errors())

	m.mu.Lock()
	m.client = client
	m.writer = writer
	m.online = true
	m.mu.Unlock()

	m.log.Info().Str("url", m.ServerURL()).Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) ensureBucket(ctx context.Context, client influxdb2.Client) error {
	org, err := client.OrganizationsAPI().FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.log.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		if org, err = client.OrganizationsAPI().CreateOrganizationWithName(ctx, m.cfg.Org); err != nil {
			return fmt.Errorf("create organization %s: %w", m.cfg.Org, err)
		}
	}

	if _, err := client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}
	m.log.Info().Str("bucket", m.cfg.Bucket).Int("retentionDays", m.cfg.RetentionDays).Msg("Bucket not found, creating")

	expire := domain.RetentionRuleTypeExpire
	_, err = client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
		Type:         &expire,
		EverySeconds: int64(m.cfg.RetentionDays) * 24 * 60 * 60,
	})
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", m.cfg.Bucket, err)
	}
	return nil
}

// WritePoint queues a point for the server or appends it to the backup file.
func (m *Manager) WritePoint(bucket string, point *influxdb2_write.Point) error {
	if bucket != m.cfg.Bucket {
		return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.online:
		m.writer.WritePoint(point)
		m.stats.Written++
		return nil
	case m.backup != nil:
		if err := m.backup.write(point); err != nil {
			return err
		}
		m.stats.BackedUp++
		return nil
	default:
		return errors.New("influxDB client not initialized and backup writer not available")
	}
}

// Close flushes pending writes and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writer != nil {
		m.writer.Flush()
		m.writer = nil
	}
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.online = false

	if m.backup == nil {
		return nil
	}
	err := m.backup.close()
	m.backup = nil
	return err
}
