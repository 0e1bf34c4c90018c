package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/squadfront/server/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachable() config.InfluxConfig {
	return config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     "127.0.0.1",
		Port:     "1",
		Org:      "squadfront",
		Bucket:   "engine_performance",
	}
}

func samplePoint(sessions int, ns int64) *influxdb2_write.Point {
	return influxdb2_write.NewPoint("engine_performance",
		map[string]string{"host": "test"},
		map[string]any{"sessions": sessions},
		time.Unix(0, ns),
	)
}

func readBackup(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func connect(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{Bucket: "engine_performance"}, zerolog.Nop(), "")
	err := m.Connect(context.Background())
	assert.True(t, errors.Is(err, ErrDisabled))
	assert.False(t, m.Online())
	assert.Equal(t, "engine_performance", m.Bucket())
	assert.NoError(t, m.Close())
}

func TestNewManager_DefaultRetention(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	assert.Equal(t, defaultRetentionDays, m.cfg.RetentionDays)
}

func TestServerURL(t *testing.T) {
	m := NewManager(config.InfluxConfig{Protocol: "https", Host: "metrics", Port: "8086"}, zerolog.Nop(), "")
	assert.Equal(t, "https://metrics:8086", m.ServerURL())
}

func TestWritePoint_NotConnected(t *testing.T) {
	m := NewManager(config.InfluxConfig{Bucket: "engine_performance"}, zerolog.Nop(), "")
	err := m.WritePoint("engine_performance", influxdb2_write.NewPointWithMeasurement("x"))
	assert.Error(t, err)
}

func TestWritePoint_UnknownBucket(t *testing.T) {
	m := NewManager(unreachable(), zerolog.Nop(), filepath.Join(t.TempDir(), "b.lp.gz"))
	connect(t, m)
	defer m.Close()

	err := m.WritePoint("rounds", samplePoint(1, 1))
	assert.ErrorContains(t, err, "not registered")
	assert.Zero(t, m.Stats().BackedUp)
}

func TestConnect_UnreachableFallsBackToBackup(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "influx_backup.lp.gz")
	m := NewManager(unreachable(), zerolog.Nop(), backup)
	connect(t, m)
	assert.False(t, m.Online())

	require.NoError(t, m.WritePoint("engine_performance", samplePoint(3, 42)))
	assert.Equal(t, Stats{BackedUp: 1}, m.Stats())
	require.NoError(t, m.Close())

	assert.Equal(t, []string{"engine_performance,host=test sessions=3i 42"}, readBackup(t, backup))
}

func TestConnect_UnreachableWithoutBackupPath(t *testing.T) {
	m := NewManager(unreachable(), zerolog.Nop(), "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, m.Connect(ctx))
}

func TestBackup_AppendsAcrossRuns(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "influx_backup.lp.gz")

	for i, ns := range []int64{1, 2} {
		m := NewManager(unreachable(), zerolog.Nop(), backup)
		connect(t, m)
		require.NoError(t, m.WritePoint("engine_performance", samplePoint(i, ns)))
		require.NoError(t, m.Close())
	}

	assert.Equal(t, []string{
		"engine_performance,host=test sessions=0i 1",
		"engine_performance,host=test sessions=1i 2",
	}, readBackup(t, backup))
}

func TestBackup_UntaggedPoint(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "influx_backup.lp.gz")
	m := NewManager(unreachable(), zerolog.Nop(), backup)
	connect(t, m)

	p := influxdb2_write.NewPoint("engine_performance", nil, map[string]any{"sessions": 2}, time.Unix(0, 7))
	require.NoError(t, m.WritePoint("engine_performance", p))
	require.NoError(t, m.Close())

	assert.Equal(t, []string{"engine_performance sessions=2i 7"}, readBackup(t, backup))
}
