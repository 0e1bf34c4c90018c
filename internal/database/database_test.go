package database

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/squadfront/server/internal/config"
	"github.com/squadfront/server/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DBConfig{
		Host:     "db.internal",
		Port:     "5433",
		Username: "sf",
		Password: "secret",
		Database: "archive",
	})
	assert.Equal(t, "host=db.internal port=5433 user=sf password=secret dbname=archive sslmode=disable", dsn)
}

func TestManager_ConnectSqliteInMemory(t *testing.T) {
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.ConnectSqlite(""))
	defer m.Close()

	assert.True(t, m.IsValid)
	require.NoError(t, m.Setup())

	var infos []model.ServerInfo
	require.NoError(t, m.DB.Find(&infos).Error)
	require.Len(t, infos, 1)
	assert.Equal(t, "squadfront", infos[0].Name)

	for _, mdl := range model.DatabaseModels {
		assert.True(t, m.DB.Migrator().HasTable(mdl), "%T", mdl)
	}
}

func TestManager_SetupIsIdempotent(t *testing.T) {
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.ConnectSqlite(filepath.Join(t.TempDir(), "archive.db")))
	defer m.Close()

	require.NoError(t, m.Setup())
	require.NoError(t, m.Setup())

	var count int64
	require.NoError(t, m.DB.Model(&model.ServerInfo{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestManager_SetupWithoutConnection(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.Error(t, m.Setup())
	assert.NoError(t, m.Close())
}

func TestManager_Close(t *testing.T) {
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.ConnectSqlite(""))
	require.NoError(t, m.Close())
	assert.False(t, m.IsValid)
}
