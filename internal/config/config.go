package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "squadfront.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// StorageConfig selects and configures the match archive backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds InfluxDB settings
type InfluxConfig struct {
	Enabled       bool   `json:"enabled" mapstructure:"enabled"`
	Host          string `json:"host" mapstructure:"host"`
	Port          string `json:"port" mapstructure:"port"`
	Protocol      string `json:"protocol" mapstructure:"protocol"`
	Token         string `json:"token" mapstructure:"token"`
	Org           string `json:"org" mapstructure:"org"`
	Bucket        string `json:"bucket" mapstructure:"bucket"`
	RetentionDays int    `json:"retentionDays" mapstructure:"retentionDays"`
}

// APIConfig holds the results server settings. Uploads are off when ServerURL is empty.
type APIConfig struct {
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
}

// ServerConfig holds the HTTP/websocket listener settings
type ServerConfig struct {
	ListenAddr string `json:"listenAddr" mapstructure:"listenAddr"`
	Encoding   string `json:"encoding" mapstructure:"encoding"`
}

// EngineConfig holds the game rules
type EngineConfig struct {
	TickRate            int           `json:"tickRate" mapstructure:"tickRate"`
	PreparationDuration time.Duration `json:"preparationDuration" mapstructure:"preparationDuration"`
	PlacementLimit      int           `json:"placementLimit" mapstructure:"placementLimit"`
	StartingCredits     int           `json:"startingCredits" mapstructure:"startingCredits"`
	IncomePerRound      int           `json:"incomePerRound" mapstructure:"incomePerRound"`
	StartingBaseHealth  int           `json:"startingBaseHealth" mapstructure:"startingBaseHealth"`
	GridWidth           int           `json:"gridWidth" mapstructure:"gridWidth"`
	GridHeight          int           `json:"gridHeight" mapstructure:"gridHeight"`
	ZoneDepth           int           `json:"zoneDepth" mapstructure:"zoneDepth"`
	FigureJitter        float64       `json:"figureJitter" mapstructure:"figureJitter"`
	MinFlightTime       time.Duration `json:"minFlightTime" mapstructure:"minFlightTime"`
	CatalogPath         string        `json:"catalogPath" mapstructure:"catalogPath"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logFormat", "text")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("server.listenAddr", ":8080")
	viper.SetDefault("transport.encoding", "json")
	viper.SetDefault("catalog.path", "")

	viper.SetDefault("engine.tickRate", 20)
	viper.SetDefault("engine.preparationDuration", "30s")
	viper.SetDefault("engine.placementLimit", 4)
	viper.SetDefault("engine.startingCredits", 100)
	viper.SetDefault("engine.incomePerRound", 50)
	viper.SetDefault("engine.startingBaseHealth", 100)
	viper.SetDefault("engine.gridWidth", 24)
	viper.SetDefault("engine.gridHeight", 32)
	viper.SetDefault("engine.zoneDepth", 12)
	viper.SetDefault("engine.figureJitter", 0.15)
	viper.SetDefault("engine.minFlightTime", "100ms")

	viper.SetDefault("api.serverUrl", "")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "squadfront")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "squadfront")
	viper.SetDefault("influx.bucket", "engine_performance")
	viper.SetDefault("influx.retentionDays", 90)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./matches")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./squadfront.db")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "squadfront")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "60s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.interval", "10s")
	viper.SetDefault("monitor.statusFile", "")
	viper.SetDefault("monitor.server", "")

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// Watch calls onChange whenever the loaded config file is written.
func Watch(onChange func(path string)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if e.Has(fsnotify.Write) || e.Has(fsnotify.Create) {
			onChange(e.Name)
		}
	})
	viper.WatchConfig()
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
	}
}

func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:       viper.GetBool("influx.enabled"),
		Host:          viper.GetString("influx.host"),
		Port:          viper.GetString("influx.port"),
		Protocol:      viper.GetString("influx.protocol"),
		Token:         viper.GetString("influx.token"),
		Org:           viper.GetString("influx.org"),
		Bucket:        viper.GetString("influx.bucket"),
		RetentionDays: viper.GetInt("influx.retentionDays"),
	}
}

func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
	}
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr: viper.GetString("server.listenAddr"),
		Encoding:   viper.GetString("transport.encoding"),
	}
}

func GetEngineConfig() EngineConfig {
	return EngineConfig{
		TickRate:            viper.GetInt("engine.tickRate"),
		PreparationDuration: viper.GetDuration("engine.preparationDuration"),
		PlacementLimit:      viper.GetInt("engine.placementLimit"),
		StartingCredits:     viper.GetInt("engine.startingCredits"),
		IncomePerRound:      viper.GetInt("engine.incomePerRound"),
		StartingBaseHealth:  viper.GetInt("engine.startingBaseHealth"),
		GridWidth:           viper.GetInt("engine.gridWidth"),
		GridHeight:          viper.GetInt("engine.gridHeight"),
		ZoneDepth:           viper.GetInt("engine.zoneDepth"),
		FigureJitter:        viper.GetFloat64("engine.figureJitter"),
		MinFlightTime:       viper.GetDuration("engine.minFlightTime"),
		CatalogPath:         viper.GetString("catalog.path"),
	}
}

// GetMonitorInterval returns how often engine stats are sampled.
func GetMonitorInterval() time.Duration {
	return viper.GetDuration("monitor.interval")
}
