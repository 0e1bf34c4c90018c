package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/squadfront/server/internal/catalog"
	"github.com/squadfront/server/internal/config"
	"github.com/squadfront/server/internal/dispatcher"
	"github.com/squadfront/server/internal/geo"
	"github.com/squadfront/server/internal/handlers"
	"github.com/squadfront/server/internal/logging"
	intOtel "github.com/squadfront/server/internal/otel"
	"github.com/squadfront/server/internal/session"
	"github.com/squadfront/server/internal/transport/websocket"
	"github.com/squadfront/server/internal/view"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"

	ServiceName = "squadfront"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", ServiceName, err)
		os.Exit(1)
	}
}

func run() error {
	configDir := pflag.StringP("config", "c", ".", "directory containing "+config.FileName)
	pflag.String("listen", "", "listen address, overrides server.listenAddr")
	pflag.Parse()
	if err := viper.BindPFlag("server.listenAddr", pflag.Lookup("listen")); err != nil {
		return err
	}

	startTime := time.Now()

	slogManager := logging.NewSlogManager()
	slogManager.Setup(nil, logging.Options{Level: "info"})
	log := slogManager.Logger()

	if err := config.Load(*configDir); err != nil {
		log.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		log.Info("Loaded config", "dir", *configDir)
	}

	logFile, logPath, err := logging.OpenLogFile(config.GetString("logsDir"), ServiceName, startTime)
	if err != nil {
		log.Error("Failed to create/open log file!", "error", err)
	}
	var logWriter io.Writer
	if logFile != nil {
		defer logFile.Close()
		logWriter = logFile
	}

	otelProvider, err := setupOTel(logWriter)
	if err != nil {
		log.Error("Failed to initialize OTel provider", "error", err)
	}
	var otelLogProvider *sdklog.LoggerProvider
	if otelProvider != nil {
		otelLogProvider = otelProvider.LoggerProvider()
	}

	slogManager.Setup(logWriter, logging.Options{
		Level:    config.GetString("logLevel"),
		Format:   config.GetString("logFormat"),
		Provider: otelLogProvider,
	})
	log = slogManager.Logger()
	log.Info("Starting up...", "version", Version, "buildDate", BuildDate, "logFile", logPath)

	// only the log level is reloaded; everything else needs a restart
	config.Watch(func(path string) {
		log.Info("Config file changed", "path", path)
		slogManager.SetLevel(config.GetString("logLevel"))
	})

	dbLog := zerolog.New(os.Stderr).With().Timestamp().Str("service", ServiceName).Logger()
	if logFile != nil {
		dbLog = zerolog.New(logFile).With().Timestamp().Str("service", ServiceName).Logger()
	}

	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	log.Info("Catalog loaded", "units", len(cat.Units()), "factions", cat.Factions())

	archive, err := setupArchive(log, dbLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := archive.Close(); err != nil {
			log.Error("Failed to close archive", "error", err)
		}
	}()

	serverCfg := config.GetServerConfig()
	codec, err := view.NewCodec(serverCfg.Encoding)
	if err != nil {
		return err
	}
	hub := websocket.NewHub(codec, log.With("component", "transport"))

	engine, err := session.New(cat, engineConfig(config.GetEngineConfig()), session.Options{
		Publisher: hub,
		Archive:   archive,
		Logger:    log.With("component", "engine"),
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	slogManager.SetContextProvider(func() []slog.Attr {
		return []slog.Attr{slog.Int("activeSessions", engine.ActiveSessions())}
	})

	d, err := dispatcher.New(logging.NewDispatcherLogger(log.With("component", "dispatcher")))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	handlers.NewService(engine, log.With("component", "handlers")).RegisterHandlers(d)
	log.Info("Handlers registered", "commands", d.Commands())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Engine stopped", "error", err)
		}
	}()

	metrics := setupMonitor(ctx, engine, archive, log, dbLog)
	defer metrics.Close()

	srv := &http.Server{
		Addr:              serverCfg.ListenAddr,
		Handler:           hub.Routes(d),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("Listening", "addr", srv.Addr, "encoding", codec.Name())
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			stop()
			<-engineDone
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", "error", err)
	}
	hub.Close()
	d.Close()
	<-engineDone

	if otelProvider != nil {
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("OTel shutdown failed", "error", err)
		}
	}
	log.Info("Shutdown complete", "uptime", time.Since(startTime).Round(time.Second))
	return nil
}

func setupOTel(w io.Writer) (*intOtel.Provider, error) {
	cfg := config.GetOTelConfig()
	if !cfg.Enabled {
		return nil, nil
	}
	p, err := intOtel.New(intOtel.Config{
		Enabled:        cfg.Enabled,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: Version,
		BatchTimeout:   cfg.BatchTimeout,
		MetricInterval: cfg.MetricInterval,
		LogWriter:      w,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
	})
	if err != nil {
		return nil, err
	}
	p.InstallMeterProvider()
	return p, nil
}

func loadCatalog() (*catalog.Catalog, error) {
	path := config.GetEngineConfig().CatalogPath
	if path == "" {
		return catalog.Default(), nil
	}
	c, err := catalog.Load(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	return c, nil
}

func engineConfig(c config.EngineConfig) session.Config {
	return session.Config{
		TickRate:            c.TickRate,
		PreparationDuration: c.PreparationDuration,
		PlacementLimit:      c.PlacementLimit,
		StartingCredits:     c.StartingCredits,
		IncomePerRound:      c.IncomePerRound,
		StartingBaseHealth:  c.StartingBaseHealth,
		Grid:                geo.Grid{Width: c.GridWidth, Height: c.GridHeight, ZoneDepth: c.ZoneDepth},
		FigureJitter:        c.FigureJitter,
		MinFlightTime:       c.MinFlightTime,
	}
}
