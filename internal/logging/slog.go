package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// replaced in tests
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// Options configures SlogManager.Setup.
type Options struct {
	Level  string // debug, info, warn or error; anything else means info
	Format string // text or json, default text
	// Provider adds an OTel handler through the otelslog bridge when set.
	Provider *sdklog.LoggerProvider
}

// SlogManager owns the process logger. The level can be changed after Setup
// and applies to every logger derived from it.
type SlogManager struct {
	logger      *slog.Logger
	level       slog.LevelVar
	logProvider *sdklog.LoggerProvider
	context     atomic.Pointer[ContextProvider]
}

func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

func parseLevel(level string) slog.Level {
	var lvl slog.Level
	switch name := strings.ToLower(strings.TrimSpace(level)); name {
	case "debug", "info", "warn", "error":
		_ = lvl.UnmarshalText([]byte(name))
		return lvl
	default:
		return slog.LevelInfo
	}
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
		}
	}
	return a
}

// Setup builds the logger. Records go to w, or to stdout when w is nil.
func (m *SlogManager) Setup(w io.Writer, opts Options) {
	m.level.Set(parseLevel(opts.Level))
	m.logProvider = opts.Provider

	if w == nil {
		w = osStdout
	}
	handlerOpts := &slog.HandlerOptions{Level: &m.level, ReplaceAttr: utcTime}

	var out slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		out = slog.NewJSONHandler(w, handlerOpts)
	} else {
		out = slog.NewTextHandler(w, handlerOpts)
	}

	var bridge slog.Handler
	if opts.Provider != nil {
		bridge = otelslog.NewHandler("squadfront", otelslog.WithLoggerProvider(opts.Provider))
	}

	m.logger = slog.New(NewContextHandler(NewMultiHandler(out, bridge), m.contextAttrs))
	m.logger.Info("Logging initialized", "level", m.level.Level().String(), "format", formatName(opts.Format))
}

func formatName(f string) string {
	if strings.EqualFold(f, "json") {
		return "json"
	}
	return "text"
}

// SetLevel changes the minimum level of the file or stdout handler.
func (m *SlogManager) SetLevel(level string) {
	lvl := parseLevel(level)
	if lvl == m.level.Level() {
		return
	}
	m.level.Set(lvl)
	m.Logger().Info("Log level changed", "level", lvl.String())
}

// Level returns the current minimum level.
func (m *SlogManager) Level() slog.Level {
	return m.level.Level()
}

// Logger returns slog.Default until Setup has been called.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush exports pending OTel records, if any.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider == nil {
		return nil
	}
	return m.logProvider.ForceFlush(ctx)
}

// SetContextProvider installs the attributes added to every record.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	m.context.Store(&p)
}

func (m *SlogManager) contextAttrs() []slog.Attr {
	p := m.context.Load()
	if p == nil || *p == nil {
		return nil
	}
	return (*p)()
}
