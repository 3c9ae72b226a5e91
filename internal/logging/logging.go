package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}

// ParseLevel converts a string log level to a zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Options controls where log output goes.
type Options struct {
	Level string
	// Console receives colored output. Nil disables console logging.
	Console io.Writer
	// File receives uncolored output. Nil disables file logging.
	File io.Writer
	// GraylogAddress enables GELF over UDP when non-empty.
	GraylogAddress string
}

// Manager owns the configured logger and any writers that need closing.
type Manager struct {
	logger  zerolog.Logger
	graylog *gelf.Writer
}

// Setup builds a zerolog logger writing to every configured sink.
func Setup(opts Options) (*Manager, error) {
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	var writers []io.Writer
	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.Console,
			TimeFormat: time.RFC3339,
		})
	}
	if opts.File != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.File,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}

	m := &Manager{}
	if opts.GraylogAddress != "" {
		w, err := gelf.NewWriter(opts.GraylogAddress)
		if err != nil {
			return nil, fmt.Errorf("creating graylog writer: %w", err)
		}
		m.graylog = w
		writers = append(writers, w)
	}

	var out io.Writer = io.Discard
	if len(writers) > 0 {
		out = zerolog.MultiLevelWriter(writers...)
	}

	m.logger = zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()
	m.logger.Info().Str("loglevel", m.logger.GetLevel().String()).Msg("Logging set up")
	return m, nil
}

// Logger returns the configured logger.
func (m *Manager) Logger() zerolog.Logger {
	return m.logger
}

// Component returns a child logger tagged with the component name.
func (m *Manager) Component(name string) zerolog.Logger {
	return m.logger.With().Str("component", name).Logger()
}

// Close releases the graylog connection, if any.
func (m *Manager) Close() error {
	if m.graylog != nil {
		return m.graylog.Close()
	}
	return nil
}

// OpenSessionFile creates logsDir if needed and opens a fresh session log.
func OpenSessionFile(logsDir, appName string, sessionStart time.Time) (*os.File, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating logs dir: %w", err)
	}
	path := LogFilePath(logsDir, appName, sessionStart)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
