package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/foretell-app/foretell/utils/debug"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LogContextKey       = "logger"
	LogTraceIDKey       = "trace_id"
	LogModuleKey        = "module"
	LogComponentKey     = "component"
	LogTimestampFormat  = time.RFC3339Nano
	LogCallerSkipFrames = 2

	FormatConsole = "console"
	FormatJSON    = "json"
)

// KV is a set of structured fields attached to a single log entry
type KV map[string]interface{}

// Logger wraps zerolog.Logger with module information
type Logger struct {
	logger     zerolog.Logger
	moduleInfo string
	traceID    string
}

// Config logging configuration
type Config struct {
	Level            string `json:"level"`
	Format           string `json:"format"` // "console" or "json"
	IncludeTimestamp bool   `json:"includeTimestamp"`
	IncludeCaller    bool   `json:"includeCaller"`
	CallerSkipFrames int    `json:"callerSkipFrames"`
	OutputToFile     bool   `json:"outputToFile"`
	FilePath         string `json:"filePath"`
	FileFormat       string `json:"fileFormat"`
	FileAppend       bool   `json:"fileAppend"`
	FileMaxSizeMb    int    `json:"fileMaxSizeMb"`
	FileMaxBackups   int    `json:"fileMaxBackups"`
}

var (
	fileWriters   []*lumberjack.Logger
	fileWritersMx sync.Mutex
)

// NewDefaultConfig returns a default logging configuration
func NewDefaultConfig() *Config {
	return &Config{
		Level:            "info",
		Format:           FormatConsole,
		IncludeTimestamp: true,
		IncludeCaller:    false,
		CallerSkipFrames: LogCallerSkipFrames,
		OutputToFile:     false,
		FileFormat:       FormatJSON,
		FileAppend:       true,
		FileMaxSizeMb:    10,
		FileMaxBackups:   3,
	}
}

// Validate checks the level and output formats
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Level)
	}
	for _, format := range []string{c.Format, c.FileFormat} {
		if format != FormatConsole && format != FormatJSON {
			return fmt.Errorf("invalid log format: %s", format)
		}
	}
	if c.OutputToFile && c.FilePath == "" {
		return fmt.Errorf("file output enabled without a file path")
	}
	return nil
}

// EnableFileOutput sets file output on cfg
func EnableFileOutput(cfg *Config, path string) *Config {
	cfg.OutputToFile = true
	cfg.FilePath = path
	return cfg
}

// SetFileFormat sets the format used for file output
func SetFileFormat(cfg *Config, format string) *Config {
	cfg.FileFormat = format
	return cfg
}

// DisableFileAppend truncates the log file when logging is configured
func DisableFileAppend(cfg *Config) *Config {
	cfg.FileAppend = false
	return cfg
}

func formatWriter(format string, w io.Writer, noColor bool) io.Writer {
	if format == FormatConsole {
		return zerolog.ConsoleWriter{Out: w, TimeFormat: LogTimestampFormat, NoColor: noColor}
	}
	return w
}

// Configure configures the global logger
func Configure(cfg *Config) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %s", cfg.Level)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = LogTimestampFormat

	// previous file writers are released before a new set is opened
	CloseLogFiles()

	writers := []io.Writer{formatWriter(cfg.Format, os.Stderr, false)}
	if cfg.OutputToFile {
		if cfg.FilePath == "" {
			return fmt.Errorf("file output enabled without a file path")
		}
		if !cfg.FileAppend {
			if err := os.Remove(cfg.FilePath); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
		fw := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.FileMaxSizeMb,
			MaxBackups: cfg.FileMaxBackups,
		}
		fileWritersMx.Lock()
		fileWriters = append(fileWriters, fw)
		fileWritersMx.Unlock()
		writers = append(writers, formatWriter(cfg.FileFormat, fw, true))
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With()
	if cfg.IncludeTimestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.IncludeCaller {
		ctx = ctx.Caller()
		zerolog.CallerSkipFrameCount = cfg.CallerSkipFrames
	}
	log.Logger = ctx.Logger()
	return nil
}

// CloseLogFiles closes any open log files
func CloseLogFiles() {
	fileWritersMx.Lock()
	defer fileWritersMx.Unlock()
	for _, fw := range fileWriters {
		_ = fw.Close()
	}
	fileWriters = nil
}

// New creates a new logger with module information
func New(module string) *Logger {
	return &Logger{
		logger:     log.With().Str(LogModuleKey, module).Logger(),
		moduleInfo: module,
	}
}

// NewWithComponent creates a new logger with module and component information
func NewWithComponent(module, component string) *Logger {
	return &Logger{
		logger: log.With().
			Str(LogModuleKey, module).
			Str(LogComponentKey, component).
			Logger(),
		moduleInfo: module + "." + component,
	}
}

// WithTraceID creates a new logger with the specified trace ID
func (l *Logger) WithTraceID(traceID string) *Logger {
	return &Logger{
		logger:     l.logger.With().Str(LogTraceIDKey, traceID).Logger(),
		moduleInfo: l.moduleInfo,
		traceID:    traceID,
	}
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		logger:     l.logger.With().Interface(key, value).Logger(),
		moduleInfo: l.moduleInfo,
		traceID:    l.traceID,
	}
}

// WithContext adds the logger to the context
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, LogContextKey, l)
}

func addFields(event *zerolog.Event, fields []KV) *zerolog.Event {
	if len(fields) > 0 {
		for k, v := range fields[0] {
			event = event.Interface(k, v)
		}
	}
	return event
}

// Debug logs a debug message with the given fields
func (l *Logger) Debug(msg string, fields ...KV) {
	addFields(l.logger.Debug(), fields).Msg(msg)
}

// Info logs an info message with the given fields
func (l *Logger) Info(msg string, fields ...KV) {
	addFields(l.logger.Info(), fields).Msg(msg)
}

// Warn logs a warning message with the given fields
func (l *Logger) Warn(msg string, fields ...KV) {
	addFields(l.logger.Warn(), fields).Msg(msg)
}

// Error logs an error message with the given fields
// a stack trace is attached when err is not nil
func (l *Logger) Error(err error, msg string, fields ...KV) {
	event := l.logger.Error()
	if err != nil {
		event = event.Err(err)
		if stack := debug.GetStackTrace(2); len(stack) > 0 {
			event = event.Strs("stack", stack)
		}
	}
	addFields(event, fields).Msg(msg)
}

// GetTraceID returns the trace ID associated with this logger
func (l *Logger) GetTraceID() string {
	return l.traceID
}

// GetZerolog returns the underlying zerolog.Logger
func (l *Logger) GetZerolog() zerolog.Logger {
	return l.logger
}
