// Package debug provides component-tagged logging for gnm.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// enabled controls whether debug and trace output is emitted
	enabled atomic.Bool

	logFile     *os.File
	logFileMu   sync.Mutex
	logFilePath string

	logger atomic.Pointer[zap.SugaredLogger]
)

func init() {
	if os.Getenv("GNM_DEBUG") != "" {
		Enable()
	}
	logger.Store(newLogger(zapcore.Lock(os.Stderr)))
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "component",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

// newLogger writes every level to ws. Filtering by the debug switch happens
// in Log and Trace so toggling does not rebuild the core.
func newLogger(ws zapcore.WriteSyncer) *zap.SugaredLogger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		ws,
		zapcore.DebugLevel,
	)
	return zap.New(core).Sugar()
}

// Enable turns on debug logging.
func Enable() {
	enabled.Store(true)
}

// Disable turns off debug logging.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether debug logging is enabled.
func IsEnabled() bool {
	return enabled.Load()
}

// SetOutput redirects all log output to ws. Mostly useful in tests.
func SetOutput(ws zapcore.WriteSyncer) {
	logger.Store(newLogger(ws))
}

// SetLogFile sets an optional file to write logs to in addition to stderr.
// If name is empty, logs go to stderr only. The file lives in the user's
// cache directory under gnm/logs.
func SetLogFile(name string) error {
	logFileMu.Lock()
	defer logFileMu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	if name == "" {
		logFilePath = ""
		logger.Store(newLogger(zapcore.Lock(os.Stderr)))
		return nil
	}

	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}

	logDir := filepath.Join(cacheDir, "gnm", "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilePath = filepath.Join(logDir, name)
	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logFile = f

	logger.Store(newLogger(zapcore.NewMultiWriteSyncer(zapcore.Lock(os.Stderr), zapcore.AddSync(f))))
	return nil
}

// GetLogFilePath returns the current log file path, or empty if not set.
func GetLogFilePath() string {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	return logFilePath
}

// Close flushes the logger and closes the log file if open.
func Close() {
	_ = logger.Load().Sync()

	logFileMu.Lock()
	defer logFileMu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Log logs a debug message if debug mode is enabled.
func Log(component, format string, args ...interface{}) {
	if !enabled.Load() {
		return
	}
	logger.Load().Named(component).Debugf(format, args...)
}

// Trace logs a very verbose message (only when debug is enabled).
func Trace(component, format string, args ...interface{}) {
	if !enabled.Load() {
		return
	}
	logger.Load().Named(component).With("trace", true).Debugf(format, args...)
}

// Error logs an error message regardless of debug mode.
func Error(component, format string, args ...interface{}) {
	logger.Load().Named(component).Errorf(format, args...)
}

// Warn logs a warning message regardless of debug mode.
func Warn(component, format string, args ...interface{}) {
	logger.Load().Named(component).Warnf(format, args...)
}

// Info logs an info message regardless of debug mode.
func Info(component, format string, args ...interface{}) {
	logger.Load().Named(component).Infof(format, args...)
}
