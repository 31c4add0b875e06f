package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

const (
	defaultLogFile    = "logs/congruo.log"
	defaultTimeFormat = "15:04:05"
)

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.RWMutex
)

// GetLogger returns the process-wide logger. Before InitLogger runs it builds
// a console-only instance so early startup paths and tests can still log.
func GetLogger() arbor.ILogger {
	loggerMutex.RLock()
	if globalLogger != nil {
		loggerMutex.RUnlock()
		return globalLogger
	}
	loggerMutex.RUnlock()

	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	// Double-check after acquiring write lock
	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeConsole,
			TimeFormat: defaultTimeFormat,
			TextOutput: true,
		})
	}
	return globalLogger
}

// ResolveLogFile returns the absolute path of the configured log file.
// Relative paths resolve against the executable directory so the service
// writes beside its binary regardless of the working directory it was
// launched from.
func ResolveLogFile(config *Config) string {
	name := config.Logging.File
	if name == "" {
		name = defaultLogFile
	}
	if filepath.IsAbs(name) {
		return name
	}
	execPath, err := os.Executable()
	if err != nil {
		abs, _ := filepath.Abs(name)
		return abs
	}
	return filepath.Join(filepath.Dir(execPath), name)
}

// InitLogger builds the arbor logger from the [logging] config section and
// installs it as the process-wide instance. Unknown output names are skipped
// with a warning rather than failing startup.
func InitLogger(config *Config) arbor.ILogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	timeFormat := config.Logging.TimeFormat
	if timeFormat == "" {
		timeFormat = defaultTimeFormat
	}
	textOutput := !strings.EqualFold(config.Logging.Format, "json")

	logger := arbor.NewLogger()
	for _, output := range config.Logging.Output {
		switch output {
		case "stdout", "console":
			logger = logger.WithConsoleWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeConsole,
				TimeFormat: timeFormat,
				TextOutput: textOutput,
			})
		case "file":
			logFile := ResolveLogFile(config)
			if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
				fmt.Printf("Warning: failed to create log directory: %v\n", err)
				continue
			}
			logger = logger.WithFileWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeFile,
				FileName:   logFile,
				TimeFormat: timeFormat,
				MaxSize:    100 * 1024 * 1024, // 100 MB
				MaxBackups: 3,
				TextOutput: textOutput,
			})
		default:
			fmt.Printf("Warning: unknown log output %q ignored\n", output)
		}
	}

	logger = logger.WithLevelFromString(config.Logging.Level)

	globalLogger = logger
	return logger
}

// GetLogFilePath returns the active log file path, or "" when file output is
// disabled.
func GetLogFilePath(logger arbor.ILogger) string {
	if logger != nil {
		if logFilePath := logger.GetLogFilePath(); logFilePath != "" {
			return logFilePath
		}
	}
	return ""
}

// Stop releases the global logger. Safe to call multiple times; the next
// GetLogger builds a fresh instance. Called at the end of shutdown and from
// test teardown.
func Stop() {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	globalLogger = nil
}
