package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// Debug level for detailed troubleshooting
	Debug LogLevel = iota
	// Info level for general operational entries
	Info
	// Error level for errors that need attention
	Error
)

var levelNames = map[LogLevel]string{
	Debug: "DEBUG",
	Info:  "INFO",
	Error: "ERROR",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LogLevel(%d)", int(l))
}

// DirMode defines platform-specific directory permissions
var DirMode os.FileMode

func init() {
	if runtime.GOOS == "windows" {
		DirMode = 0666
	} else {
		DirMode = 0755
	}
}

// Logger writes leveled messages to the console and an optional rotated file
type Logger struct {
	debugLogger *log.Logger
	infoLogger  *log.Logger
	errorLogger *log.Logger
	level       LogLevel
	mu          sync.Mutex
	file        *lumberjack.Logger
}

// Config holds logger configuration
type Config struct {
	// Level sets the minimum level to log
	Level LogLevel
	// File is the path to the log file. If empty, logs go to Output only
	File string
	// MaxSizeMB is the size in megabytes at which the file is rotated
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept
	MaxBackups int
	// RetentionDays is how long rotated files are kept
	RetentionDays int
	// Output is the console sink, os.Stderr when nil
	Output io.Writer
}

// NewLogger creates a new logger instance
func NewLogger(config Config) (*Logger, error) {
	console := config.Output
	if console == nil {
		console = os.Stderr
	}
	writers := []io.Writer{console}

	var rotator *lumberjack.Logger
	if config.File != "" {
		config.File = filepath.Clean(config.File)
		if err := os.MkdirAll(filepath.Dir(config.File), DirMode); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotator = &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    config.MaxSizeMB,     // megabytes
			MaxAge:     config.RetentionDays, // days
			MaxBackups: config.MaxBackups,
			Compress:   true,
		}
		writers = append(writers, rotator)
	}

	out := io.MultiWriter(writers...)
	flags := log.Ldate | log.Ltime | log.Lmicroseconds

	return &Logger{
		debugLogger: log.New(out, "DEBUG: ", flags),
		infoLogger:  log.New(out, "INFO: ", flags),
		errorLogger: log.New(out, "ERROR: ", flags),
		level:       config.Level,
		file:        rotator,
	}, nil
}

// Discard returns a logger that drops every message
func Discard() *Logger {
	l, _ := NewLogger(Config{Level: Error + 1, Output: io.Discard})
	return l
}

// Close flushes and closes the log file if one is open
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Level returns the minimum level this logger writes
func (l *Logger) Level() LogLevel {
	return l.level
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.output(Debug, l.debugLogger, format, v...)
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.output(Info, l.infoLogger, format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.output(Error, l.errorLogger, format, v...)
}

func (l *Logger) output(level LogLevel, dst *log.Logger, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= level {
		dst.Printf(format, v...)
	}
}

// ParseLogLevel converts a string level to LogLevel
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return Debug, nil
	case "info":
		return Info, nil
	case "error":
		return Error, nil
	default:
		return Info, fmt.Errorf("unknown log level: %s", level)
	}
}
