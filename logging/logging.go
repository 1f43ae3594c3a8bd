package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync/atomic"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
)

// ParseLevel accepts a level name or its numeric value; unknown input yields INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "0":
		return DEBUG
	case "WARN", "WARNING", "2":
		return WARNING
	case "ERROR", "3":
		return ERROR
	}
	return INFO
}

// LoggerInterface defines the interface for logging methods
type LoggerInterface interface {
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warning(format string, v ...interface{})
	Error(format string, v ...interface{})
	Fatal(format string, v ...interface{})
	Sync() error
	ChangeLogLevel(level LogLevel)
}

// Options configures NewLogger.
type Options struct {
	File       string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
	Level      LogLevel
	// Stdout mirrors every line to os.Stdout. Off when running detached.
	Stdout bool
}

// Logger is a leveled printf logger backed by an hourly rotating file.
type Logger struct {
	logger *log.Logger
	file   io.WriteCloser
	level  atomic.Int32
}

// NewLogger creates a new logger instance with file output and rotation
func NewLogger(opts Options) (*Logger, error) {
	fw, err := newHourlyWriter(opts.File, opts.MaxSize, opts.MaxBackups, opts.MaxAge, opts.Compress)
	if err != nil {
		return nil, err
	}
	var out io.Writer = fw
	if opts.Stdout {
		out = io.MultiWriter(fw, os.Stdout)
	}
	return newLogger(out, fw, opts.Level), nil
}

// NewWriterLogger logs to w only. Used by tests and tools.
func NewWriterLogger(w io.Writer, level LogLevel) *Logger {
	return newLogger(w, nil, level)
}

func newLogger(out io.Writer, file io.WriteCloser, level LogLevel) *Logger {
	l := &Logger{
		logger: log.New(out, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile),
		file:   file,
	}
	l.level.Store(int32(level))
	return l
}

func (l *Logger) enabled(level LogLevel) bool { return LogLevel(l.level.Load()) <= level }

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.enabled(DEBUG) {
		l.logger.Output(2, fmt.Sprintf("[DEBUG] "+format, v...))
	}
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	if l.enabled(INFO) {
		l.logger.Output(2, fmt.Sprintf("[INFO]  "+format, v...))
	}
}

// Warning logs a warning message
func (l *Logger) Warning(format string, v ...interface{}) {
	if l.enabled(WARNING) {
		l.logger.Output(2, fmt.Sprintf("[WARN]  "+format, v...))
	}
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	if l.enabled(ERROR) {
		l.logger.Output(2, fmt.Sprintf("[ERROR] "+format, v...))
	}
}

// Fatal logs an error message and exits
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.logger.Output(2, fmt.Sprintf("[FATAL] "+format, v...))
	_ = l.Close()
	os.Exit(1)
}

// Sync starts a fresh rotation file so buffered data is flushed to disk.
func (l *Logger) Sync() error {
	type rotator interface {
		Rotate() error
	}
	if r, ok := l.file.(rotator); ok {
		return r.Rotate()
	}
	return nil
}

// Close releases the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ChangeLogLevel changes the logging level at runtime
func (l *Logger) ChangeLogLevel(level LogLevel) {
	l.level.Store(int32(level))
}

// FormatFields renders fields as sorted key=value pairs.
func FormatFields(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch v := fields[k].(type) {
		case float64:
			fmt.Fprintf(&b, "%s=%.6g", k, v)
		default:
			fmt.Fprintf(&b, "%s=%v", k, v)
		}
	}
	return b.String()
}
