// Package logging provides simple, level-gated logging for the me56ps2
// modem emulator.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Logger wraps stdlib log with level support and an optional subsystem
// prefix (e.g. "tcp_sock: ", "ep0: ", "epN: ").
type Logger struct {
	logger    *log.Logger
	level     LogLevel
	verbosity int
	prefix    string
	mu        *sync.Mutex
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// LogLevel represents the available log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config holds logging configuration.
type Config struct {
	Level     LogLevel
	Verbosity int
	Output    io.Writer
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// NewLogger creates a new logger.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	return &Logger{
		logger:    log.New(output, "", log.LstdFlags),
		level:     config.Level,
		verbosity: config.Verbosity,
		mu:        &sync.Mutex{},
	}
}

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// Named returns a copy of the logger with prefix appended, sharing the
// underlying writer, level and verbosity. Subsystems call this once at
// construction: logging.Default().Named("tcp_sock: ").
func (l *Logger) Named(prefix string) *Logger {
	return &Logger{
		logger:    l.logger,
		level:     l.level,
		verbosity: l.verbosity,
		prefix:    l.prefix + prefix,
		mu:        l.mu,
	}
}

// Verbosity returns the logger's configured debug verbosity (0..3+), the
// target of the CLI's repeatable -v flag.
func (l *Logger) Verbosity() int {
	return l.verbosity
}

// formatArgs converts key-value pairs to a string.
func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var result string
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			if result != "" {
				result += " "
			}
			result += fmt.Sprintf("%v=%v", args[i], args[i+1])
		}
	}
	if result != "" {
		return " " + result
	}
	return ""
}

func (l *Logger) log(level LogLevel, tag, msg string, args ...any) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Printf("%s%s%s%s", l.prefix, tag, msg, formatArgs(args))
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(LevelDebug, "[DEBUG] ", msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(LevelInfo, "", msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(LevelWarn, "[WARN] ", msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(LevelError, "[ERROR] ", msg, args...)
}

// Printf-style logging, used throughout the raw-gadget and bridge
// subsystems which log free-form sentences rather than key=value pairs.
func (l *Logger) Printf(format string, args ...any) {
	l.log(LevelInfo, "", fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...any) {
	l.log(LevelDebug, "[DEBUG] ", fmt.Sprintf(format, args...))
}

// DumpHexASCII logs data as hex+ASCII columns, 16 bytes per line, gated on
// the caller checking Verbosity() >= 3 first (spec.md §4.2).
func (l *Logger) DumpHexASCII(label string, data []byte) {
	const width = 16
	l.Printf("%s (%d bytes):", label, len(data))
	for off := 0; off < len(data); off += width {
		end := off + width
		if end > len(data) {
			end = len(data)
		}
		row := data[off:end]

		var hexCols strings.Builder
		var ascii strings.Builder
		for i := 0; i < width; i++ {
			if i < len(row) {
				fmt.Fprintf(&hexCols, "%02x ", row[i])
				if row[i] >= 0x20 && row[i] < 0x7f {
					ascii.WriteByte(row[i])
				} else {
					ascii.WriteByte('.')
				}
			} else {
				hexCols.WriteString("   ")
			}
		}
		l.Printf("  %04x: %s|%s|", off, hexCols.String(), ascii.String())
	}
}
