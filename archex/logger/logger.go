package logger

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LogLevelSilent disables all logging
	LogLevelSilent LogLevel = iota
	// LogLevelError shows only errors
	LogLevelError
	// LogLevelWarn shows warnings and errors
	LogLevelWarn
	// LogLevelInfo shows info, warnings, and errors (verbose mode)
	LogLevelInfo
	// LogLevelDebug shows all logs including debug information
	LogLevelDebug
)

var levelNames = map[LogLevel]string{
	LogLevelSilent: "SILENT",
	LogLevelError:  "ERROR",
	LogLevelWarn:   "WARN",
	LogLevelInfo:   "INFO",
	LogLevelDebug:  "DEBUG",
}

// String returns the level name
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// LevelForVerbosity maps the -v flag (0, 1, 2) to a log level.
func LevelForVerbosity(v int) LogLevel {
	switch {
	case v <= 0:
		return LogLevelError
	case v == 1:
		return LogLevelInfo
	default:
		return LogLevelDebug
	}
}

// Logger provides leveled logging to a console writer and an optional file.
// The file receives every message up to info level regardless of the console
// level, so the log keeps a full record of a quiet run.
type Logger struct {
	mu     sync.Mutex
	level  LogLevel
	output io.Writer
	file   io.Writer
}

// New creates a Logger writing to output at the given level
func New(output io.Writer, level LogLevel) *Logger {
	return &Logger{
		level:  level,
		output: output,
	}
}

var defaultLogger = New(os.Stderr, LogLevelError)

// Default returns the package-level logger
func Default() *Logger {
	return defaultLogger
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	defaultLogger.SetLevel(level)
}

// GetLogLevel returns the current log level
func GetLogLevel() LogLevel {
	return defaultLogger.Level()
}

// SetLevel sets the console level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Level returns the console level
func (l *Logger) Level() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetFile attaches (or with nil, detaches) the file sink
func (l *Logger) SetFile(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.file = w
}

// Enabled reports whether a message at level would reach any sink
func (l *Logger) Enabled(level LogLevel) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled(level)
}

func (l *Logger) enabled(level LogLevel) bool {
	if level <= l.level {
		return true
	}
	return l.file != nil && level <= l.fileLevel()
}

func (l *Logger) fileLevel() LogLevel {
	if l.level > LogLevelInfo {
		return l.level
	}
	return LogLevelInfo
}

// log writes a log message if the level is enabled
func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level == LogLevelSilent || !l.enabled(level) {
		return
	}

	timestamp := time.Now().Format("15:04:05.000")
	levelName := levelNames[level]
	message := fmt.Sprintf(format, args...)

	// Redact sensitive information
	message = redactSensitive(message)

	line := fmt.Sprintf("[%s] %s: %s\n", timestamp, levelName, message)
	if level <= l.level && l.output != nil {
		io.WriteString(l.output, line)
	}
	if l.file != nil && level <= l.fileLevel() {
		io.WriteString(l.file, line)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LogLevelDebug, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LogLevelInfo, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LogLevelWarn, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LogLevelError, format, args...)
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	defaultLogger.log(LogLevelDebug, format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	defaultLogger.log(LogLevelInfo, format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	defaultLogger.log(LogLevelWarn, format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	defaultLogger.log(LogLevelError, format, args...)
}

// fernetKeyPattern matches a 44 character url-safe base64 key, the form
// transform services print after decrypting.
var fernetKeyPattern = regexp.MustCompile(`(?i)(key[:=]\s*)[A-Za-z0-9_\-]{43}=`)

// redactSensitive removes sensitive information from log messages
func redactSensitive(message string) string {
	// Redact Fernet keys
	if strings.Contains(strings.ToLower(message), "key") {
		message = fernetKeyPattern.ReplaceAllString(message, "${1}***")
	}

	// Redact tokens in URLs
	if strings.Contains(message, "token=") {
		parts := strings.Split(message, "token=")
		if len(parts) > 1 {
			for i := 1; i < len(parts); i++ {
				endIdx := strings.IndexAny(parts[i], "& \n")
				if endIdx == -1 {
					endIdx = len(parts[i])
				}
				parts[i] = "***" + parts[i][endIdx:]
			}
			message = strings.Join(parts, "token=")
		}
	}

	// Redact password in credential strings
	if strings.Contains(message, "password") || strings.Contains(message, "PASSWORD") {
		message = strings.ReplaceAll(message, "password=", "password=***")
		message = strings.ReplaceAll(message, "PASSWORD=", "PASSWORD=***")
	}

	return message
}
