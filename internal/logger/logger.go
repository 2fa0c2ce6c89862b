package logger

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel is the severity of a log line
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARNING",
	ERROR: "ERROR",
}

// ErrInvalidLevel is returned for level names outside the allowed set
var ErrInvalidLevel = errors.New("invalid log level")

// Logger is the logging capability handed to services
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	SetLevel(level LogLevel)
	GetLevel() LogLevel
}

type loggerImpl struct {
	mu     sync.Mutex
	level  LogLevel
	logger *log.Logger
}

var (
	defaultLogger Logger
	defaultMu     sync.Mutex
)

// InitLogger builds the process logger from config and installs it as the default
func InitLogger(config *Config) (Logger, error) {
	var writers []io.Writer

	if config.EnableConsole {
		writers = append(writers, os.Stdout)
	}

	if config.EnableFile {
		logDir := config.LogDir
		if logDir == "" {
			logDir = "logs"
		}

		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}

		var logFile string
		if config.LogFile != "" {
			logFile = filepath.Join(logDir, config.LogFile)
		} else {
			logFile = filepath.Join(logDir, fmt.Sprintf("kernelgen-%s.log", time.Now().Format("2006-01-02")))
		}

		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, file)
	}

	l := New(io.MultiWriter(writers...), config.Level)

	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
	return l, nil
}

// New returns a logger writing to w. Tests pass a bytes.Buffer here.
func New(w io.Writer, level LogLevel) Logger {
	return &loggerImpl{
		level:  level,
		logger: log.New(w, "", 0),
	}
}

// GetLogger returns the logger installed by InitLogger. Before that it is a stderr logger at INFO.
func GetLogger() Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(os.Stderr, INFO)
	}
	return defaultLogger
}

func (l *loggerImpl) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *loggerImpl) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *loggerImpl) log(level LogLevel, format string, args ...interface{}) {
	if level < l.GetLevel() {
		return
	}
	message := fmt.Sprintf(format, args...)
	l.logger.Println(Format(level, message))
}

func (l *loggerImpl) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

func (l *loggerImpl) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

func (l *loggerImpl) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

func (l *loggerImpl) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// Format renders one line as "[LEVEL] message", the tag padded to at least four characters
func Format(level LogLevel, message string) string {
	return fmt.Sprintf("[%-4s] %s", level.String(), message)
}

// ParseLevel parses a level name. Unknown names are a configuration error.
func ParseLevel(levelStr string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("%w: %q", ErrInvalidLevel, levelStr)
	}
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}
