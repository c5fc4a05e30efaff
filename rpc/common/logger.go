package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
)

// Names of all loggers used by the relay packages
const (
	LoggerServer    = "relay/server"
	LoggerClient    = "relay/client"
	LoggerTransport = "relay/transport"
	LoggerCLI       = "relay/cli"
)

var loggerNames = []string{LoggerServer, LoggerClient, LoggerTransport, LoggerCLI}

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// logOutput is shared by all relay loggers. It writes to stderr so that the
// replies a forwarding process prints stay alone on stdout.
var logOutput = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)

var levelTags = map[logger.LogLevel]string{
	logger.CRITICAL: "CRIT",
	logger.ERROR:    "ERROR",
	logger.WARNING:  "WARN",
	logger.INFO:     "INFO",
	logger.DEBUG:    "DEBUG",
}

// relayLogger tags every line with the pid, since the instance and the
// processes forwarding to it usually share one terminal. The level is read
// by connection goroutines while the CLI may still change it.
type relayLogger struct {
	name  string
	level atomic.Int32
}

func (l *relayLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *relayLogger) Debugf(format string, args ...interface{}) {
	l.logf(logger.DEBUG, format, args...)
}

func (l *relayLogger) Infof(format string, args ...interface{}) {
	l.logf(logger.INFO, format, args...)
}

func (l *relayLogger) Warningf(format string, args ...interface{}) {
	l.logf(logger.WARNING, format, args...)
}

func (l *relayLogger) Errorf(format string, args ...interface{}) {
	l.logf(logger.ERROR, format, args...)
}

// Panicf always logs and panics, independent of the level
func (l *relayLogger) Panicf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.write(logger.CRITICAL, message)
	panic(message)
}

func (l *relayLogger) logf(level logger.LogLevel, format string, args ...interface{}) {
	if logger.LogLevel(l.level.Load()) < level {
		return
	}
	l.write(level, fmt.Sprintf(format, args...))
}

func (l *relayLogger) write(level logger.LogLevel, message string) {
	logOutput.Printf("%-5s | %-15s | pid %-6d | %s", levelTags[level], l.name, os.Getpid(), message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger is the logger.Factory used for every relay logger
func CreateLogger(pkgName string) logger.ILogger {
	l := &relayLogger{name: pkgName}
	l.SetLevel(logger.WARNING)
	return l
}

// SetLogOutput redirects the output of all relay loggers
func SetLogOutput(w io.Writer) {
	logOutput.SetOutput(w)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn", "":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.WARNING, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

var installFactory sync.Once

// InitLoggers sets the level of all relay loggers. The first call also
// installs the relay format; dragonboat only accepts one factory per
// process, so later calls only change the level.
//
// Loggers that logged before the first call keep dragonboat's default format.
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	installFactory.Do(func() {
		logger.SetLoggerFactory(CreateLogger)
	})

	for _, name := range loggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
