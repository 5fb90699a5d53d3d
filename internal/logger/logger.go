package logger

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"birdwatch/internal/config"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to rotated files and stdout/stderr.
type Logger struct {
	infoLog    *logrus.Logger
	warningLog *logrus.Logger
	errorLog   *logrus.Logger
	logDir     string
	files      map[string]*lumberjack.Logger
}

// Entry is a Logger scoped with structured fields.
type Entry struct {
	logger *Logger
	fields logrus.Fields
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) (*Logger, error) {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{
		logDir: config.LogDirectory,
		files:  make(map[string]*lumberjack.Logger),
	}

	l.infoLog = l.newLevelLogger(os.Stdout, InfoFile)
	l.warningLog = l.newLevelLogger(os.Stdout, WarningFile)
	l.errorLog = l.newLevelLogger(os.Stderr, ErrorFile)
	return l, nil
}

// NewDiscard returns a Logger that writes nowhere. Used by tests and tools.
func NewDiscard() *Logger {
	quiet := func() *logrus.Logger {
		lg := logrus.New()
		lg.SetOutput(io.Discard)
		return lg
	}
	return &Logger{
		infoLog:    quiet(),
		warningLog: quiet(),
		errorLog:   quiet(),
		files:      make(map[string]*lumberjack.Logger),
	}
}

func (l *Logger) newLevelLogger(console io.Writer, fileName string) *logrus.Logger {
	file := &lumberjack.Logger{
		Filename:   filepath.Join(l.logDir, fileName),
		LocalTime:  true,
		MaxSize:    50,
		MaxAge:     14,
		MaxBackups: 3,
	}
	l.files[fileName] = file

	lg := logrus.New()
	lg.SetLevel(logrus.DebugLevel)
	lg.SetOutput(io.MultiWriter(console, file))
	lg.SetReportCaller(true)
	lg.SetFormatter(&formatter.Formatter{
		TimestampFormat: "2006-01-02 15:04:05",
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, s[len(s)-1])
		},
	})
	return lg
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.infoLog.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.warningLog.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.errorLog.Errorf(format, v...)
}

// WithConnection scopes subsequent entries to one client connection.
func (l *Logger) WithConnection(connectionID string) *Entry {
	return &Entry{logger: l, fields: logrus.Fields{"connection_id": connectionID}}
}

func (e *Entry) Info(format string, v ...interface{}) {
	e.logger.infoLog.WithFields(e.fields).Infof(format, v...)
}

func (e *Entry) Warning(format string, v ...interface{}) {
	e.logger.warningLog.WithFields(e.fields).Warnf(format, v...)
}

func (e *Entry) Error(format string, v ...interface{}) {
	e.logger.errorLog.WithFields(e.fields).Errorf(format, v...)
}

// Dir returns the directory holding the level files.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	file, ok := l.files[fileName]
	if !ok {
		return fmt.Errorf("unknown log file: %s", fileName)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", fileName, err)
	}
	if err := os.Truncate(filepath.Join(l.logDir, fileName), 0); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to truncate %s: %w", fileName, err)
	}

	l.Info("Log file %s has been cleared.", fileName)
	return nil
}

// Close flushes and closes the rotated files.
func (l *Logger) Close() error {
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
