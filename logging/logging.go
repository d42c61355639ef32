// Package logging configures the logrus logger shared by the CLI, server and stores.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogConfig selects the log level, format and destination.
type LogConfig struct {
	// Level is any logrus level name; empty means info.
	Level string `json:"level"`
	// Format is "json" or "text".
	Format string `json:"format"`
	// Path is an optional file to log to instead of stderr.
	Path string `json:"path"`
}

// Logger wraps a logrus logger with the file it may own.
type Logger struct {
	*logrus.Logger

	file *os.File
}

// New instantiates a logger based on the config.
func New(c LogConfig) (*Logger, error) {
	l := logrus.New()
	switch c.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}

	if c.Level != "" {
		level, err := logrus.ParseLevel(c.Level)
		if err != nil {
			return nil, err
		}
		l.SetLevel(level)
	}

	logger := &Logger{Logger: l}
	if c.Path != "" {
		file, err := os.OpenFile(c.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		l.SetOutput(file)
		logger.file = file
	}
	return logger, nil
}

// Discard returns a logger that drops everything, for tests.
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{Logger: l}
}

// Destroy should be called when exiting to close the log file.
func (l *Logger) Destroy() {
	if l.file != nil {
		l.file.Close()
	}
}
