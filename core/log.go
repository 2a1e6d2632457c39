package core

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// NewLogger builds the engine logger from configuration.
// Unknown levels fall back to info.
func NewLogger(cfg LoggingConfiguration) *log.Logger {
	logger := log.New()
	logger.SetOutput(os.Stderr)

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// LoggerOrDefault returns l, or the standard logger when l is nil
func LoggerOrDefault(l log.FieldLogger) log.FieldLogger {
	if l == nil {
		return log.StandardLogger()
	}
	return l
}
