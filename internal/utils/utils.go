package utils

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

var Log = log.New()

// SetLogLevel parses level and applies it to Log.
func SetLogLevel(level string) error {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(log.DebugLevel)
	case "info":
		Log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(log.WarnLevel)
	case "error":
		Log.SetLevel(log.ErrorLevel)
	case "fatal":
		Log.SetLevel(log.FatalLevel)
	default:
		return fmt.Errorf("bad log level %q (available: debug, info, warn, error, fatal)", level)
	}
	return nil
}

// EngineLogger adapts a logrus entry to the Logger interface the engine
// packages accept.
type EngineLogger struct {
	*log.Entry
}

// NewEngineLogger tags every message with the given component.
func NewEngineLogger(component string) EngineLogger {
	return EngineLogger{Log.WithField("component", component)}
}

// With returns a logger carrying one more field.
func (l EngineLogger) With(key string, value interface{}) EngineLogger {
	return EngineLogger{l.Entry.WithField(key, value)}
}
