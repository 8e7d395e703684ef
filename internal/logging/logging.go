// internal/logging/logging.go
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// PluginName tags every log line emitted on behalf of a plugin instance.
const PluginName = "vite-plugin-page-html"

// New returns a text logger writing to stderr. debug lowers the level to Debug.
func New(debug bool) *logrus.Logger {
	return NewWithWriter(os.Stderr, debug)
}

func NewWithWriter(w io.Writer, debug bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		PadLevelText:     true,
	})
	log.SetLevel(logrus.InfoLevel)
	if debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// Plugin scopes log to the plugin.
func Plugin(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		log = Discard()
	}
	return log.WithField("plugin", PluginName)
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
