// Package logging configures the process-wide logrus logger and hands out
// component-scoped entries.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger. Unknown levels fall back to
// info; format is "json" or anything else for text.
func Setup(level, format string) {
	Configure(logrus.StandardLogger(), level, format)
}

// Configure applies level and format to the given logger.
func Configure(logger *logrus.Logger, level, format string) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// Component returns an entry tagged with the component name. A nil parent
// uses the standard logger.
func Component(parent *logrus.Entry, name string) *logrus.Entry {
	if parent == nil {
		return logrus.WithField("component", name)
	}
	return parent.WithField("component", name)
}

// Discard returns an entry that writes nowhere, for tests.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
