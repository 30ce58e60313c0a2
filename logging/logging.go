// Package logging configures the process-wide logrus logger.
package logging

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the shared logger instance used across the application.
var Logger = logrus.New()

// Configure sets level and format on the shared logger.
func Configure(level, format string) *logrus.Logger {
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		Logger.Warnf("Invalid log level '%s', using 'info'", level)
		parsed = logrus.InfoLevel
	}
	Logger.SetLevel(parsed)

	if strings.EqualFold(format, "json") {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return Logger
}
