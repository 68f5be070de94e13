package logging

import (
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Configure builds the service logger from LOG_LEVEL and
// JSON_LOGGING_ENABLED. A non-empty level overrides LOG_LEVEL.
func Configure(level string) *logrus.Logger {
	logger := logrus.New()

	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	switch strings.ToUpper(level) {
	case "DEBUG":
		logger.SetLevel(logrus.DebugLevel)
	case "WARN":
		logger.SetLevel(logrus.WarnLevel)
	case "ERROR":
		logger.SetLevel(logrus.ErrorLevel)
	case "INFO", "":
		logger.SetLevel(logrus.InfoLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
		logger.Warnf("Unknown log level %q, using info.", level)
	}

	enableJSON := false
	if raw := os.Getenv("JSON_LOGGING_ENABLED"); raw != "" {
		var err error
		enableJSON, err = strconv.ParseBool(raw)
		if err != nil {
			logger.Warnf("Json log env-var not readable. Use default logging. %v", err)
		}
	}
	if enableJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}
	return logger
}
