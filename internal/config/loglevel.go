package config

import (
	"strings"

	"github.com/labstack/gommon/log"
)

// ParseLogLevel maps a config log level name to a gommon level.
func ParseLogLevel(level string) (log.Lvl, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DEBUG, true
	case "", "info":
		return log.INFO, true
	case "warn", "warning":
		return log.WARN, true
	case "error":
		return log.ERROR, true
	case "off":
		return log.OFF, true
	default:
		return log.INFO, false
	}
}
