package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger builds the process-wide structured logger. LOG_LEVEL selects the
// minimum level (debug/info/warn/error, default info); LOG_CONSOLE=true
// switches to the human-readable console writer. The zerolog global logger is
// pointed at the same sink so code outside the fx graph logs consistently.
func NewLogger() *zerolog.Logger {
	level := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL"))); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}

	var logger zerolog.Logger
	if os.Getenv("LOG_CONSOLE") == "true" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	logger = logger.Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return &logger
}
