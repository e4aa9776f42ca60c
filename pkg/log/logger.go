package log

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Logger = zerolog.Logger

// New builds the root logger for the given environment. Local runs get a
// human-readable console writer and debug level; everything else emits JSON.
func New(env string) Logger {
	level := zerolog.InfoLevel
	if env == "local" {
		level = zerolog.DebugLevel
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return log.Level(level)
}

// Component returns a child logger tagged with the owning component name.
func Component(logger Logger, name string) Logger {
	return logger.With().Str("component", name).Logger()
}
