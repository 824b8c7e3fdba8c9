package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Output is a human readable console
// stream on stderr unless jsonOutput is set. Unknown levels fall back to info.
func NewLogger(level string, jsonOutput bool) zerolog.Logger {
	return newLogger(os.Stderr, level, jsonOutput)
}

func newLogger(out io.Writer, level string, jsonOutput bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	w := out
	if !jsonOutput {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
