// Package logging builds the diagnostic logger. Request failures are
// reported here in full while rows only show a short sentinel.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config contains logging configuration.
type Config struct {
	Level   string
	Format  string
	Output  io.Writer
	NoColor bool
}

// Validate reports an unknown level or format.
func (c Config) Validate() error {
	if c.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil {
			return fmt.Errorf("log level must be one of trace, debug, info, warn, error (got: %s)", c.Level)
		}
	}
	switch strings.ToLower(c.Format) {
	case "", FormatConsole, FormatJSON:
		return nil
	}
	return fmt.Errorf("log format must be one of %s, %s (got: %s)", FormatConsole, FormatJSON, c.Format)
}

// New creates a logger from cfg. Unknown levels fall back to warn.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.WarnLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var w io.Writer = out
	if strings.ToLower(cfg.Format) != FormatJSON {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: cfg.NoColor}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
