// Package logging wires the logiface facade to zerolog, via izerolog, for the
// runner and for tests that want to inspect log output.
//
// Critical and above map to zerolog's fatal and panic levels, so components
// log no higher than error.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	izerolog "github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the logger type accepted by every component in this module.
type Logger = logiface.Logger[logiface.Event]

// New builds a Logger writing JSON lines to w, at the given level.
// If console is true, output is formatted for humans instead.
func New(w io.Writer, level logiface.Level, console bool) *Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return izerolog.L.New(
		izerolog.L.WithZerolog(zerolog.New(w).With().Timestamp().Logger()),
		logiface.WithLevel[*izerolog.Event](level),
	).Logger()
}

// ParseLevel maps the usual level names (plus syslog aliases) to a
// logiface.Level. The empty string is informational.
func ParseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ``, `info`, `informational`:
		return logiface.LevelInformational, nil
	case `trace`:
		return logiface.LevelTrace, nil
	case `debug`:
		return logiface.LevelDebug, nil
	case `notice`:
		return logiface.LevelNotice, nil
	case `warn`, `warning`:
		return logiface.LevelWarning, nil
	case `error`, `err`:
		return logiface.LevelError, nil
	case `crit`, `critical`:
		return logiface.LevelCritical, nil
	case `off`, `disabled`, `none`:
		return logiface.LevelDisabled, nil
	default:
		return logiface.LevelDisabled, fmt.Errorf(`logging: unknown level %q`, s)
	}
}
