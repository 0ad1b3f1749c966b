// Package logging configures the structured logger shared by every
// component (spec.md §9's ambient stack, §9.1). Grounded on
// bobmcallan-vire-portal's adoption of github.com/phuslu/log, simplified
// to a single console logger — this codebase has no need for
// vire-portal's multi-writer/arbor abstraction, only the library choice.
package logging

import (
	"os"

	"github.com/phuslu/log"
)

// New builds the process-wide logger. level is one of "debug", "info",
// "warn", "error"; unrecognized values fall back to info.
func New(level string) log.Logger {
	return log.Logger{
		Level:      parseLevel(level),
		TimeFormat: "2006-01-02T15:04:05Z07:00",
		Writer: &log.ConsoleWriter{
			Writer: os.Stderr,
		},
	}
}

func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Component returns a child logger tagged with a "component" field, the
// equivalent of the teacher's per-tier logging prefix generalized to this
// service's per-subsystem logging. Any fields already attached to base
// (via a prior Component/User call) are preserved.
func Component(base log.Logger, name string) log.Logger {
	base.Context = log.NewContext([]byte(base.Context)).Str("component", name).Value()
	return base
}

// User returns a child logger additionally tagged with "user_id" and
// "query", the fields every per-user loop log line carries. Preserves any
// fields already attached to base.
func User(base log.Logger, userID, query string) log.Logger {
	base.Context = log.NewContext([]byte(base.Context)).Str("user_id", userID).Str("query", query).Value()
	return base
}
