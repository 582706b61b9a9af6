// Package cli contains small ambient-stack helpers shared by forge's
// command-line entry points: flag parsing, structured logging and "did you
// mean" suggestions. It deliberately does not attempt the full interactive
// console (progress bars, window-size-aware redraw) a terminal-facing build
// tool would eventually want; that's out of scope here (SPEC_FULL §1: the
// CLI driver itself is a thin demonstration harness, not the subject under
// build).
package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("cli")

// A Verbosity is a flag-settable logging level, accepting either a level
// name ("error", "warning", "notice", "info", "debug") or a please-style
// numeric count of "-v" repeats (0 = warning, up to 4 = debug).
type Verbosity logging.Level

// UnmarshalFlag implements the flags.Unmarshaler interface.
func (v *Verbosity) UnmarshalFlag(in string) error {
	if n, err := strconv.Atoi(in); err == nil {
		switch {
		case n <= 0:
			*v = Verbosity(logging.WARNING)
		case n == 1:
			*v = Verbosity(logging.WARNING)
		case n == 2:
			*v = Verbosity(logging.NOTICE)
		case n == 3:
			*v = Verbosity(logging.INFO)
		default:
			*v = Verbosity(logging.DEBUG)
		}
		return nil
	}
	switch strings.ToLower(in) {
	case "v", "notice":
		*v = Verbosity(logging.NOTICE)
	case "vv", "info":
		*v = Verbosity(logging.INFO)
	case "vvv", "debug":
		*v = Verbosity(logging.DEBUG)
	default:
		lvl, err := logging.LogLevel(in)
		if err != nil {
			return fmt.Errorf("invalid verbosity %q: %w", in, err)
		}
		*v = Verbosity(lvl)
	}
	return nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (v *Verbosity) UnmarshalText(text []byte) error {
	return v.UnmarshalFlag(string(text))
}

// stderrLevel remembers the level InitLogging was last called with, so
// InitFileLogging can rebuild an equivalent stderr backend alongside the
// file one (logging.SetBackend replaces the whole backend set, it doesn't
// add to it).
var stderrLevel = logging.WARNING

// InitLogging initialises the default stderr logging backend at the given
// verbosity. Every package that wants to log declares its own
// `logging.MustGetLogger("<package>")`, matching the teacher's per-package
// logger idiom; this only configures the shared backend and level filter.
func InitLogging(verbosity Verbosity) {
	stderrLevel = logging.Level(verbosity)
	logging.SetBackend(stderrBackendAt(stderrLevel))
}

// InitFileLogging additionally tees every message at or above fileLevel to
// logFile, regardless of the stderr verbosity set via InitLogging.
func InitFileLogging(logFile string, fileLevel Verbosity) error {
	f, err := os.Create(logFile)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	fileBackend := logging.NewBackendFormatter(logging.NewLogBackend(f, "", 0), logFormatter())
	fileLeveled := logging.AddModuleLevel(fileBackend)
	fileLeveled.SetLevel(logging.Level(fileLevel), "")

	logging.SetBackend(stderrBackendAt(stderrLevel), fileLeveled)
	return nil
}

func stderrBackendAt(level logging.Level) logging.LeveledBackend {
	backend := logging.NewBackendFormatter(logging.NewLogBackend(os.Stderr, "", 0), logFormatter())
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(level, "")
	return leveled
}

func logFormatter() logging.Formatter {
	return logging.MustStringFormatter("%{time:15:04:05.000} %{level:7s}: %{message}")
}
