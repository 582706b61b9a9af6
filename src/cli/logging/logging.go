// Package logging contains the singleton logger used by cmd/forge and any
// other top-level driver code that has no more specific package identity of
// its own to log under.
package logging

import (
	"gopkg.in/op/go-logging.v1"
)

// Log is the singleton logger instance for driver-level code.
var Log = logging.MustGetLogger("forge")

// Level is a re-export of the library type.
type Level = logging.Level

// Re-exports of various log levels.
const (
	CRITICAL = logging.CRITICAL
	ERROR    = logging.ERROR
	WARNING  = logging.WARNING
	NOTICE   = logging.NOTICE
	INFO     = logging.INFO
	DEBUG    = logging.DEBUG
)
