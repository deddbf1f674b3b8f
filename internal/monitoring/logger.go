// Package monitoring holds the process-wide diagnostic loggers shared by the
// ingestion and storage packages.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Debugf receives per-event detail such as detected peaks. It is muted until
// SetDebug(true) is called.
var Debugf func(format string, v ...interface{}) = nop

func nop(string, ...interface{}) {}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = nop
		return
	}
	Logf = f
}

// SetDebug routes Debugf through the current Logf when on is true and mutes
// it otherwise.
func SetDebug(on bool) {
	if !on {
		Debugf = nop
		return
	}
	Debugf = func(format string, v ...interface{}) {
		Logf("[debug] "+format, v...)
	}
}
