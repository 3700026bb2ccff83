// Package monitoring holds the process-wide diagnostic logger.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Infof logs an informational line.
func Infof(format string, v ...interface{}) {
	Logf("[INFO] "+format, v...)
}

// Warnf logs a recoverable problem, such as a skipped record.
func Warnf(format string, v ...interface{}) {
	Logf("[WARNING] "+format, v...)
}

// Errorf logs a condition that ended a run early.
func Errorf(format string, v ...interface{}) {
	Logf("[ERROR] "+format, v...)
}
