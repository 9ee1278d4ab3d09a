// Package monitoring holds the diagnostic logger shared by the pipeline
// packages.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced with SetLogger.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces Logf. Passing nil mutes logging.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}
