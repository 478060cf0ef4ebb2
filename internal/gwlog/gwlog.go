// Package gwlog provides the gateway's leveled logging helpers.
//
// It wraps the standard log package the same way the rest of the gateway
// wraps standard library primitives: no external logging framework, just
// consistent prefixes so operators can grep a plain text log.
package gwlog

import (
	"log"
	"os"
)

// DebugEnabled controls whether Debug() produces output.
// Initialised from the MUDLINK_DEBUG environment variable; no
// command-line flag sets it.
var DebugEnabled = os.Getenv("MUDLINK_DEBUG") != ""

// Debug logs a message only when DebugEnabled is true.
func Debug(format string, args ...any) {
	if DebugEnabled {
		log.Printf("DEBUG: "+format, args...)
	}
}

// Info logs an informational message.
func Info(format string, args ...any) {
	log.Printf("INFO: "+format, args...)
}

// Warn logs a recoverable problem.
func Warn(format string, args ...any) {
	log.Printf("WARN: "+format, args...)
}

// Error logs a problem that terminated a connection or request.
func Error(format string, args ...any) {
	log.Printf("ERROR: "+format, args...)
}
