// Package logging provides the CLI logger and secret redaction helpers.
//
// The rotation engine and the credential model never log (presentation
// is the caller's job); this logger is for the command layer and the
// vault/acquisition collaborators. Values that must never reach a log
// line are wrapped in Secret, which renders as [REDACTED] under every
// fmt verb.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Logger writes leveled, optionally colored messages. Debug output is
// suppressed unless enabled.
type Logger struct {
	out     io.Writer
	debug   bool
	noColor bool
}

// New creates a logger writing to stderr.
func New(debug, noColor bool) *Logger {
	return NewWithWriter(os.Stderr, debug, noColor)
}

// NewWithWriter creates a logger with an explicit destination. Tests
// pass a buffer here instead of capturing stderr.
func NewWithWriter(out io.Writer, debug, noColor bool) *Logger {
	return &Logger{
		out:     out,
		debug:   debug,
		noColor: noColor,
	}
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit("\033[32m", "✓", format, args)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit("\033[33m", "⚠", format, args)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit("\033[31m", "✗", format, args)
}

// Debug logs a debug message if debug mode is enabled.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.emit("\033[36m", "[DEBUG]", format, args)
}

func (l *Logger) emit(color, marker, format string, args []interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.noColor {
		fmt.Fprintf(l.out, "%s %s\n", marker, msg)
		return
	}
	fmt.Fprintf(l.out, "%s%s\033[0m %s\n", color, marker, msg)
}

// Secret wraps a value that must be redacted in log output.
type Secret string

// String implements fmt.Stringer, always returning the redaction marker.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Redact replaces occurrences of the given sensitive values in s.
// Trivially short values are left alone to avoid mangling unrelated
// text.
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if len(secret) > 3 {
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}
