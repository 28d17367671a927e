// Package trace provides the opcode trace buffer flushed to stderr on
// exit when chip8run is run with --trace. It is a pure consumer of
// core state: the chip8 package feeds it lines, and it never feeds
// anything back.
//
// massung's CHIP-8 debugger backs a similar buffer with a scrollable,
// live on-screen viewer (Window/Home/End/ScrollUp/ScrollDown over a
// buf/pos pair); chip8run has no such viewer, only a flush-on-exit
// consumer, so that scrolling API isn't carried over here.
package trace

import "strings"

// Logger accumulates lines of trace output for the caller to flush.
type Logger struct {
	buf []string
}

// NewLogger creates an empty Logger.
func NewLogger() *Logger {
	return &Logger{
		buf: make([]string, 0, 256),
	}
}

// Log appends a new line, joining the given fields with a space.
func (l *Logger) Log(s ...string) {
	l.buf = append(l.buf, strings.Join(s, " "))
}

// Lines returns every line logged so far, in order.
func (l *Logger) Lines() []string {
	return append([]string(nil), l.buf...)
}
