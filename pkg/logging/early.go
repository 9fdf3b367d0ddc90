package logging

import (
	"fmt"
	"os"
)

// EarlyLog covers the window before the structured logger exists
// (config load, logger construction). It only writes to stderr; the
// caller decides whether the error is fatal.
type EarlyLog struct{}

func NewEarlyLog() *EarlyLog {
	return &EarlyLog{}
}

func (l *EarlyLog) Error(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "ERROR: "+msg+"\n", args...)
}
