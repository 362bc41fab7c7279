// Package logging wraps the standard library's log.Logger with a
// handful of leveled convenience methods, matching the plain
// log.Printf style used throughout the server and worker processes
// (no structured logging library is introduced).
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger is a thin wrapper adding leveled prefixes to log.Logger.
type Logger struct {
	*log.Logger
}

// New builds a Logger writing to w with the standard date/time flags.
func New(w io.Writer, prefix string) *Logger {
	return &Logger{Logger: log.New(w, prefix, log.LstdFlags)}
}

// NewFile creates the log file at path. If that name cannot be
// created (for example because the file already exists), it tries
// path.1, path.2, ... and uses the first name it can create.
func NewFile(path string, prefix string) (*Logger, error) {
	f, name, err := openWithFallback(path)
	if err != nil {
		return nil, err
	}
	_ = name
	return New(f, prefix), nil
}

func openWithFallback(path string) (*os.File, string, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		return f, path, nil
	}
	for n := 1; n < 1000; n++ {
		candidate := fmt.Sprintf("%s.%d", path, n)
		f, err := os.OpenFile(candidate, os.O_APPEND|os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, candidate, nil
		}
	}
	return nil, "", fmt.Errorf("logging: could not open a log file derived from %s", path)
}

func (l *Logger) Infof(format string, args ...any) {
	l.Printf("[INFO] "+format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.Printf("[ERROR] "+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.Printf("[DEBUG] "+format, args...)
}
