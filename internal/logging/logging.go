// Package logging builds the application logger: a standard *log.Logger
// writing to a size-rotated file, to stderr, or to both.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

const logFlags = log.LstdFlags | log.Lmicroseconds

type Options struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Stderr     bool
}

// New returns the logger and a closer releasing the log file. Without a file
// the logger writes to stderr regardless of opts.Stderr.
func New(opts Options) (*log.Logger, io.Closer) {
	return newWithStderr(opts, os.Stderr)
}

func newWithStderr(opts Options, stderr io.Writer) (*log.Logger, io.Closer) {
	if opts.File == "" {
		return log.New(stderr, "", logFlags), nopCloser{}
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	var w io.Writer = rotator
	if opts.Stderr {
		w = io.MultiWriter(rotator, stderr)
	}
	return log.New(w, "", logFlags), rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
