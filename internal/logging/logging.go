// Package logging builds the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const filePerm = 0o664

// Options selects the output format and destination.
type Options struct {
	Env   string    // "dev" switches to the human-readable console writer
	Level string    // zerolog level name; unknown names fall back to info
	Path  string    // optional file to append to instead of Out
	Out   io.Writer // defaults to os.Stdout
}

// New returns a timestamped logger and a close function for the log file,
// if one was opened.
func New(opts Options) (zerolog.Logger, func() error, error) {
	var w io.Writer = os.Stdout
	if opts.Out != nil {
		w = opts.Out
	}
	closeFn := func() error { return nil }
	if opts.Path != "" {
		f, err := os.OpenFile(opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
		if err != nil {
			return zerolog.Nop(), closeFn, err
		}
		w = zerolog.SyncWriter(f)
		closeFn = f.Close
	} else if strings.EqualFold(opts.Env, "dev") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), closeFn, nil
}
