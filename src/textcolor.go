package heartwolf

// Logging setup shared by the library and the binaries.

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

type LogOptions struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, logfmt, json
	Prefix string `yaml:"prefix"`
}

// NewLogger builds the process logger.  Empty fields mean info level,
// text format, no prefix.
func NewLogger(w io.Writer, o LogOptions) (*log.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	var level = log.InfoLevel
	if o.Level != "" {
		var err error
		level, err = log.ParseLevel(o.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}

	var formatter log.Formatter
	switch o.Format {
	case "", "text":
		formatter = log.TextFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	case "json":
		formatter = log.JSONFormatter
	default:
		return nil, fmt.Errorf("unknown log format %q", o.Format)
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          o.Prefix,
		Formatter:       formatter,
		ReportTimestamp: true,
		TimeFormat:      time.StampMilli,
	}), nil
}

// quietLogger is what components get when the caller doesn't care.
func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}
