package heartwolf

/*------------------------------------------------------------------
 *
 * File:	log.go
 *
 * Purpose:	Save heart and breath rates to a log file.
 *
 * Description:	Rather than saving the waveforms, only the slowly
 *		changing results are written, in CSV format, for easy
 *		import into a spreadsheet or other analysis.
 *
 *		Two strategies:
 *
 *		Daily names: path is a directory and the file name
 *		comes from a strftime pattern, "%Y-%m-%d.csv" by
 *		default.  A new file is started when the name changes.
 *
 *		Single file: path is the file.  logrotate or similar
 *		keeps the size under control.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

const DEFAULT_VITALS_PATTERN = "%Y-%m-%d.csv"

const VITALS_CSV_HEADER = "utime,isotime,heart_rate,breath_rate,lead_off"

type VitalsLog struct {
	daily   bool
	path    string             // Directory for daily names, else the file.
	pattern *strftime.Strftime // Daily names only.

	fp        *os.File
	w         *csv.Writer
	openFname string

	now func() time.Time
	log *log.Logger
}

/*------------------------------------------------------------------
 *
 * Function:	OpenVitalsLog
 *
 * Inputs:	daily	- True for automatic daily names in directory path.
 *
 *		path	- Directory or file name.
 *
 *		pattern	- strftime pattern for daily names.  Empty for
 *			  DEFAULT_VITALS_PATTERN.
 *
 * Description:	The daily directory is created if it doesn't exist.
 *		Parent directories must already exist; we don't do
 *		"mkdir -p".
 *
 *------------------------------------------------------------------*/

func OpenVitalsLog(daily bool, path string, pattern string, logger *log.Logger) (*VitalsLog, error) {
	if path == "" {
		return nil, fmt.Errorf("vitals log: no path")
	}
	if logger == nil {
		logger = quietLogger()
	}

	var l = &VitalsLog{
		daily: daily,
		path:  path,
		now:   time.Now,
		log:   logger,
	}

	if !daily {
		logger.Info("Vitals log file", "path", path)
		return l, nil
	}

	if pattern == "" {
		pattern = DEFAULT_VITALS_PATTERN
	}
	var p, err = strftime.New(pattern)
	if err != nil {
		return nil, fmt.Errorf("vitals log name pattern %q: %w", pattern, err)
	}
	l.pattern = p

	var stat, statErr = os.Stat(path)
	switch {
	case statErr == nil && !stat.IsDir():
		return nil, fmt.Errorf("vitals log location %q is not a directory", path)
	case statErr != nil:
		if err := os.Mkdir(path, 0755); err != nil {
			return nil, fmt.Errorf("create vitals log location: %w", err)
		}
		logger.Info("Vitals log location has been created", "path", path)
	}

	return l, nil
}

/*------------------------------------------------------------------
 *
 * Function:	Write
 *
 * Purpose:	Append one line.
 *
 * Description:	Names are generated from UTC, like the utime column,
 *		so a file covers exactly one UTC day.
 *
 *------------------------------------------------------------------*/

func (l *VitalsLog) Write(v Vitals) error {
	var now = l.now().UTC()

	var full = l.path
	if l.daily {
		var fname = l.pattern.FormatString(now)
		if l.fp != nil && fname != l.openFname {
			if err := l.Close(); err != nil {
				l.log.Warn("Closing vitals log", "err", err)
			}
		}
		full = filepath.Join(l.path, fname)
		if l.fp == nil {
			l.openFname = fname
		}
	}

	if l.fp == nil {
		if err := l.open(full); err != nil {
			l.openFname = ""
			return err
		}
	}

	var lead = "0"
	if v.LeadOff {
		lead = "1"
	}

	l.w.Write([]string{
		strconv.FormatInt(now.Unix(), 10),
		now.Format(time.RFC3339),
		strconv.Itoa(v.HeartRate),
		strconv.Itoa(v.BreathRate),
		lead,
	})
	l.w.Flush()

	return l.w.Error()
}

func (l *VitalsLog) open(full string) error {
	// See if file already exists and not empty.
	// Used to write a header only if this will be the first line.
	var stat, statErr = os.Stat(full)
	var alreadyThere = statErr == nil && stat.Size() > 0

	l.log.Info("Opening vitals log", "path", full)

	var f, err = os.OpenFile(full, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("can't open vitals log %q for write: %w", full, err)
	}

	l.fp = f
	l.w = csv.NewWriter(f)

	if !alreadyThere {
		if _, err := fmt.Fprintln(f, VITALS_CSV_HEADER); err != nil {
			return err
		}
	}
	return nil
}

// Current is the file being written, if any.
func (l *VitalsLog) Current() string {
	if l.fp == nil {
		return ""
	}
	return l.fp.Name()
}

func (l *VitalsLog) Close() error {
	if l.fp == nil {
		return nil
	}

	l.log.Info("Closing vitals log", "path", l.fp.Name())

	var err = l.fp.Close()
	l.fp = nil
	l.w = nil
	l.openFname = ""
	return err
}
