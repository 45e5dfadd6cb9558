package mrf49xa

/*------------------------------------------------------------------
 *
 * Purpose:	Logging for the driver and the programs built on it.
 *
 * Description:	One package logger.  The per-byte interrupt path only
 *		logs at debug level, and only on the rare recovery paths.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{ //nolint:exhaustruct
	Prefix:          "mrf49xa",
	ReportTimestamp: true,
	TimeFormat:      time.TimeOnly,
})

// Logger returns the package logger so programs can share it.
func Logger() *log.Logger {
	return logger
}

// SetLogLevel accepts debug, info, warn, error or fatal.
func SetLogLevel(level string) error {
	var l, err = log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}

	logger.SetLevel(l)

	return nil
}

func checkLogLevel(level string) error {
	if _, err := log.ParseLevel(level); err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	return nil
}

// SetLogOutput redirects the package logger.
func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}
