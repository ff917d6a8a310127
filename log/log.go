// Package log holds the logging setup and the log field names used across kongress-cli.
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	// FldConference is the name of the log field for storing a conference ID
	FldConference = "conference"
	// FldCalendar is the name of the log field for storing a favorites calendar ID
	FldCalendar = "calendar"
	// FldUID is the name of the log field for storing an event UID
	FldUID = "uid"
	// FldPath is the name of the log field for storing path name information
	FldPath = "path"
	// FldSource is the name of the log field for storing the name of a catalog source
	FldSource = "source"
	// FldCount is the name of the log field for storing a number of records
	FldCount = "count"
	// FldSaved is the name of the log field for storing the result of a calendar save
	FldSaved = "saved"
	// FldVersion is the version number of the application
	FldVersion = "ver"
)

// Setup configures the standard logrus logger to write text lines to stderr.
// Unknown levels fall back to info.
func Setup(level string) *logrus.Logger {
	return SetupWriter(os.Stderr, level)
}

// SetupWriter is Setup with an explicit output.
func SetupWriter(w io.Writer, level string) *logrus.Logger {
	logger := logrus.StandardLogger()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
