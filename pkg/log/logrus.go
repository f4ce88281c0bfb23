package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

var _ Logger = (*logrusLogger)(nil)

// logFileName is the file created inside the configured log directory.
const logFileName = "dashboard.log"

// logrusLogger is a logrus entry whose field helpers return Logger.
// The leveled methods come straight from the embedded entry.
type logrusLogger struct {
	*logrus.Entry
}

func parseLevel(name string) logrus.Level {
	level, err := logrus.ParseLevel(name)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func newLogger(levelName string, timestampFormat string, out io.Writer) *logrusLogger {
	l := logrus.New()
	l.SetLevel(parseLevel(levelName))
	l.SetFormatter(&SimpleFormatter{TimestampFormat: timestampFormat})
	l.SetOutput(out)
	return &logrusLogger{Entry: logrus.NewEntry(l)}
}

// NewLogrusLogger logs to stdout and, when logDir is set, to logDir/dashboard.log as well.
// Unknown level names fall back to info.
func NewLogrusLogger(logLevel string, logDir string) (Logger, error) {
	var out io.Writer = os.Stdout

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory '%s': %w", logDir, err)
		}
		path := filepath.Join(logDir, logFileName)
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file '%s': %w", path, err)
		}
		out = io.MultiWriter(os.Stdout, file)
	}

	return newLogger(logLevel, defaultTimestampFormat, out), nil
}

// NewWriterLogger builds a logger that writes formatted entries to w.
func NewWriterLogger(logLevel string, w io.Writer) Logger {
	return newLogger(logLevel, defaultTimestampFormat, w)
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return newLogger("panic", defaultTimestampFormat, io.Discard)
}

func (l *logrusLogger) WithField(key string, value interface{}) Logger {
	return &logrusLogger{Entry: l.Entry.WithField(key, value)}
}

func (l *logrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &logrusLogger{Entry: l.Entry.WithFields(logrus.Fields(fields))}
}
