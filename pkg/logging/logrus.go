package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"

	timestampFormat = "2006-01-02 15:04:05"
)

// Logrus builds per-component logrus entries sharing one level, format and output.
type Logrus struct {
	level  string
	format string
	output io.Writer
}

// NewLogrus creates a new logrus factory
func NewLogrus(level, format string, output io.Writer) *Logrus {
	return &Logrus{level: level, format: format, output: output}
}

// Get returns a logrus entry tagged with the component that logs through it
func (l *Logrus) Get(context string) *logrus.Entry {
	log := logrus.New()
	level, err := logrus.ParseLevel(l.level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(l.formatter())
	log.SetOutput(l.output)

	return log.WithFields(logrus.Fields{
		"Context": context,
	})
}

func (l *Logrus) formatter() logrus.Formatter {
	if l.format == FormatJSON {
		return &logrus.JSONFormatter{TimestampFormat: timestampFormat}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: timestampFormat,
	}
}
