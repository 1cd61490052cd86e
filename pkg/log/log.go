// Package log holds logger construction and adapters that route third-party
// library logging through logrus.
package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NewLogger creates a text logger for the given level name.
// An unknown level falls back to info and is reported through the logger itself.
func NewLogger(levelName string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", levelName, err)
		return log
	}
	log.SetLevel(level)
	log.Debugf("Log level set to: %s", level.String())
	return log
}

// BadgerLogrusAdapter implements badger.Logger on top of a logrus entry.
// Badger's info chatter (compactions, value log replay) is demoted to debug.
type BadgerLogrusAdapter struct {
	*logrus.Entry
}

// NewBadgerLogrusAdapter creates a new adapter
func NewBadgerLogrusAdapter(entry *logrus.Entry) *BadgerLogrusAdapter {
	return &BadgerLogrusAdapter{entry}
}

func (l *BadgerLogrusAdapter) Errorf(f string, v ...interface{}) { l.Entry.Errorf(f, v...) }

func (l *BadgerLogrusAdapter) Warningf(f string, v ...interface{}) { l.Entry.Warnf(f, v...) }

func (l *BadgerLogrusAdapter) Infof(f string, v ...interface{}) { l.Entry.Debugf(f, v...) }

func (l *BadgerLogrusAdapter) Debugf(f string, v ...interface{}) { l.Entry.Tracef(f, v...) }
