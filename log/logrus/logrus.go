// Package logrus adapts a logrus entry to hotmirror.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/hotmirror"
)

var _ hotmirror.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New tags every entry with component=hotmirror.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "hotmirror")}
}

func (l Logger) Debug(msg string, f hotmirror.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f hotmirror.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f hotmirror.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f hotmirror.Fields) { l.with(f).Error(msg) }

// with maps "err" onto logrus' own error field so formatters render it.
func (l Logger) with(f hotmirror.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		if k == "err" {
			out[logrus.ErrorKey] = v
			continue
		}
		out[k] = v
	}
	return l.E.WithFields(out)
}
