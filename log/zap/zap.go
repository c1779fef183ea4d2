// Package zap adapts a *zap.Logger to hotmirror.Logger.
package zap

import (
	"sort"

	"github.com/unkn0wn-root/hotmirror"
	"go.uber.org/zap"
)

var _ hotmirror.Logger = Logger{}

// Logger forwards mirror logs to L. Field order is stable across calls.
type Logger struct{ L *zap.Logger }

// New names the logger "hotmirror". A nil l yields a no-op zap logger.
func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return Logger{L: l.Named("hotmirror")}
}

func (z Logger) Debug(msg string, f hotmirror.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f hotmirror.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f hotmirror.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f hotmirror.Fields) { z.L.Error(msg, fields(f)...) }

func fields(f hotmirror.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]zap.Field, 0, len(f))
	for _, k := range names {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
