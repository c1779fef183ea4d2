package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unkn0wn-root/hotmirror"
)

func TestLoggerFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	boom := errors.New("boom")
	l.Error("write-through failed", hotmirror.Fields{"key": "{s}:value", "op": "add", "err": boom})
	l.Debug("reconciled", nil)

	require.Len(t, hook.AllEntries(), 2)
	e := hook.AllEntries()[0]
	assert.Equal(t, logrus.ErrorLevel, e.Level)
	assert.Equal(t, "write-through failed", e.Message)
	assert.Equal(t, "hotmirror", e.Data["component"])
	assert.Equal(t, "add", e.Data["op"])
	assert.Equal(t, boom, e.Data[logrus.ErrorKey])

	last := hook.LastEntry()
	assert.Equal(t, logrus.DebugLevel, last.Level)
	assert.Len(t, last.Data, 1)
}
