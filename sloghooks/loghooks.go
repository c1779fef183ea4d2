// Package sloghooks reports mirror events through log/slog.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/hotmirror"
	"github.com/unkn0wn-root/hotmirror/internal/keys"
)

type Options struct {
	// Sampling of the hot-path events; 0/1 = log all.
	ReconciledEvery uint64
	UnchangedEvery  uint64
	// Optional key redactor. Defaults to a SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	reconciledCtr atomic.Uint64
	unchangedCtr  atomic.Uint64
}

var _ hotmirror.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return keys.Redact(k)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Reconciled(valueKey string, version int64, size int) {
	if h.l == nil || !sample(h.opts.ReconciledEvery, &h.reconciledCtr) {
		return
	}
	h.l.Debug("hotmirror.reconciled",
		"key", h.redact(valueKey),
		"version", version,
		"size", size)
}

func (h *Hooks) VersionUnchanged(valueKey string, version int64) {
	if h.l == nil || !sample(h.opts.UnchangedEvery, &h.unchangedCtr) {
		return
	}
	h.l.Debug("hotmirror.version_unchanged",
		"key", h.redact(valueKey),
		"version", version)
}

func (h *Hooks) VersionParseError(versionKey, raw string) {
	if h.l == nil {
		return
	}
	h.l.Warn("hotmirror.version_parse_error",
		"key", h.redact(versionKey),
		"raw_len", len(raw))
}

func (h *Hooks) DecodeError(valueKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("hotmirror.decode_error",
		"key", h.redact(valueKey),
		"err", err)
}

func (h *Hooks) ReconcileError(valueKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("hotmirror.reconcile_error",
		"key", h.redact(valueKey),
		"err", err)
}

func (h *Hooks) WriteError(valueKey, op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("hotmirror.write_error",
		"key", h.redact(valueKey),
		"op", op,
		"err", err)
}
