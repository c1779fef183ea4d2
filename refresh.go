package hotmirror

import (
	"context"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/unkn0wn-root/hotmirror/internal/keys"
	"github.com/unkn0wn-root/hotmirror/store"
)

// neverSynced is the local version of a mirror that has not reconciled yet.
const neverSynced int64 = -1

// snapshot is the shape-specific half of a reconciliation: stage queues the
// full-value read on the batch, commit swaps the fetched value in and returns
// its size.
type snapshot interface {
	stage(p store.Pipeliner)
	commit() int
}

// refresher owns the staleness policy of one mirror. It is not safe for
// concurrent use; neither are the mirrors embedding it.
type refresher struct {
	name       string
	valueKey   string
	versionKey string
	store      store.Store
	interval   time.Duration
	log        Logger
	hooks      Hooks
	now        func() time.Time

	version  int64
	expireAt time.Time
}

func newRefresher(c common) refresher {
	return refresher{
		name:       c.name,
		valueKey:   keys.Value(c.name),
		versionKey: keys.Version(c.name),
		store:      c.store,
		interval:   c.interval,
		log:        c.log,
		hooks:      c.hooks,
		now:        time.Now,
		version:    neverSynced,
	}
}

// start performs the optional eager reconciliation. The first expiry is then
// offset by a random fraction of the interval so instances started together
// do not reconcile in lockstep. Without eager init the mirror is already
// expired and reconciles on first read.
func (r *refresher) start(ctx context.Context, s snapshot, eager bool) error {
	now := r.now()
	if !eager {
		r.expireAt = now
		return nil
	}
	r.expireAt = now.Add(time.Duration(rand.Float64() * float64(r.interval)))
	return r.reconcile(ctx, s)
}

// due reports whether the staleness budget is spent. When it is, the next
// expiry is scheduled immediately so reads racing a slow check don't pile up.
func (r *refresher) due() bool {
	now := r.now()
	if now.Before(r.expireAt) {
		return false
	}
	r.expireAt = now.Add(r.interval)
	return true
}

// ensureFresh runs the read-path policy: nothing until the budget is spent,
// then a version-only read, then a full reconcile only if the version moved.
func (r *refresher) ensureFresh(ctx context.Context, s snapshot) error {
	if !r.due() {
		return nil
	}
	raw, ok, err := r.store.Get(ctx, r.versionKey)
	if err != nil {
		r.failed(err)
		return err
	}
	remote := r.parseVersion(raw, ok)
	if remote == r.version {
		r.hooks.VersionUnchanged(r.valueKey, remote)
		return nil
	}
	r.log.Debug("version moved; reconciling", Fields{"key": r.valueKey, "local": r.version, "remote": remote})
	return r.reconcile(ctx, s)
}

// reconcile reads version and full value in one batch and replaces both.
// It never writes to the store.
func (r *refresher) reconcile(ctx context.Context, s snapshot) error {
	var ver *store.StringResult
	err := r.store.Pipelined(ctx, func(p store.Pipeliner) error {
		ver = p.Get(r.versionKey)
		s.stage(p)
		return nil
	})
	if err != nil {
		r.failed(err)
		return err
	}
	raw, ok := ver.Val()
	r.version = r.parseVersion(raw, ok)
	n := s.commit()
	r.hooks.Reconciled(r.valueKey, r.version, n)
	r.log.Debug("reconciled", Fields{"key": r.valueKey, "version": r.version, "size": n})
	return nil
}

// failed records a failed round trip. A mirror that never synchronized stays
// expired so its empty value is not served on the next read.
func (r *refresher) failed(err error) {
	if r.version == neverSynced {
		r.expireAt = r.now()
	}
	r.hooks.ReconcileError(r.valueKey, err)
	r.log.Warn("reconcile failed", Fields{"key": r.valueKey, "err": err})
}

// parseVersion treats a missing or unparsable counter as 0.
func (r *refresher) parseVersion(raw string, ok bool) int64 {
	if !ok {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		r.hooks.VersionParseError(r.versionKey, raw)
		r.log.Warn("unparsable version counter", Fields{"key": r.versionKey, "raw": raw})
		return 0
	}
	return v
}

// writeFailed reports a failed write-through.
func (r *refresher) writeFailed(op string, err error) {
	r.hooks.WriteError(r.valueKey, op, err)
	r.log.Error("write-through failed", Fields{"key": r.valueKey, "op": op, "err": err})
}
