// Package rangetrack records how far a backfill has progressed over an integer
// id space shared by many workers. The covered range [min, max] only grows;
// ids skipped over while growing it are kept in a pending set until a worker
// marks them done.
//
// Keys (one hash tag, so the optimistic transactions work on cluster too):
//
//	{<name>}:min, {<name>}:max   - inclusive bounds
//	{<name>}:pending            - ids inside the bounds still to process
//	{<name>}:lock               - held while the bounds are first initialized
package rangetrack

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/hotmirror"
	"github.com/unkn0wn-root/hotmirror/internal/keys"
)

var (
	ErrEmptyName = errors.New("rangetrack: name is required")
	ErrNilClient = errors.New("rangetrack: nil client")
	// ErrAboveMin is returned by LowerTo when start is above the current min.
	ErrAboveMin = errors.New("rangetrack: start is above the current min")
)

const (
	defaultLockTTL = 5 * time.Second
	maxTxRetries   = 8
	saddChunk      = 10_000
)

type Options struct {
	Name    string
	Client  redis.UniversalClient
	LockTTL time.Duration // <= 0 => 5s
	Logger  hotmirror.Logger
}

type Range struct {
	rdb    redis.UniversalClient
	locker *redislock.Client
	ttl    time.Duration
	log    hotmirror.Logger

	minKey, maxKey, pendingKey, lockKey string

	inited bool
}

func New(opts Options) (*Range, error) {
	if opts.Name == "" {
		return nil, ErrEmptyName
	}
	if opts.Client == nil {
		return nil, ErrNilClient
	}
	r := &Range{
		rdb:        opts.Client,
		locker:     redislock.New(opts.Client),
		ttl:        opts.LockTTL,
		log:        opts.Logger,
		minKey:     keys.Tagged(opts.Name, "min"),
		maxKey:     keys.Tagged(opts.Name, "max"),
		pendingKey: keys.Tagged(opts.Name, "pending"),
		lockKey:    keys.Tagged(opts.Name, "lock"),
	}
	if r.ttl <= 0 {
		r.ttl = defaultLockTTL
	}
	if r.log == nil {
		r.log = hotmirror.NopLogger{}
	}
	return r, nil
}

// Min returns the lower bound; 0 before initialization.
func (r *Range) Min(ctx context.Context) (int64, error) { return r.bound(ctx, r.rdb, r.minKey) }

// Max returns the upper bound; 0 before initialization.
func (r *Range) Max(ctx context.Context) (int64, error) { return r.bound(ctx, r.rdb, r.maxKey) }

// UpperTo raises max to stop. Ids strictly between the old max and stop
// become pending. A stop at or below max is a no-op.
func (r *Range) UpperTo(ctx context.Context, stop int64) error {
	if err := r.ensureInit(ctx, stop); err != nil {
		return err
	}
	return r.move(ctx, r.maxKey, func(cur int64) (lo, hi int64, ok bool, err error) {
		if stop <= cur {
			return 0, 0, false, nil
		}
		return cur + 1, stop - 1, true, nil
	}, stop)
}

// LowerTo lowers min to start; ids in [start, min) become pending.
// A start above min fails with ErrAboveMin.
func (r *Range) LowerTo(ctx context.Context, start int64) error {
	if err := r.ensureInit(ctx, start); err != nil {
		return err
	}
	return r.move(ctx, r.minKey, func(cur int64) (lo, hi int64, ok bool, err error) {
		if start > cur {
			return 0, 0, false, fmt.Errorf("%w: %d > %d", ErrAboveMin, start, cur)
		}
		if start == cur {
			return 0, 0, false, nil
		}
		return start, cur - 1, true, nil
	}, start)
}

// Done removes ids from the pending set.
func (r *Range) Done(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return r.rdb.SRem(ctx, r.pendingKey, members...).Err()
}

// Pending returns the outstanding ids in ascending order.
func (r *Range) Pending(ctx context.Context) ([]int64, error) {
	raw, err := r.rdb.SMembers(ctx, r.pendingKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			r.log.Warn("rangetrack: skipping foreign pending member", hotmirror.Fields{"key": r.pendingKey, "raw": s})
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Reset forgets bounds and pending ids.
func (r *Range) Reset(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.minKey, r.maxKey, r.pendingKey).Err(); err != nil {
		return err
	}
	r.inited = false
	return nil
}

// ensureInit sets min = max = value the first time any bound moves. The lock
// keeps two workers from initializing with different values.
func (r *Range) ensureInit(ctx context.Context, value int64) error {
	if r.inited {
		return nil
	}
	n, err := r.rdb.Exists(ctx, r.maxKey).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		r.inited = true
		return nil
	}

	lock, err := r.locker.Obtain(ctx, r.lockKey, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(25 * time.Millisecond),
	})
	if err != nil {
		return fmt.Errorf("rangetrack: init lock: %w", err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.log.Warn("rangetrack: release init lock", hotmirror.Fields{"key": r.lockKey, "err": err})
		}
	}()

	// another worker may have initialized while we waited
	if n, err = r.rdb.Exists(ctx, r.maxKey).Result(); err != nil {
		return err
	}
	if n == 0 {
		_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, r.maxKey, value, 0)
			p.Set(ctx, r.minKey, value, 0)
			return nil
		})
		if err != nil {
			return err
		}
		r.log.Debug("rangetrack: initialized", hotmirror.Fields{"key": r.maxKey, "value": value})
	}
	r.inited = true
	return nil
}

// move updates one bound to next inside an optimistic transaction watching
// that bound, adding [lo, hi] to pending in the same MULTI.
func (r *Range) move(ctx context.Context, key string, plan func(cur int64) (lo, hi int64, ok bool, err error), next int64) error {
	txf := func(tx *redis.Tx) error {
		cur, err := r.bound(ctx, tx, key)
		if err != nil {
			return err
		}
		lo, hi, ok, err := plan(cur)
		if err != nil || !ok {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for start := lo; start <= hi; start += saddChunk {
				end := min(start+saddChunk-1, hi)
				members := make([]any, 0, end-start+1)
				for id := start; id <= end; id++ {
					members = append(members, id)
				}
				p.SAdd(ctx, r.pendingKey, members...)
			}
			p.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}
	for i := 0; i < maxTxRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("rangetrack: %s kept changing under %d attempts", key, maxTxRetries)
}

func (r *Range) bound(ctx context.Context, c redis.Cmdable, key string) (int64, error) {
	v, err := c.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}
