// Package debounce collapses bursts of identical task submissions. A task id
// becomes poppable once timeout has passed since its FIRST submission;
// resubmitting a queued id does not push it back.
//
// Scores are tenths of a second since 2025-01-01 UTC, so queues written by
// other clients using the same convention interoperate.
package debounce

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/hotmirror"
	"github.com/unkn0wn-root/hotmirror/codec"
	"github.com/unkn0wn-root/hotmirror/internal/keys"
)

var (
	ErrEmptyName = errors.New("debounce: name is required")
	ErrNilClient = errors.New("debounce: nil client")
)

// Epoch is the zero of the score scale.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

const (
	tick           = 100 * time.Millisecond
	defaultLockTTL = 5 * time.Second
)

type Options struct {
	Name    string
	Client  redis.UniversalClient
	Timeout time.Duration // quiet period; rounded down to 0.1s
	LockTTL time.Duration // <= 0 => 5s
	Logger  hotmirror.Logger
}

type Queue struct {
	rdb     redis.UniversalClient
	locker  *redislock.Client
	key     string
	lockKey string
	timeout int64 // in ticks
	lockTTL time.Duration
	log     hotmirror.Logger
	now     func() time.Time
}

func New(opts Options) (*Queue, error) {
	if opts.Name == "" {
		return nil, ErrEmptyName
	}
	if opts.Client == nil {
		return nil, ErrNilClient
	}
	q := &Queue{
		rdb:     opts.Client,
		locker:  redislock.New(opts.Client),
		key:     keys.Tagged(opts.Name, "tasks"),
		lockKey: keys.Tagged(opts.Name, "lock"),
		timeout: int64(opts.Timeout / tick),
		lockTTL: opts.LockTTL,
		log:     opts.Logger,
		now:     time.Now,
	}
	if q.lockTTL <= 0 {
		q.lockTTL = defaultLockTTL
	}
	if q.log == nil {
		q.log = hotmirror.NopLogger{}
	}
	return q, nil
}

// Key returns the sorted set holding the queue.
func (q *Queue) Key() string { return q.key }

func (q *Queue) score(extra time.Duration) int64 {
	return int64(q.now().Add(extra).Sub(Epoch) / tick)
}

// Add submits id. extraDelay postpones this id beyond the queue timeout;
// it only matters on the first submission.
func (q *Queue) Add(ctx context.Context, id string, extraDelay time.Duration) error {
	return q.rdb.ZAddNX(ctx, q.key, redis.Z{Score: float64(q.score(extraDelay)), Member: id}).Err()
}

// Pop removes and returns up to count ids that have been quiet for the
// timeout, oldest first. count <= 0 means all of them.
func (q *Queue) Pop(ctx context.Context, count int) ([]string, error) {
	cutoff := q.score(0) - q.timeout

	lock, err := q.locker.Obtain(ctx, q.lockKey, q.lockTTL, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(25 * time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("debounce: pop lock: %w", err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			q.log.Warn("debounce: release pop lock", hotmirror.Fields{"key": q.lockKey, "err": err})
		}
	}()

	by := &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatInt(cutoff, 10)}
	if count > 0 {
		by.Count = int64(count)
	}
	ids, err := q.rdb.ZRangeByScore(ctx, q.key, by).Result()
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	if err := q.rdb.ZRem(ctx, q.key, members...).Err(); err != nil {
		return nil, err
	}
	q.log.Debug("debounce: popped", hotmirror.Fields{"key": q.key, "n": len(ids)})
	return ids, nil
}

// Wait polls Pop every poll until it returns something or ctx is done.
func (q *Queue) Wait(ctx context.Context, count int, poll time.Duration) ([]string, error) {
	if poll <= 0 {
		poll = tick
	}
	t := time.NewTicker(poll)
	defer t.Stop()
	for {
		ids, err := q.Pop(ctx, count)
		if err != nil || len(ids) > 0 {
			return ids, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// Len returns the number of queued ids, due or not.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, q.key).Result()
}

// Typed queues structured tasks through a codec. The codec must be
// deterministic, since identical tasks are merged by their encoding.
type Typed[T any] struct {
	Q     *Queue
	Codec codec.Codec[T]
}

// NewJSON wraps q with the JSON codec.
func NewJSON[T any](q *Queue) Typed[T] { return Typed[T]{Q: q, Codec: codec.JSON[T]{}} }

func (t Typed[T]) Add(ctx context.Context, task T, extraDelay time.Duration) error {
	id, err := t.Codec.Encode(task)
	if err != nil {
		return err
	}
	return t.Q.Add(ctx, id, extraDelay)
}

// Pop decodes popped tasks. Undecodable ids are already removed from the
// queue; they are logged and dropped.
func (t Typed[T]) Pop(ctx context.Context, count int) ([]T, error) {
	ids, err := t.Q.Pop(ctx, count)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		v, err := t.Codec.Decode(id)
		if err != nil {
			t.Q.log.Warn("debounce: dropping undecodable task", hotmirror.Fields{"key": t.Q.key, "err": err})
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
