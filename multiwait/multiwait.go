// Package multiwait consumes tasks from several Redis lists with one blocking
// call, taking a batch from whichever list has work first (BLMPOP, Redis 7+).
package multiwait

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/hotmirror"
	"github.com/unkn0wn-root/hotmirror/codec"
)

var (
	ErrNoLists   = errors.New("multiwait: at least one list is required")
	ErrNilClient = errors.New("multiwait: nil client")
	// ErrNoTasks is returned by Next when the block timeout passes with every
	// list empty.
	ErrNoTasks = errors.New("multiwait: no tasks")
)

const (
	defaultBatchSize = 10
	defaultBlock     = 10 * time.Second
)

type Options[T any] struct {
	Client    redis.UniversalClient
	Lists     []string       // checked in order; on cluster they must share a hash tag
	BatchSize int            // <= 0 => 10
	Block     time.Duration  // <= 0 => 10s
	Codec     codec.Codec[T] // nil => JSON
	Logger    hotmirror.Logger
}

type Consumer[T any] struct {
	rdb   redis.UniversalClient
	lists []string
	batch int64
	block time.Duration
	codec codec.Codec[T]
	log   hotmirror.Logger
}

func New[T any](opts Options[T]) (*Consumer[T], error) {
	if opts.Client == nil {
		return nil, ErrNilClient
	}
	if len(opts.Lists) == 0 {
		return nil, ErrNoLists
	}
	c := &Consumer[T]{
		rdb:   opts.Client,
		lists: append([]string(nil), opts.Lists...),
		batch: int64(opts.BatchSize),
		block: opts.Block,
		codec: opts.Codec,
		log:   opts.Logger,
	}
	if c.batch <= 0 {
		c.batch = defaultBatchSize
	}
	if c.block <= 0 {
		c.block = defaultBlock
	}
	if c.codec == nil {
		c.codec = codec.JSON[T]{}
	}
	if c.log == nil {
		c.log = hotmirror.NopLogger{}
	}
	return c, nil
}

// Push appends task to list.
func (c *Consumer[T]) Push(ctx context.Context, list string, task T) error {
	enc, err := c.codec.Encode(task)
	if err != nil {
		return err
	}
	return c.rdb.RPush(ctx, list, enc).Err()
}

// Next blocks until some list has tasks and returns up to BatchSize of them
// from the head of the first non-empty list, together with its name.
// Elements that fail to decode are logged and dropped.
func (c *Consumer[T]) Next(ctx context.Context) (string, []T, error) {
	list, raw, err := c.rdb.BLMPop(ctx, c.block, "left", c.batch, c.lists...).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil, ErrNoTasks
	}
	if err != nil {
		return "", nil, err
	}
	return list, c.decode(list, raw), nil
}

func (c *Consumer[T]) decode(list string, raw []string) []T {
	out := make([]T, 0, len(raw))
	for _, s := range raw {
		v, err := c.codec.Decode(s)
		if err != nil {
			c.log.Warn("multiwait: dropping undecodable task", hotmirror.Fields{"list": list, "err": err})
			continue
		}
		out = append(out, v)
	}
	return out
}
