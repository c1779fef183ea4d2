// Package uniqueid assigns stable small integer ids to arbitrary external keys
// (card numbers, e-mails, ...) shared by every process using the same class.
//
// Keys:
//
//	{<class>}:auto       - last id handed out
//	{<class>}:id:<key>   - id assigned to key
package uniqueid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/unkn0wn-root/hotmirror"
	"github.com/unkn0wn-root/hotmirror/internal/keys"
	"github.com/unkn0wn-root/hotmirror/provider"
	"github.com/unkn0wn-root/hotmirror/store"
)

var ErrEmptyClass = errors.New("uniqueid: class is required")

type Options struct {
	Class string
	Store store.Store

	// Memo caches assigned ids in process. Optional; ids are only ever
	// changed by Set, which updates the local memo but not other processes'.
	Memo    provider.Provider
	MemoTTL time.Duration // 0 = provider default

	Logger hotmirror.Logger
}

type Allocator struct {
	class   string
	counter string
	st      store.Store
	memo    provider.Provider
	memoTTL time.Duration
	log     hotmirror.Logger
}

func New(opts Options) (*Allocator, error) {
	if opts.Class == "" {
		return nil, ErrEmptyClass
	}
	if opts.Store == nil {
		return nil, hotmirror.ErrNilStore
	}
	a := &Allocator{
		class:   opts.Class,
		counter: keys.Tagged(opts.Class, "auto"),
		st:      opts.Store,
		memo:    opts.Memo,
		memoTTL: opts.MemoTTL,
		log:     opts.Logger,
	}
	if a.log == nil {
		a.log = hotmirror.NopLogger{}
	}
	return a, nil
}

func (a *Allocator) idKey(key string) string { return keys.Tagged(a.class, "id:"+key) }

// GetOrCreate returns the id of key, allocating the next one if key has none.
// Concurrent first calls for the same key all return the winner's id; the
// losers' counter values are burned.
func (a *Allocator) GetOrCreate(ctx context.Context, key string) (int64, error) {
	if id, ok := a.memoGet(ctx, key); ok {
		return id, nil
	}
	rk := a.idKey(key)
	if id, ok, err := a.read(ctx, rk); err != nil || ok {
		if ok {
			a.memoSet(ctx, key, id)
		}
		return id, err
	}

	next, err := a.st.Incr(ctx, a.counter)
	if err != nil {
		return 0, err
	}
	won, err := a.st.Set(ctx, rk, strconv.FormatInt(next, 10), true)
	if err != nil {
		return 0, err
	}
	if won {
		a.memoSet(ctx, key, next)
		return next, nil
	}
	a.log.Debug("uniqueid: lost allocation race", hotmirror.Fields{"class": a.class, "burned": next})
	id, ok, err := a.read(ctx, rk)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("uniqueid: %s vanished after a concurrent allocation", rk)
	}
	a.memoSet(ctx, key, id)
	return id, nil
}

// Set overrides the id of key.
func (a *Allocator) Set(ctx context.Context, key string, id int64) error {
	if _, err := a.st.Set(ctx, a.idKey(key), strconv.FormatInt(id, 10), false); err != nil {
		return err
	}
	a.memoSet(ctx, key, id)
	return nil
}

// IncrTo moves the counter so the next allocation returns id+1. Moving it
// backwards makes later allocations reuse ids.
func (a *Allocator) IncrTo(ctx context.Context, id int64) error {
	_, err := a.st.Set(ctx, a.counter, strconv.FormatInt(id, 10), false)
	return err
}

func (a *Allocator) read(ctx context.Context, rk string) (int64, bool, error) {
	raw, ok, err := a.st.Get(ctx, rk)
	if err != nil || !ok {
		return 0, false, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("uniqueid: parse %s: %w", rk, err)
	}
	return id, true, nil
}

func (a *Allocator) memoGet(ctx context.Context, key string) (int64, bool) {
	if a.memo == nil {
		return 0, false
	}
	b, ok, err := a.memo.Get(ctx, a.idKey(key))
	if err != nil || !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		_ = a.memo.Del(ctx, a.idKey(key))
		return 0, false
	}
	return id, true
}

func (a *Allocator) memoSet(ctx context.Context, key string, id int64) {
	if a.memo == nil {
		return
	}
	if _, err := a.memo.Set(ctx, a.idKey(key), strconv.AppendInt(nil, id, 10), 1, a.memoTTL); err != nil {
		a.log.Warn("uniqueid: memo set failed", hotmirror.Fields{"class": a.class, "err": err})
	}
}
