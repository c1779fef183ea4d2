// Package local is an in-process store.Store.
//
// It is meant for single-process deployments and tests: every mirror sharing
// one *Store sees the same state, and a batch executes under a single lock, so
// reconciliation snapshots are exact.
package local

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"

	"github.com/unkn0wn-root/hotmirror/store"
)

var (
	ErrWrongType  = errors.New("local store: operation against a key holding the wrong kind of value")
	ErrNotInteger = errors.New("local store: value is not an integer")
	ErrClosed     = errors.New("local store: closed")
)

// Store keeps strings, sets and hashes in maps guarded by one mutex.
type Store struct {
	mu     sync.Mutex
	strs   map[string]string
	sets   map[string]map[string]struct{}
	hashes map[string]map[string]string
	closed bool
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		strs:   make(map[string]string),
		sets:   make(map[string]map[string]struct{}),
		hashes: make(map[string]map[string]string),
	}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var r store.StringResult
	err := s.do(ctx, func() error {
		v, ok, err := s.get(key)
		r.Fill(v, ok)
		return err
	})
	v, ok := r.Val()
	return v, ok, err
}

func (s *Store) Set(ctx context.Context, key, value string, onlyIfAbsent bool) (bool, error) {
	var ok bool
	err := s.do(ctx, func() (err error) {
		ok, err = s.set(key, value, onlyIfAbsent)
		return err
	})
	return ok, err
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.do(ctx, func() (err error) {
		n, err = s.incr(key)
		return err
	})
	return n, err
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.do(ctx, func() error { s.del(keys...); return nil })
}

func (s *Store) SAdd(ctx context.Context, key string, members ...string) error {
	return s.do(ctx, func() error { return s.sadd(key, members...) })
}

func (s *Store) SRem(ctx context.Context, key string, members ...string) error {
	return s.do(ctx, func() error { return s.srem(key, members...) })
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	var out []string
	err := s.do(ctx, func() (err error) {
		out, err = s.smembers(key)
		return err
	})
	return out, err
}

func (s *Store) HSet(ctx context.Context, key, field, value string) error {
	return s.do(ctx, func() error { return s.hset(key, field, value) })
}

func (s *Store) HDel(ctx context.Context, key string, fields ...string) error {
	return s.do(ctx, func() error { return s.hdel(key, fields...) })
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	var out map[string]string
	err := s.do(ctx, func() (err error) {
		out, err = s.hgetall(key)
		return err
	})
	return out, err
}

// Pipelined runs every queued command under one lock acquisition.
// Like a Redis pipeline, a failing command does not stop the ones after it;
// the first error is returned and, as with the redis store, no result
// handle is filled.
func (s *Store) Pipelined(ctx context.Context, fn func(p store.Pipeliner) error) error {
	p := &pipe{s: s}
	if err := fn(p); err != nil {
		return err
	}
	if len(p.ops) == 0 {
		return nil
	}
	var fills []func()
	err := s.do(ctx, func() error {
		var first error
		for _, run := range p.ops {
			fill, err := run()
			if err != nil {
				if first == nil {
					first = err
				}
				continue
			}
			if fill != nil {
				fills = append(fills, fill)
			}
		}
		return first
	})
	if err != nil {
		return err
	}
	for _, fill := range fills {
		fill()
	}
	return nil
}

func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *Store) do(ctx context.Context, f func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return f()
}

// the helpers below expect s.mu held

func (s *Store) kindOK(key string, want byte) bool {
	if _, ok := s.strs[key]; ok && want != 's' {
		return false
	}
	if _, ok := s.sets[key]; ok && want != 'S' {
		return false
	}
	if _, ok := s.hashes[key]; ok && want != 'H' {
		return false
	}
	return true
}

func (s *Store) get(key string) (string, bool, error) {
	if !s.kindOK(key, 's') {
		return "", false, ErrWrongType
	}
	v, ok := s.strs[key]
	return v, ok, nil
}

func (s *Store) set(key, value string, onlyIfAbsent bool) (bool, error) {
	if onlyIfAbsent {
		if !s.kindOK(key, 's') {
			return false, nil
		}
		if _, ok := s.strs[key]; ok {
			return false, nil
		}
	}
	s.del(key)
	s.strs[key] = value
	return true, nil
}

func (s *Store) incr(key string) (int64, error) {
	if !s.kindOK(key, 's') {
		return 0, ErrWrongType
	}
	var n int64
	if raw, ok := s.strs[key]; ok {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, ErrNotInteger
		}
		n = v
	}
	n++
	s.strs[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (s *Store) del(keys ...string) {
	for _, k := range keys {
		delete(s.strs, k)
		delete(s.sets, k)
		delete(s.hashes, k)
	}
}

func (s *Store) sadd(key string, members ...string) error {
	if !s.kindOK(key, 'S') {
		return ErrWrongType
	}
	if len(members) == 0 {
		return nil
	}
	m := s.sets[key]
	if m == nil {
		m = make(map[string]struct{}, len(members))
		s.sets[key] = m
	}
	for _, v := range members {
		m[v] = struct{}{}
	}
	return nil
}

func (s *Store) srem(key string, members ...string) error {
	if !s.kindOK(key, 'S') {
		return ErrWrongType
	}
	m := s.sets[key]
	for _, v := range members {
		delete(m, v)
	}
	if len(m) == 0 {
		delete(s.sets, key)
	}
	return nil
}

func (s *Store) smembers(key string) ([]string, error) {
	if !s.kindOK(key, 'S') {
		return nil, ErrWrongType
	}
	m := s.sets[key]
	out := make([]string, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) hset(key, field, value string) error {
	if !s.kindOK(key, 'H') {
		return ErrWrongType
	}
	h := s.hashes[key]
	if h == nil {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (s *Store) hdel(key string, fields ...string) error {
	if !s.kindOK(key, 'H') {
		return ErrWrongType
	}
	h := s.hashes[key]
	for _, f := range fields {
		delete(h, f)
	}
	if len(h) == 0 {
		delete(s.hashes, key)
	}
	return nil
}

func (s *Store) hgetall(key string) (map[string]string, error) {
	if !s.kindOK(key, 'H') {
		return nil, ErrWrongType
	}
	h := s.hashes[key]
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

// op executes one queued command; the returned fill publishes its result
// once the whole batch has succeeded.
type op func() (fill func(), err error)

type pipe struct {
	s   *Store
	ops []op
}

var _ store.Pipeliner = (*pipe)(nil)

func (p *pipe) Get(key string) *store.StringResult {
	r := new(store.StringResult)
	p.ops = append(p.ops, func() (func(), error) {
		v, ok, err := p.s.get(key)
		return func() { r.Fill(v, ok) }, err
	})
	return r
}

func (p *pipe) Set(key, value string, onlyIfAbsent bool) *store.BoolResult {
	r := new(store.BoolResult)
	p.ops = append(p.ops, func() (func(), error) {
		ok, err := p.s.set(key, value, onlyIfAbsent)
		return func() { r.Fill(ok) }, err
	})
	return r
}

func (p *pipe) Incr(key string) *store.IntResult {
	r := new(store.IntResult)
	p.ops = append(p.ops, func() (func(), error) {
		n, err := p.s.incr(key)
		return func() { r.Fill(n) }, err
	})
	return r
}

func (p *pipe) Del(keys ...string) {
	p.ops = append(p.ops, func() (func(), error) { p.s.del(keys...); return nil, nil })
}

func (p *pipe) SAdd(key string, members ...string) {
	p.ops = append(p.ops, func() (func(), error) { return nil, p.s.sadd(key, members...) })
}

func (p *pipe) SRem(key string, members ...string) {
	p.ops = append(p.ops, func() (func(), error) { return nil, p.s.srem(key, members...) })
}

func (p *pipe) SMembers(key string) *store.MembersResult {
	r := new(store.MembersResult)
	p.ops = append(p.ops, func() (func(), error) {
		v, err := p.s.smembers(key)
		return func() { r.Fill(v) }, err
	})
	return r
}

func (p *pipe) HSet(key, field, value string) {
	p.ops = append(p.ops, func() (func(), error) { return nil, p.s.hset(key, field, value) })
}

func (p *pipe) HDel(key string, fields ...string) {
	p.ops = append(p.ops, func() (func(), error) { return nil, p.s.hdel(key, fields...) })
}

func (p *pipe) HGetAll(key string) *store.HashResult {
	r := new(store.HashResult)
	p.ops = append(p.ops, func() (func(), error) {
		v, err := p.s.hgetall(key)
		return func() { r.Fill(v) }, err
	})
	return r
}
