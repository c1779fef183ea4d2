package redis

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/hotmirror/store"
)

var ErrNilClient = errors.New("redis store: nil client")

// Store adapts a go-redis UniversalClient (single node, sentinel or cluster)
// to store.Store.
type Store struct {
	rdb         goredis.UniversalClient
	closeClient bool
	tx          bool
}

var _ store.Store = (*Store)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this store exclusively owns the client
	// Transactional wraps batches in MULTI/EXEC so reconciliation reads one
	// consistent snapshot. Both keys of a mirror share a hash tag, so this is
	// valid on cluster deployments too.
	Transactional bool
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Store{rdb: cfg.Client, closeClient: cfg.CloseClient, tx: cfg.Transactional}, nil
}

// Client exposes the wrapped client.
func (s *Store) Client() goredis.UniversalClient { return s.rdb }

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err == goredis.Nil {
		return "", false, nil // miss
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string, onlyIfAbsent bool) (bool, error) {
	if onlyIfAbsent {
		return s.rdb.SetNX(ctx, key, value, 0).Result()
	}
	if err := s.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	return s.rdb.Incr(ctx, key).Result()
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *Store) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.rdb.SAdd(ctx, key, anys(members)...).Err()
}

func (s *Store) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.rdb.SRem(ctx, key, anys(members)...).Err()
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.rdb.SMembers(ctx, key).Result()
}

func (s *Store) HSet(ctx context.Context, key, field, value string) error {
	return s.rdb.HSet(ctx, key, field, value).Err()
}

func (s *Store) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return s.rdb.HDel(ctx, key, fields...).Err()
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, key).Result()
}

// Pipelined sends the queued commands in one round trip (MULTI/EXEC when
// Transactional). A GET miss inside the batch is not an error.
func (s *Store) Pipelined(ctx context.Context, fn func(p store.Pipeliner) error) error {
	p := &pipe{ctx: ctx}
	exec := s.rdb.Pipelined
	if s.tx {
		exec = s.rdb.TxPipelined
	}
	cmds, err := exec(ctx, func(rp goredis.Pipeliner) error {
		p.rp = rp
		return fn(p)
	})
	if err != nil && err != goredis.Nil && len(cmds) == 0 {
		// fn failed or nothing was sent
		return err
	}
	// go-redis reports the first failed command, GET misses included,
	// so walk them for the first real error.
	for _, c := range cmds {
		if cerr := c.Err(); cerr != nil && cerr != goredis.Nil {
			return cerr
		}
	}
	if err != nil && err != goredis.Nil {
		return err
	}
	for _, fill := range p.fills {
		fill()
	}
	return nil
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Store) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

type pipe struct {
	ctx   context.Context
	rp    goredis.Pipeliner
	fills []func()
}

var _ store.Pipeliner = (*pipe)(nil)

func (p *pipe) Get(key string) *store.StringResult {
	r := new(store.StringResult)
	cmd := p.rp.Get(p.ctx, key)
	p.fills = append(p.fills, func() {
		v, err := cmd.Result()
		r.Fill(v, err == nil)
	})
	return r
}

func (p *pipe) Set(key, value string, onlyIfAbsent bool) *store.BoolResult {
	r := new(store.BoolResult)
	if onlyIfAbsent {
		cmd := p.rp.SetNX(p.ctx, key, value, 0)
		p.fills = append(p.fills, func() { r.Fill(cmd.Val()) })
		return r
	}
	p.rp.Set(p.ctx, key, value, 0)
	r.Fill(true)
	return r
}

func (p *pipe) Incr(key string) *store.IntResult {
	r := new(store.IntResult)
	cmd := p.rp.Incr(p.ctx, key)
	p.fills = append(p.fills, func() { r.Fill(cmd.Val()) })
	return r
}

func (p *pipe) Del(keys ...string) {
	if len(keys) > 0 {
		p.rp.Del(p.ctx, keys...)
	}
}

func (p *pipe) SAdd(key string, members ...string) {
	if len(members) > 0 {
		p.rp.SAdd(p.ctx, key, anys(members)...)
	}
}

func (p *pipe) SRem(key string, members ...string) {
	if len(members) > 0 {
		p.rp.SRem(p.ctx, key, anys(members)...)
	}
}

func (p *pipe) SMembers(key string) *store.MembersResult {
	r := new(store.MembersResult)
	cmd := p.rp.SMembers(p.ctx, key)
	p.fills = append(p.fills, func() { r.Fill(cmd.Val()) })
	return r
}

func (p *pipe) HSet(key, field, value string) {
	p.rp.HSet(p.ctx, key, field, value)
}

func (p *pipe) HDel(key string, fields ...string) {
	if len(fields) > 0 {
		p.rp.HDel(p.ctx, key, fields...)
	}
}

func (p *pipe) HGetAll(key string) *store.HashResult {
	r := new(store.HashResult)
	cmd := p.rp.HGetAll(p.ctx, key)
	p.fills = append(p.fills, func() { r.Fill(cmd.Val()) })
	return r
}

func anys(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
