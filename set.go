package hotmirror

import (
	"context"
	"fmt"
	"sort"

	"github.com/unkn0wn-root/hotmirror/codec"
	"github.com/unkn0wn-root/hotmirror/store"
)

// Members is anything whose elements can be listed. It is the operand type of
// Set.Difference: a *Set refreshes itself when listed, a LocalSet does not.
type Members[V any] interface {
	Members(ctx context.Context) ([]V, error)
}

// Syncer is implemented by mirrors. Operations taking another collection run
// Sync on it first when it is one.
type Syncer interface {
	Sync(ctx context.Context) error
}

// LocalSet is a plain in-process set usable wherever a Members operand is accepted.
type LocalSet[V comparable] map[V]struct{}

// NewLocalSet builds a LocalSet from vs.
func NewLocalSet[V comparable](vs ...V) LocalSet[V] {
	s := make(LocalSet[V], len(vs))
	for _, v := range vs {
		s[v] = struct{}{}
	}
	return s
}

func (l LocalSet[V]) Members(context.Context) ([]V, error) {
	out := make([]V, 0, len(l))
	for v := range l {
		out = append(out, v)
	}
	return out, nil
}

// Set mirrors a shared set of V locally. Reads are served from memory and may
// lag other writers by up to the refresh interval; writes go to the store
// first and then to the local copy.
//
// A Set is not safe for concurrent use. Give each goroutine its own instance
// or guard it externally.
type Set[V any] struct {
	rf     refresher
	codec  codec.Codec[V]
	local  map[string]struct{}
	staged *store.MembersResult
}

var (
	_ Members[string] = (*Set[string])(nil)
	_ Syncer          = (*Set[string])(nil)
)

// NewSet validates opts and binds a mirror to opts.Name. With StartupInit the
// mirror reconciles before returning; otherwise on first read.
func NewSet[V any](ctx context.Context, opts SetOptions[V]) (*Set[V], error) {
	if err := validate(opts.Name, opts.Store, opts.Codec != nil); err != nil {
		return nil, err
	}
	c := common{
		name:        opts.Name,
		store:       opts.Store,
		interval:    opts.RefreshInterval,
		startupInit: opts.StartupInit,
		log:         opts.Logger,
		hooks:       opts.Hooks,
	}.withDefaults()

	s := &Set[V]{
		rf:    newRefresher(c),
		codec: opts.Codec,
		local: make(map[string]struct{}),
	}
	if err := s.rf.start(ctx, s, c.startupInit); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Set[V]) Name() string       { return s.rf.name }
func (s *Set[V]) ValueKey() string   { return s.rf.valueKey }
func (s *Set[V]) VersionKey() string { return s.rf.versionKey }

// Sync applies the refresh policy without reading anything.
func (s *Set[V]) Sync(ctx context.Context) error { return s.rf.ensureFresh(ctx, s) }

// Refresh reconciles now, regardless of the refresh interval.
func (s *Set[V]) Refresh(ctx context.Context) error { return s.rf.reconcile(ctx, s) }

// Contains reports whether v is in the mirror.
func (s *Set[V]) Contains(ctx context.Context, v V) (bool, error) {
	enc, err := s.encode(v)
	if err != nil {
		return false, err
	}
	if err := s.Sync(ctx); err != nil {
		return false, err
	}
	_, ok := s.local[enc]
	return ok, nil
}

// Add writes v to the store and bumps the version in one round trip, then
// adds it locally. On error the local mirror is unchanged.
func (s *Set[V]) Add(ctx context.Context, v V) error {
	return s.Update(ctx, v)
}

// Update adds all vs with a single store round trip. No values, no round trip.
func (s *Set[V]) Update(ctx context.Context, vs ...V) error {
	if len(vs) == 0 {
		return nil
	}
	encs := make([]string, len(vs))
	for i, v := range vs {
		enc, err := s.encode(v)
		if err != nil {
			return err
		}
		encs[i] = enc
	}
	err := s.rf.store.Pipelined(ctx, func(p store.Pipeliner) error {
		p.SAdd(s.rf.valueKey, encs...)
		p.Incr(s.rf.versionKey)
		return nil
	})
	if err != nil {
		s.rf.writeFailed("add", err)
		return err
	}
	for _, enc := range encs {
		s.local[enc] = struct{}{}
	}
	return nil
}

// Discard removes v from the store and then locally. Removing an absent
// member is a no-op at both layers (the version still moves).
func (s *Set[V]) Discard(ctx context.Context, v V) error {
	enc, err := s.encode(v)
	if err != nil {
		return err
	}
	err = s.rf.store.Pipelined(ctx, func(p store.Pipeliner) error {
		p.SRem(s.rf.valueKey, enc)
		p.Incr(s.rf.versionKey)
		return nil
	})
	if err != nil {
		s.rf.writeFailed("discard", err)
		return err
	}
	delete(s.local, enc)
	return nil
}

// Remove is Discard.
func (s *Set[V]) Remove(ctx context.Context, v V) error { return s.Discard(ctx, v) }

// Clear deletes the shared set and empties the mirror.
func (s *Set[V]) Clear(ctx context.Context) error {
	err := s.rf.store.Pipelined(ctx, func(p store.Pipeliner) error {
		p.Del(s.rf.valueKey)
		p.Incr(s.rf.versionKey)
		return nil
	})
	if err != nil {
		s.rf.writeFailed("clear", err)
		return err
	}
	clear(s.local)
	return nil
}

// Len returns the number of members.
func (s *Set[V]) Len(ctx context.Context) (int, error) {
	if err := s.Sync(ctx); err != nil {
		return 0, err
	}
	return len(s.local), nil
}

// Members returns the decoded members ordered by their encoding.
// Members the codec cannot decode are reported to Hooks and skipped.
func (s *Set[V]) Members(ctx context.Context) ([]V, error) {
	if err := s.Sync(ctx); err != nil {
		return nil, err
	}
	return s.decodeAll(sortedKeys(s.local)), nil
}

// Range calls fn for each member until fn returns false.
func (s *Set[V]) Range(ctx context.Context, fn func(V) bool) error {
	if err := s.Sync(ctx); err != nil {
		return err
	}
	for enc := range s.local {
		v, ok := s.decode(enc)
		if !ok {
			continue
		}
		if !fn(v) {
			return nil
		}
	}
	return nil
}

// Difference returns the members of s that are not in other. If other is a
// mirror it is synced first; plain collections are used as they are.
func (s *Set[V]) Difference(ctx context.Context, other Members[V]) ([]V, error) {
	if err := s.Sync(ctx); err != nil {
		return nil, err
	}
	if m, ok := other.(Syncer); ok {
		if err := m.Sync(ctx); err != nil {
			return nil, err
		}
	}
	theirs, err := other.Members(ctx)
	if err != nil {
		return nil, err
	}
	exclude := make(map[string]struct{}, len(theirs))
	for _, v := range theirs {
		enc, err := s.encode(v)
		if err != nil {
			return nil, err
		}
		exclude[enc] = struct{}{}
	}
	var keep []string
	for enc := range s.local {
		if _, ok := exclude[enc]; !ok {
			keep = append(keep, enc)
		}
	}
	sort.Strings(keep)
	return s.decodeAll(keep), nil
}

// String renders the mirror for humans. It runs the refresh policy; a failed
// refresh is logged and the current mirror is rendered.
func (s *Set[V]) String() string {
	if err := s.Sync(context.Background()); err != nil {
		s.rf.log.Debug("String: rendering possibly stale mirror", Fields{"key": s.rf.valueKey, "err": err})
	}
	head := fmt.Sprintf("Set:%s:%s", s.rf.valueKey, s.rf.versionKey)
	if len(s.local) > displayLimit {
		return head + ": too many values..."
	}
	return fmt.Sprintf("%s: %v", head, sortedKeys(s.local))
}

func (s *Set[V]) stage(p store.Pipeliner) { s.staged = p.SMembers(s.rf.valueKey) }

func (s *Set[V]) commit() int {
	members := s.staged.Val()
	s.staged = nil
	local := make(map[string]struct{}, len(members))
	for _, m := range members {
		local[m] = struct{}{}
	}
	s.local = local
	return len(local)
}

func (s *Set[V]) encode(v V) (string, error) {
	enc, err := s.codec.Encode(v)
	if err != nil {
		return "", &EncodeError{Name: s.rf.name, Err: err}
	}
	return enc, nil
}

func (s *Set[V]) decode(enc string) (V, bool) {
	v, err := s.codec.Decode(enc)
	if err != nil {
		derr := &DecodeError{Name: s.rf.name, Raw: enc, Err: err}
		s.rf.hooks.DecodeError(s.rf.valueKey, derr)
		s.rf.log.Warn("skipping undecodable member", Fields{"key": s.rf.valueKey, "err": derr})
		return v, false
	}
	return v, true
}

func (s *Set[V]) decodeAll(encs []string) []V {
	out := make([]V, 0, len(encs))
	for _, enc := range encs {
		if v, ok := s.decode(enc); ok {
			out = append(out, v)
		}
	}
	return out
}

func sortedKeys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
