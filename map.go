package hotmirror

import (
	"context"
	"fmt"
	"strings"

	"github.com/unkn0wn-root/hotmirror/codec"
	"github.com/unkn0wn-root/hotmirror/store"
)

// Source feeds key/value pairs into Map.Update.
type Source[K, V any] interface {
	Each(fn func(K, V) error) error
}

// Pair is a single key/value. As an Update argument it plays the role of a
// named argument: pairs are applied after the positional source.
type Pair[K, V any] struct {
	Key   K
	Value V
}

// P is shorthand for Pair{k, v}.
func P[K, V any](k K, v V) Pair[K, V] { return Pair[K, V]{Key: k, Value: v} }

func (p Pair[K, V]) Each(fn func(K, V) error) error { return fn(p.Key, p.Value) }

// Mapping is a positional Update source backed by a Go map.
type Mapping[K comparable, V any] map[K]V

func (m Mapping[K, V]) Each(fn func(K, V) error) error {
	for k, v := range m {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// PairList is a positional Update source applied in order.
type PairList[K, V any] []Pair[K, V]

func (l PairList[K, V]) Each(fn func(K, V) error) error {
	for _, p := range l {
		if err := fn(p.Key, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// Map mirrors a shared hash locally, with the same refresh and write-through
// discipline as Set.
//
// A Map is not safe for concurrent use.
type Map[K, V any] struct {
	rf       refresher
	keyCodec codec.Codec[K]
	valCodec codec.Codec[V]
	local    map[string]string
	staged   *store.HashResult
}

var _ Syncer = (*Map[string, string])(nil)

func NewMap[K, V any](ctx context.Context, opts MapOptions[K, V]) (*Map[K, V], error) {
	if err := validate(opts.Name, opts.Store, opts.KeyCodec != nil && opts.ValueCodec != nil); err != nil {
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

	m := &Map[K, V]{
		rf:       newRefresher(c),
		keyCodec: opts.KeyCodec,
		valCodec: opts.ValueCodec,
		local:    make(map[string]string),
	}
	if err := m.rf.start(ctx, m, c.startupInit); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Map[K, V]) Name() string       { return m.rf.name }
func (m *Map[K, V]) ValueKey() string   { return m.rf.valueKey }
func (m *Map[K, V]) VersionKey() string { return m.rf.versionKey }

// Sync applies the refresh policy without reading anything.
func (m *Map[K, V]) Sync(ctx context.Context) error { return m.rf.ensureFresh(ctx, m) }

// Refresh reconciles now, regardless of the refresh interval.
func (m *Map[K, V]) Refresh(ctx context.Context) error { return m.rf.reconcile(ctx, m) }

// Lookup returns the value for k and whether it is present.
func (m *Map[K, V]) Lookup(ctx context.Context, k K) (V, bool, error) {
	var zero V
	ek, err := m.encodeKey(k)
	if err != nil {
		return zero, false, err
	}
	if err := m.Sync(ctx); err != nil {
		return zero, false, err
	}
	raw, ok := m.local[ek]
	if !ok {
		return zero, false, nil
	}
	v, err := m.valCodec.Decode(raw)
	if err != nil {
		return zero, false, &DecodeError{Name: m.rf.name, Raw: raw, Err: err}
	}
	return v, true, nil
}

// Get returns the value for k, or a *KeyError matching ErrNotFound.
func (m *Map[K, V]) Get(ctx context.Context, k K) (V, error) {
	v, ok, err := m.Lookup(ctx, k)
	if err != nil {
		return v, err
	}
	if !ok {
		ek, _ := m.keyCodec.Encode(k)
		return v, &KeyError{Name: m.rf.name, Key: ek}
	}
	return v, nil
}

// GetOr returns the value for k, or def when absent.
func (m *Map[K, V]) GetOr(ctx context.Context, k K, def V) (V, error) {
	v, ok, err := m.Lookup(ctx, k)
	if err != nil {
		return v, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// Contains reports whether k is present.
func (m *Map[K, V]) Contains(ctx context.Context, k K) (bool, error) {
	ek, err := m.encodeKey(k)
	if err != nil {
		return false, err
	}
	if err := m.Sync(ctx); err != nil {
		return false, err
	}
	_, ok := m.local[ek]
	return ok, nil
}

// Set writes the field and bumps the version in one round trip, then updates
// the mirror. On error the mirror is unchanged.
func (m *Map[K, V]) Set(ctx context.Context, k K, v V) error {
	ek, err := m.encodeKey(k)
	if err != nil {
		return err
	}
	ev, err := m.valCodec.Encode(v)
	if err != nil {
		return &EncodeError{Name: m.rf.name, Err: err}
	}
	err = m.rf.store.Pipelined(ctx, func(p store.Pipeliner) error {
		p.HSet(m.rf.valueKey, ek, ev)
		p.Incr(m.rf.versionKey)
		return nil
	})
	if err != nil {
		m.rf.writeFailed("set", err)
		return err
	}
	m.local[ek] = ev
	return nil
}

// Delete removes k from the store and then from the mirror.
// Deleting an absent key is not an error.
func (m *Map[K, V]) Delete(ctx context.Context, k K) error {
	ek, err := m.encodeKey(k)
	if err != nil {
		return err
	}
	err = m.rf.store.Pipelined(ctx, func(p store.Pipeliner) error {
		p.HDel(m.rf.valueKey, ek)
		p.Incr(m.rf.versionKey)
		return nil
	})
	if err != nil {
		m.rf.writeFailed("delete", err)
		return err
	}
	delete(m.local, ek)
	return nil
}

// SetDefault sets k to def when absent and returns the resulting value.
// It is not atomic against other writers of k; the store keeps the last write.
func (m *Map[K, V]) SetDefault(ctx context.Context, k K, def V) (V, error) {
	v, ok, err := m.Lookup(ctx, k)
	if err != nil || ok {
		return v, err
	}
	if err := m.Set(ctx, k, def); err != nil {
		return v, err
	}
	return def, nil
}

// Pop returns the value for k and deletes it. Absent keys yield a *KeyError.
func (m *Map[K, V]) Pop(ctx context.Context, k K) (V, error) {
	v, err := m.Get(ctx, k)
	if err != nil {
		return v, err
	}
	if err := m.Delete(ctx, k); err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}

// PopOr is Pop returning def instead of an error when k is absent.
func (m *Map[K, V]) PopOr(ctx context.Context, k K, def V) (V, error) {
	v, ok, err := m.Lookup(ctx, k)
	if err != nil {
		return v, err
	}
	if !ok {
		return def, nil
	}
	if err := m.Delete(ctx, k); err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}

// Update sets every pair from args, one Set per key. At most one positional
// source (a Mapping, PairList or any other Source) is accepted; it is applied
// first, then each Pair argument in order. A second positional source fails
// with ErrUpdateArgs before anything is written.
func (m *Map[K, V]) Update(ctx context.Context, args ...Source[K, V]) error {
	var (
		positional Source[K, V]
		named      []Pair[K, V]
	)
	for _, a := range args {
		switch a := a.(type) {
		case Pair[K, V]:
			named = append(named, a)
		case *Pair[K, V]:
			named = append(named, *a)
		default:
			if positional != nil {
				return fmt.Errorf("%w, got %d", ErrUpdateArgs, countPositional(args))
			}
			positional = a
		}
	}
	set := func(k K, v V) error { return m.Set(ctx, k, v) }
	if positional != nil {
		if err := positional.Each(set); err != nil {
			return err
		}
	}
	for _, p := range named {
		if err := set(p.Key, p.Value); err != nil {
			return err
		}
	}
	return nil
}

func countPositional[K, V any](args []Source[K, V]) int {
	n := 0
	for _, a := range args {
		switch a.(type) {
		case Pair[K, V], *Pair[K, V]:
		default:
			n++
		}
	}
	return n
}

// Clear deletes the shared hash and empties the mirror.
func (m *Map[K, V]) Clear(ctx context.Context) error {
	err := m.rf.store.Pipelined(ctx, func(p store.Pipeliner) error {
		p.Del(m.rf.valueKey)
		p.Incr(m.rf.versionKey)
		return nil
	})
	if err != nil {
		m.rf.writeFailed("clear", err)
		return err
	}
	clear(m.local)
	return nil
}

func (m *Map[K, V]) Len(ctx context.Context) (int, error) {
	if err := m.Sync(ctx); err != nil {
		return 0, err
	}
	return len(m.local), nil
}

// Keys returns the decoded keys ordered by their encoding.
func (m *Map[K, V]) Keys(ctx context.Context) ([]K, error) {
	items, err := m.Items(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]K, len(items))
	for i, it := range items {
		out[i] = it.Key
	}
	return out, nil
}

// Values returns the decoded values ordered by their keys' encoding.
func (m *Map[K, V]) Values(ctx context.Context) ([]V, error) {
	items, err := m.Items(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]V, len(items))
	for i, it := range items {
		out[i] = it.Value
	}
	return out, nil
}

// Items returns all pairs ordered by key encoding. Entries that fail to
// decode are reported to Hooks and skipped.
func (m *Map[K, V]) Items(ctx context.Context) ([]Pair[K, V], error) {
	if err := m.Sync(ctx); err != nil {
		return nil, err
	}
	ks := sortedKeys(m.local)
	out := make([]Pair[K, V], 0, len(ks))
	for _, ek := range ks {
		if p, ok := m.decodePair(ek, m.local[ek]); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Range calls fn for each entry until fn returns false.
func (m *Map[K, V]) Range(ctx context.Context, fn func(K, V) bool) error {
	if err := m.Sync(ctx); err != nil {
		return err
	}
	for ek, ev := range m.local {
		p, ok := m.decodePair(ek, ev)
		if !ok {
			continue
		}
		if !fn(p.Key, p.Value) {
			return nil
		}
	}
	return nil
}

// String renders the mirror for humans; see Set.String.
func (m *Map[K, V]) String() string {
	if err := m.Sync(context.Background()); err != nil {
		m.rf.log.Debug("String: rendering possibly stale mirror", Fields{"key": m.rf.valueKey, "err": err})
	}
	head := fmt.Sprintf("Map:%s:%s", m.rf.valueKey, m.rf.versionKey)
	if len(m.local) > displayLimit {
		return head + ": too many values..."
	}
	var b strings.Builder
	b.WriteString(head)
	b.WriteString(": {")
	for i, k := range sortedKeys(m.local) {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", k, m.local[k])
	}
	b.WriteString("}")
	return b.String()
}

func (m *Map[K, V]) stage(p store.Pipeliner) { m.staged = p.HGetAll(m.rf.valueKey) }

func (m *Map[K, V]) commit() int {
	h := m.staged.Val()
	m.staged = nil
	if h == nil {
		h = make(map[string]string)
	}
	m.local = h
	return len(h)
}

func (m *Map[K, V]) encodeKey(k K) (string, error) {
	ek, err := m.keyCodec.Encode(k)
	if err != nil {
		return "", &EncodeError{Name: m.rf.name, Err: err}
	}
	return ek, nil
}

func (m *Map[K, V]) decodePair(ek, ev string) (Pair[K, V], bool) {
	var p Pair[K, V]
	k, err := m.keyCodec.Decode(ek)
	if err == nil {
		var v V
		if v, err = m.valCodec.Decode(ev); err == nil {
			return Pair[K, V]{Key: k, Value: v}, true
		}
		err = &DecodeError{Name: m.rf.name, Raw: ev, Err: err}
	} else {
		err = &DecodeError{Name: m.rf.name, Raw: ek, Err: err}
	}
	m.rf.hooks.DecodeError(m.rf.valueKey, err)
	m.rf.log.Warn("skipping undecodable entry", Fields{"key": m.rf.valueKey, "err": err})
	return p, false
}
