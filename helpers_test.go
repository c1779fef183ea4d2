package hotmirror

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/hotmirror/codec"
	"github.com/unkn0wn-root/hotmirror/store"
	"github.com/unkn0wn-root/hotmirror/store/local"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// countingStore counts version reads and batches, and fails both when fail is set.
type countingStore struct {
	store.Store
	gets    int
	batches int
	fail    error
}

func newCountingStore() *countingStore { return &countingStore{Store: local.New()} }

func (s *countingStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.gets++
	if s.fail != nil {
		return "", false, s.fail
	}
	return s.Store.Get(ctx, key)
}

func (s *countingStore) Pipelined(ctx context.Context, fn func(p store.Pipeliner) error) error {
	s.batches++
	if s.fail != nil {
		return s.fail
	}
	return s.Store.Pipelined(ctx, fn)
}

func (s *countingStore) roundTrips() int { return s.gets + s.batches }

type recordingHooks struct {
	mu          sync.Mutex
	reconciled  int
	unchanged   int
	parseErrors int
	decodeErrs  int
	reconErrs   int
	writeOps    []string
}

var _ Hooks = (*recordingHooks)(nil)

func (h *recordingHooks) Reconciled(string, int64, int) {
	h.mu.Lock()
	h.reconciled++
	h.mu.Unlock()
}

func (h *recordingHooks) VersionUnchanged(string, int64) {
	h.mu.Lock()
	h.unchanged++
	h.mu.Unlock()
}

func (h *recordingHooks) VersionParseError(string, string) {
	h.mu.Lock()
	h.parseErrors++
	h.mu.Unlock()
}

func (h *recordingHooks) DecodeError(string, error) {
	h.mu.Lock()
	h.decodeErrs++
	h.mu.Unlock()
}

func (h *recordingHooks) ReconcileError(string, error) {
	h.mu.Lock()
	h.reconErrs++
	h.mu.Unlock()
}

func (h *recordingHooks) WriteError(_ string, op string, _ error) {
	h.mu.Lock()
	h.writeOps = append(h.writeOps, op)
	h.mu.Unlock()
}

const testInterval = 5 * time.Second

func newTestSet(t *testing.T, name string, st store.Store, clk *fakeClock, optsOpt func(*SetOptions[string])) *Set[string] {
	t.Helper()
	opts := SetOptions[string]{
		Name:            name,
		Store:           st,
		Codec:           codec.String{},
		RefreshInterval: testInterval,
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	s, err := NewSet(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	if clk != nil {
		s.rf.now = clk.Now
		s.rf.expireAt = clk.Now()
	}
	return s
}

func newTestMap(t *testing.T, name string, st store.Store, clk *fakeClock, optsOpt func(*MapOptions[string, string])) *Map[string, string] {
	t.Helper()
	opts := MapOptions[string, string]{
		Name:            name,
		Store:           st,
		KeyCodec:        codec.String{},
		ValueCodec:      codec.String{},
		RefreshInterval: testInterval,
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	m, err := NewMap(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	if clk != nil {
		m.rf.now = clk.Now
		m.rf.expireAt = clk.Now()
	}
	return m
}

func storedVersion(t *testing.T, st store.Store, versionKey string) int64 {
	t.Helper()
	raw, ok, err := st.Get(context.Background(), versionKey)
	if err != nil {
		t.Fatalf("read version: %v", err)
	}
	if !ok {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		t.Fatalf("parse version %q: %v", raw, err)
	}
	return v
}
