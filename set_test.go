package hotmirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/hotmirror/codec"
	"github.com/unkn0wn-root/hotmirror/store/local"
)

// ==============================
// Construction
// ==============================

// TestNewSetValidation: invalid options fail before any store access.
func TestNewSetValidation(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()

	_, err := NewSet(ctx, SetOptions[string]{Store: st, Codec: codec.String{}, StartupInit: true})
	if !errors.Is(err, ErrEmptyName) {
		t.Fatalf("empty name: got %v", err)
	}
	if st.roundTrips() != 0 {
		t.Fatalf("empty name must not touch the store, got %d round trips", st.roundTrips())
	}
	if _, err := NewSet(ctx, SetOptions[string]{Name: "x", Codec: codec.String{}}); !errors.Is(err, ErrNilStore) {
		t.Fatalf("nil store: got %v", err)
	}
	if _, err := NewSet(ctx, SetOptions[string]{Name: "x", Store: st}); !errors.Is(err, ErrNilCodec) {
		t.Fatalf("nil codec: got %v", err)
	}
}

func TestSetKeysShareHashTag(t *testing.T) {
	s := newTestSet(t, "test_key", local.New(), nil, nil)
	if s.ValueKey() != "{test_key}:value" || s.VersionKey() != "{test_key}:version" {
		t.Fatalf("keys: %q %q", s.ValueKey(), s.VersionKey())
	}
}

// TestSetLazyConstruction: without StartupInit the constructor does not touch
// the store and the first read reconciles.
func TestSetLazyConstruction(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	_ = st.SAdd(ctx, "{lazy}:value", "a")
	_, _ = st.Incr(ctx, "{lazy}:version")

	s := newTestSet(t, "lazy", st, newFakeClock(), nil)
	if st.roundTrips() != 0 {
		t.Fatalf("lazy constructor touched the store")
	}
	if s.rf.version != neverSynced {
		t.Fatalf("expected never-synced version, got %d", s.rf.version)
	}
	ok, err := s.Contains(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("first read should reconcile: ok=%v err=%v", ok, err)
	}
	if st.gets != 1 || st.batches != 1 {
		t.Fatalf("expected one version check and one reconcile, got gets=%d batches=%d", st.gets, st.batches)
	}
}

// TestSetStartupInitJittersFirstExpiry: eager construction reconciles once and
// schedules the first expiry within one interval.
func TestSetStartupInitJittersFirstExpiry(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	_ = st.SAdd(ctx, "{eager}:value", "a", "b")

	before := time.Now()
	s := newTestSet(t, "eager", st, nil, func(o *SetOptions[string]) {
		o.StartupInit = true
		o.RefreshInterval = time.Hour
	})
	if st.batches != 1 {
		t.Fatalf("expected one reconcile at construction, got %d", st.batches)
	}
	if s.rf.expireAt.Before(before) || s.rf.expireAt.After(time.Now().Add(time.Hour)) {
		t.Fatalf("first expiry %v outside [now, now+interval]", s.rf.expireAt)
	}
	if s.rf.version != 0 || len(s.local) != 2 {
		t.Fatalf("startup snapshot: version=%d local=%v", s.rf.version, s.local)
	}
}

func TestSetStartupInitPropagatesStoreError(t *testing.T) {
	st := newCountingStore()
	st.fail = errors.New("down")
	_, err := NewSet(context.Background(), SetOptions[string]{
		Name: "eager", Store: st, Codec: codec.String{}, StartupInit: true,
	})
	if !errors.Is(err, st.fail) {
		t.Fatalf("expected store error, got %v", err)
	}
}

// ==============================
// Coherency
// ==============================

// TestSetReadYourWrites: a successful Add is visible immediately, without a
// round trip.
func TestSetReadYourWrites(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	clk := newFakeClock()
	s := newTestSet(t, "ryw", st, clk, nil)

	if err := s.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(ctx, "v"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	before := st.roundTrips()
	ok, err := s.Contains(ctx, "v")
	if err != nil || !ok {
		t.Fatalf("Contains after Add: ok=%v err=%v", ok, err)
	}
	if st.roundTrips() != before {
		t.Fatalf("read-your-writes must be served locally")
	}
}

// TestSetCrossInstanceVisibility: another instance sees a write once its
// refresh interval has elapsed.
func TestSetCrossInstanceVisibility(t *testing.T) {
	ctx := context.Background()
	st := local.New()
	clk := newFakeClock()
	m1 := newTestSet(t, "shared", st, clk, nil)
	m2 := newTestSet(t, "shared", st, clk, nil)

	if ok, _ := m2.Contains(ctx, "v"); ok {
		t.Fatalf("unexpected member before write")
	}
	if err := m1.Add(ctx, "v"); err != nil {
		t.Fatal(err)
	}
	// Within the staleness window m2 may not see it.
	if ok, _ := m2.Contains(ctx, "v"); ok {
		t.Fatalf("m2 reconciled before its interval elapsed")
	}
	clk.Advance(testInterval)
	if ok, err := m2.Contains(ctx, "v"); err != nil || !ok {
		t.Fatalf("m2 should observe write after interval: ok=%v err=%v", ok, err)
	}

	if err := m2.Discard(ctx, "v"); err != nil {
		t.Fatal(err)
	}
	clk.Advance(testInterval)
	if ok, _ := m1.Contains(ctx, "v"); ok {
		t.Fatalf("m1 should observe discard after interval")
	}
}

// TestSetCheapPathKeepsValue: an unchanged version must not refetch or alter
// the mirror, even if the value key was changed behind its back.
func TestSetCheapPathKeepsValue(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	hooks := &recordingHooks{}
	clk := newFakeClock()
	s := newTestSet(t, "cheap", st, clk, func(o *SetOptions[string]) { o.Hooks = hooks })

	if err := s.Add(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	// foreign write without a version bump
	if err := st.SAdd(ctx, s.ValueKey(), "sneaky"); err != nil {
		t.Fatal(err)
	}

	clk.Advance(testInterval)
	batches := st.batches
	ok, err := s.Contains(ctx, "sneaky")
	if err != nil || ok {
		t.Fatalf("cheap path altered the mirror: ok=%v err=%v", ok, err)
	}
	if st.batches != batches {
		t.Fatalf("cheap path must not fetch the full value")
	}
	if hooks.unchanged != 1 {
		t.Fatalf("expected one VersionUnchanged, got %d", hooks.unchanged)
	}

	// once the version moves the member shows up
	if _, err := st.Incr(ctx, s.VersionKey()); err != nil {
		t.Fatal(err)
	}
	clk.Advance(testInterval)
	if ok, _ := s.Contains(ctx, "sneaky"); !ok {
		t.Fatalf("expected reconcile after version moved")
	}
}

// TestSetBurstOfReadsChecksOnce: expiry is pushed forward before the check.
func TestSetBurstOfReadsChecksOnce(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	clk := newFakeClock()
	s := newTestSet(t, "burst", st, clk, nil)

	for i := 0; i < 50; i++ {
		if _, err := s.Contains(ctx, "x"); err != nil {
			t.Fatal(err)
		}
	}
	if st.gets != 1 {
		t.Fatalf("expected a single version check, got %d", st.gets)
	}
}

// TestSetRefreshNeverWrites: reconciliation is read-only, so the shared
// version is untouched by any number of refreshes.
func TestSetRefreshNeverWrites(t *testing.T) {
	ctx := context.Background()
	st := local.New()
	s := newTestSet(t, "ro", st, newFakeClock(), nil)
	if err := s.Add(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	v := storedVersion(t, st, s.VersionKey())
	for i := 0; i < 3; i++ {
		if err := s.Refresh(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if got := storedVersion(t, st, s.VersionKey()); got != v {
		t.Fatalf("refresh changed version %d -> %d", v, got)
	}
	if s.rf.version != v {
		t.Fatalf("local version %d, want %d", s.rf.version, v)
	}
}

// TestSetVersionMonotonic: the stored counter never decreases.
func TestSetVersionMonotonic(t *testing.T) {
	ctx := context.Background()
	st := local.New()
	s := newTestSet(t, "mono", st, newFakeClock(), nil)

	last := storedVersion(t, st, s.VersionKey())
	steps := []func() error{
		func() error { return s.Add(ctx, "a") },
		func() error { return s.Update(ctx, "b", "c") },
		func() error { return s.Discard(ctx, "zzz") },
		func() error { return s.Remove(ctx, "a") },
		func() error { return s.Refresh(ctx) },
		func() error { return s.Clear(ctx) },
		func() error { return s.Add(ctx, "d") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		v := storedVersion(t, st, s.VersionKey())
		if v < last {
			t.Fatalf("step %d: version decreased %d -> %d", i, last, v)
		}
		last = v
	}
}

// ==============================
// Operations
// ==============================

func TestSetDiscardIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestSet(t, "disc", local.New(), newFakeClock(), nil)
	if err := s.Update(ctx, "keep", "remove"); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ctx, "remove"); err != nil {
		t.Fatal(err)
	}
	if err := s.Discard(ctx, "not_exist"); err != nil {
		t.Fatalf("discard of absent member: %v", err)
	}
	got, err := s.Members(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "keep" {
		t.Fatalf("members=%v", got)
	}
}

func TestSetUpdateEmptyIsNoop(t *testing.T) {
	st := newCountingStore()
	s := newTestSet(t, "noop", st, newFakeClock(), nil)
	if err := s.Update(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st.roundTrips() != 0 {
		t.Fatalf("empty Update made %d round trips", st.roundTrips())
	}
}

func TestSetUpdateIsOneRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	s := newTestSet(t, "batch", st, newFakeClock(), nil)
	if err := s.Update(ctx, "a", "b", "c"); err != nil {
		t.Fatal(err)
	}
	if st.batches != 1 {
		t.Fatalf("Update used %d batches", st.batches)
	}
	if v := storedVersion(t, st, s.VersionKey()); v != 1 {
		t.Fatalf("Update should bump version once, got %d", v)
	}
}

// TestSetWriteFailureLeavesMirror: a failed write is never locally visible.
func TestSetWriteFailureLeavesMirror(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	hooks := &recordingHooks{}
	s := newTestSet(t, "fail", st, newFakeClock(), func(o *SetOptions[string]) { o.Hooks = hooks })
	if err := s.Add(ctx, "present"); err != nil {
		t.Fatal(err)
	}
	if err := s.Sync(ctx); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	st.fail = boom
	if err := s.Add(ctx, "new"); !errors.Is(err, boom) {
		t.Fatalf("Add error: %v", err)
	}
	if err := s.Discard(ctx, "present"); !errors.Is(err, boom) {
		t.Fatalf("Discard error: %v", err)
	}
	if err := s.Clear(ctx); !errors.Is(err, boom) {
		t.Fatalf("Clear error: %v", err)
	}
	if ok, _ := s.Contains(ctx, "new"); ok {
		t.Fatalf("failed Add leaked into mirror")
	}
	if ok, _ := s.Contains(ctx, "present"); !ok {
		t.Fatalf("failed Discard removed local member")
	}
	if strings.Join(hooks.writeOps, ",") != "add,discard,clear" {
		t.Fatalf("write hooks: %v", hooks.writeOps)
	}
}

// TestSetNeverSyncedRetriesAfterFailure: a failed first reconcile does not
// leave an empty, untrusted mirror serving reads.
func TestSetNeverSyncedRetriesAfterFailure(t *testing.T) {
	ctx := context.Background()
	st := newCountingStore()
	_ = st.Store.SAdd(ctx, "{retry}:value", "a")
	_, _ = st.Store.Incr(ctx, "{retry}:version")
	s := newTestSet(t, "retry", st, newFakeClock(), nil)

	st.fail = errors.New("down")
	if _, err := s.Contains(ctx, "a"); err == nil {
		t.Fatalf("expected error while store is down")
	}
	st.fail = nil
	ok, err := s.Contains(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("expected retry on next read: ok=%v err=%v", ok, err)
	}
}

func TestSetUnparsableVersionTreatedAsZero(t *testing.T) {
	ctx := context.Background()
	st := local.New()
	hooks := &recordingHooks{}
	s := newTestSet(t, "garbage", st, newFakeClock(), func(o *SetOptions[string]) { o.Hooks = hooks })
	if _, err := st.Set(ctx, s.VersionKey(), "not-a-number", false); err != nil {
		t.Fatal(err)
	}
	if err := s.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if s.rf.version != 0 {
		t.Fatalf("version=%d want 0", s.rf.version)
	}
	if hooks.parseErrors == 0 {
		t.Fatalf("expected VersionParseError hook")
	}
}

// TestSetDifference covers mirrored and plain operands.
func TestSetDifference(t *testing.T) {
	ctx := context.Background()
	st := local.New()
	clk := newFakeClock()
	set1 := newTestSet(t, "test_set", st, clk, nil)
	set2 := newTestSet(t, "test_set2", st, clk, nil)

	if err := set1.Update(ctx, "a", "b", "c", "d"); err != nil {
		t.Fatal(err)
	}
	// written by another instance so set2 only learns it through Sync
	other := newTestSet(t, "test_set2", st, clk, nil)
	if err := other.Update(ctx, "b", "c", "d", "e"); err != nil {
		t.Fatal(err)
	}

	got, err := set1.Difference(ctx, set2)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(got) != "[a]" {
		t.Fatalf("mirror difference=%v want [a]", got)
	}

	got, err = set1.Difference(ctx, NewLocalSet("b", "c", "d"))
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(got) != "[a]" {
		t.Fatalf("local difference=%v want [a]", got)
	}
}

func TestSetLenAndRange(t *testing.T) {
	ctx := context.Background()
	s := newTestSet(t, "len", local.New(), newFakeClock(), nil)
	if n, _ := s.Len(ctx); n != 0 {
		t.Fatalf("len=%d", n)
	}
	_ = s.Add(ctx, "a")
	_ = s.Add(ctx, "b")
	_ = s.Discard(ctx, "a")
	_ = s.Add(ctx, "c")
	if n, _ := s.Len(ctx); n != 2 {
		t.Fatalf("len=%d want 2", n)
	}
	seen := 0
	if err := s.Range(ctx, func(string) bool { seen++; return false }); err != nil {
		t.Fatal(err)
	}
	if seen != 1 {
		t.Fatalf("Range should stop when fn returns false, saw %d", seen)
	}
}

// TestSetTypedMembers: members are stored by their encoding.
func TestSetTypedMembers(t *testing.T) {
	ctx := context.Background()
	st := local.New()
	hooks := &recordingHooks{}
	s, err := NewSet(ctx, SetOptions[int]{Name: "ids", Store: st, Codec: codec.Int[int]{}, Hooks: hooks})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Update(ctx, 123, 456); err != nil {
		t.Fatal(err)
	}
	raw, _ := st.SMembers(ctx, s.ValueKey())
	if strings.Join(raw, ",") != "123,456" {
		t.Fatalf("stored members=%v", raw)
	}
	if ok, _ := s.Contains(ctx, 123); !ok {
		t.Fatalf("expected 123")
	}
	if ok, _ := s.Contains(ctx, 999); ok {
		t.Fatalf("unexpected 999")
	}

	// a foreign, undecodable member is skipped when listing
	_ = st.SAdd(ctx, s.ValueKey(), "not-an-int")
	if err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	got, err := s.Members(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(got) != "[123 456]" || hooks.decodeErrs != 1 {
		t.Fatalf("members=%v decodeErrs=%d", got, hooks.decodeErrs)
	}
}

func TestSetString(t *testing.T) {
	ctx := context.Background()
	s := newTestSet(t, "test_set", local.New(), newFakeClock(), nil)
	_ = s.Update(ctx, "a", "b", "c")
	str := s.String()
	for _, want := range []string{"Set", "{test_set}:value", "{test_set}:version", "[a b c]"} {
		if !strings.Contains(str, want) {
			t.Fatalf("String()=%q missing %q", str, want)
		}
	}

	big := make([]string, 150)
	for i := range big {
		big[i] = fmt.Sprintf("item_%d", i)
	}
	_ = s.Update(ctx, big...)
	if str := s.String(); !strings.Contains(str, "too many values") {
		t.Fatalf("String() should truncate, got %q", str)
	}
	if ok, _ := s.Contains(ctx, "item_149"); !ok {
		t.Fatalf("String() must not affect contents")
	}
}

// TestSetMapMembersDedupByEncoding: equal map values must encode to the same
// member, whatever Go's map iteration order.
func TestSetMapMembersDedupByEncoding(t *testing.T) {
	ctx := context.Background()
	s, err := NewSet(ctx, SetOptions[map[string]int]{
		Name:  "map_members",
		Store: local.New(),
		Codec: codec.Msgpack[map[string]int]{},
	})
	if err != nil {
		t.Fatal(err)
	}
	build := func() map[string]int {
		m := make(map[string]int, 8)
		for i, k := range []string{"h", "g", "f", "e", "d", "c", "b", "a"} {
			m[k] = i
		}
		return m
	}
	for i := 0; i < 20; i++ {
		if err := s.Add(ctx, build()); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := s.Len(ctx); n != 1 {
		t.Fatalf("same map added 20 times, Len=%d", n)
	}
	for i := 0; i < 50; i++ {
		if ok, err := s.Contains(ctx, build()); err != nil || !ok {
			t.Fatalf("Contains #%d: ok=%v err=%v", i, ok, err)
		}
	}
}
