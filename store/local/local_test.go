package local

import (
	"context"
	"errors"
	"testing"

	"github.com/unkn0wn-root/hotmirror/store"
)

func TestScalarOps(t *testing.T) {
	ctx := context.Background()
	s := New()
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("Get miss expected, ok=%v err=%v", ok, err)
	}
	for want := int64(1); want <= 3; want++ {
		n, err := s.Incr(ctx, "k")
		if err != nil || n != want {
			t.Fatalf("Incr got=%d err=%v want %d", n, err, want)
		}
	}
	if v, ok, _ := s.Get(ctx, "k"); !ok || v != "3" {
		t.Fatalf("Get after Incr: %q ok=%v", v, ok)
	}
	if ok, _ := s.Set(ctx, "k", "9", true); ok {
		t.Fatalf("Set NX on existing key should not write")
	}
	if ok, _ := s.Set(ctx, "fresh", "1", true); !ok {
		t.Fatalf("Set NX on missing key should write")
	}
	if _, err := s.Set(ctx, "bad", "x", false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Incr(ctx, "bad"); !errors.Is(err, ErrNotInteger) {
		t.Fatalf("Incr on non-integer: %v", err)
	}
}

func TestSetAndHashOps(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.SAdd(ctx, "s", "a", "b", "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.SRem(ctx, "s", "b", "missing"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.SMembers(ctx, "s")
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("SMembers=%v", got)
	}

	if err := s.HSet(ctx, "h", "f", "v"); err != nil {
		t.Fatal(err)
	}
	if err := s.HDel(ctx, "h", "nope"); err != nil {
		t.Fatal(err)
	}
	h, _ := s.HGetAll(ctx, "h")
	if len(h) != 1 || h["f"] != "v" {
		t.Fatalf("HGetAll=%v", h)
	}
	h["f"] = "mutated"
	if h2, _ := s.HGetAll(ctx, "h"); h2["f"] != "v" {
		t.Fatalf("HGetAll must return a copy")
	}

	if err := s.HSet(ctx, "s", "f", "v"); !errors.Is(err, ErrWrongType) {
		t.Fatalf("HSet on set key: %v", err)
	}
	if err := s.Del(ctx, "s", "h"); err != nil {
		t.Fatal(err)
	}
	if m, _ := s.SMembers(ctx, "s"); len(m) != 0 {
		t.Fatalf("set survived Del: %v", m)
	}
}

func TestPipelinedResultsInCallOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	var (
		v1, v2  *store.IntResult
		ver     *store.StringResult
		members *store.MembersResult
	)
	err := s.Pipelined(ctx, func(p store.Pipeliner) error {
		p.SAdd("{x}:value", "a", "b")
		v1 = p.Incr("{x}:version")
		v2 = p.Incr("{x}:version")
		ver = p.Get("{x}:version")
		members = p.SMembers("{x}:value")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if v1.Val() != 1 || v2.Val() != 2 {
		t.Fatalf("incr results %d,%d", v1.Val(), v2.Val())
	}
	if v, ok := ver.Val(); !ok || v != "2" {
		t.Fatalf("get in pipeline = %q ok=%v", v, ok)
	}
	if len(members.Val()) != 2 {
		t.Fatalf("members=%v", members.Val())
	}
}

func TestPipelinedAbortsOnCallbackError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.Pipelined(ctx, func(p store.Pipeliner) error {
		p.Incr("n")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if _, ok, _ := s.Get(ctx, "n"); ok {
		t.Fatalf("aborted batch must not execute")
	}
}

func TestPipelinedFailureLeavesResultsUnfilled(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Set(ctx, "str", "x", false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Set(ctx, "{x}:version", "7", false); err != nil {
		t.Fatal(err)
	}

	var ver *store.StringResult
	err := s.Pipelined(ctx, func(p store.Pipeliner) error {
		ver = p.Get("{x}:version")
		p.SAdd("str", "a") // wrong type
		return nil
	})
	if !errors.Is(err, ErrWrongType) {
		t.Fatalf("err=%v", err)
	}
	if v, ok := ver.Val(); ok || v != "" {
		t.Fatalf("failed batch filled a result: %q ok=%v", v, ok)
	}
}

func TestClosedStoreRejects(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Close(ctx)
	if _, err := s.Incr(ctx, "n"); !errors.Is(err, ErrClosed) {
		t.Fatalf("err=%v", err)
	}
}
