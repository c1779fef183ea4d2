package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/hotmirror/store"
)

func newTestStore(t *testing.T, tx bool) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s, err := New(Config{Client: rdb, CloseClient: true, Transactional: tx})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, mr
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestScalarAndCollectionOps(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, false)

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Incr(ctx, "{c}:version")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	wrote, err := s.Set(ctx, "nx", "1", true)
	require.NoError(t, err)
	assert.True(t, wrote)
	wrote, err = s.Set(ctx, "nx", "2", true)
	require.NoError(t, err)
	assert.False(t, wrote)

	require.NoError(t, s.SAdd(ctx, "{c}:value", "a", "b"))
	require.NoError(t, s.SRem(ctx, "{c}:value", "b"))
	require.NoError(t, s.SAdd(ctx, "{c}:value"))
	members, err := s.SMembers(ctx, "{c}:value")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a"}, members)

	require.NoError(t, s.HSet(ctx, "{m}:value", "k", "v"))
	require.NoError(t, s.HDel(ctx, "{m}:value", "absent"))
	h, err := s.HGetAll(ctx, "{m}:value")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k": "v"}, h)

	require.NoError(t, s.Del(ctx, "{m}:value"))
	assert.False(t, mr.Exists("{m}:value"))
}

func TestPipelinedFillsResultsAndIgnoresMiss(t *testing.T) {
	for _, tx := range []bool{false, true} {
		ctx := context.Background()
		s, _ := newTestStore(t, tx)

		var (
			ver     *store.StringResult
			members *store.MembersResult
			incr    *store.IntResult
		)
		err := s.Pipelined(ctx, func(p store.Pipeliner) error {
			ver = p.Get("{c}:version")
			members = p.SMembers("{c}:value")
			return nil
		})
		require.NoError(t, err, "tx=%v", tx)
		_, ok := ver.Val()
		assert.False(t, ok)
		assert.Empty(t, members.Val())

		err = s.Pipelined(ctx, func(p store.Pipeliner) error {
			p.SAdd("{c}:value", "x")
			incr = p.Incr("{c}:version")
			return nil
		})
		require.NoError(t, err)
		assert.EqualValues(t, 1, incr.Val())

		err = s.Pipelined(ctx, func(p store.Pipeliner) error {
			ver = p.Get("{c}:version")
			members = p.SMembers("{c}:value")
			return nil
		})
		require.NoError(t, err)
		v, ok := ver.Val()
		assert.True(t, ok)
		assert.Equal(t, "1", v)
		assert.Equal(t, []string{"x"}, members.Val())
	}
}

func TestPipelinedSurfacesCommandErrors(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, false)
	require.NoError(t, s.HSet(ctx, "h", "f", "v"))

	var miss *store.StringResult
	err := s.Pipelined(ctx, func(p store.Pipeliner) error {
		miss = p.Get("nope")
		p.SAdd("h", "wrong-type")
		return nil
	})
	require.Error(t, err)
	_, ok := miss.Val()
	assert.False(t, ok)
}

func TestStoreErrorsWhenServerDown(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	s, err := New(Config{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})})
	require.NoError(t, err)
	mr.Close()

	_, err = s.Incr(ctx, "k")
	assert.Error(t, err)
	err = s.Pipelined(ctx, func(p store.Pipeliner) error {
		p.Incr("k")
		return nil
	})
	assert.Error(t, err)
}
