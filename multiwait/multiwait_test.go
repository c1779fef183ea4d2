package multiwait

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/hotmirror/codec"
)

type job struct {
	ID   int    `json:"id"`
	Kind string `json:"kind"`
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options[job]{Lists: []string{"a"}})
	assert.ErrorIs(t, err, ErrNilClient)
	_, err = New(Options[job]{Client: redis.NewClient(&redis.Options{})})
	assert.ErrorIs(t, err, ErrNoLists)
}

func TestPushEncodesInOrder(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	c, err := New(Options[job]{Client: rdb, Lists: []string{"{jobs}:high", "{jobs}:low"}})
	require.NoError(t, err)

	require.NoError(t, c.Push(ctx, "{jobs}:low", job{ID: 1, Kind: "resize"}))
	require.NoError(t, c.Push(ctx, "{jobs}:low", job{ID: 2, Kind: "resize"}))

	got, err := mr.List("{jobs}:low")
	require.NoError(t, err)
	assert.Equal(t, []string{`{"id":1,"kind":"resize"}`, `{"id":2,"kind":"resize"}`}, got)
}

func TestDecodeDropsGarbage(t *testing.T) {
	c, err := New(Options[int]{
		Client: redis.NewClient(&redis.Options{}),
		Lists:  []string{"n"},
		Codec:  codec.Int[int]{},
	})
	require.NoError(t, err)

	got := c.decode("n", []string{"1", "x", "3"})
	assert.Equal(t, []int{1, 3}, got)
}
