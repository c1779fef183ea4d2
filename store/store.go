// Package store defines the shared key-value store capability set the
// mirrored collections rely on.
//
// Keys are plain strings. Values travel as strings; a missing key is never an
// error (Get reports ok=false, SMembers/HGetAll report empty results).
// Implementations must route keys that share a cluster hash tag ("{name}:...")
// to the same partition so a batch touching them is a single round trip.
package store

import "context"

// Store is the capability set required from the shared store.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns (value, true, nil) on hit and ("", false, nil) on miss.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes value. With onlyIfAbsent, the write happens only when key is
	// missing and the return reports whether it did.
	Set(ctx context.Context, key, value string, onlyIfAbsent bool) (bool, error)
	// Incr atomically increments the integer at key (missing => 0) and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, keys ...string) error

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	HSet(ctx context.Context, key, field, value string) error
	HDel(ctx context.Context, key string, fields ...string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Pipelined queues the commands issued on p by fn and executes them as one
	// round trip. Result handles are filled in call order once Pipelined returns
	// without error. If fn returns an error nothing is sent.
	Pipelined(ctx context.Context, fn func(p Pipeliner) error) error

	// Close releases resources (no-op ok).
	Close(ctx context.Context) error
}

// Pipeliner queues commands for a single batched round trip.
type Pipeliner interface {
	Get(key string) *StringResult
	Set(key, value string, onlyIfAbsent bool) *BoolResult
	Incr(key string) *IntResult
	Del(keys ...string)

	SAdd(key string, members ...string)
	SRem(key string, members ...string)
	SMembers(key string) *MembersResult

	HSet(key, field, value string)
	HDel(key string, fields ...string)
	HGetAll(key string) *HashResult
}
