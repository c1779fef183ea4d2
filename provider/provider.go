// Package provider defines the in-process memo used in front of the shared
// store for values that never change once assigned (see uniqueid).
//
// Implementations must return exactly the bytes passed to Set. A miss is never
// an error: callers fall back to the shared store.
package provider

import (
	"context"
	"time"
)

// Provider is a bounded local byte cache. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for at most ttl (0 = no expiry, if supported).
	// ok=false means the cache declined the entry under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}
