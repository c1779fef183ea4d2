// Package hotmirror keeps versioned local mirrors of shared collections.
// A Set or Map holds an in-memory copy of a set or hash living in a shared
// store (Redis, or the in-process store for single-process use) and serves
// reads from memory, trading strict consistency for latency.
//
// Keys (both share a cluster hash tag, so they live in one slot):
//
//	{<name>}:value    - the set or hash itself
//	{<name>}:version  - counter incremented by every write
//
// Read path: once the refresh interval has elapsed, a read first fetches only
// the version counter. If it matches the locally recorded version nothing else
// happens; otherwise version and full value are fetched in one batch and
// replace the mirror. Reconciliation never writes.
//
// Write path: the mutation and a version increment are sent in one batch; only
// after the store accepts them is the mirror updated. An instance therefore
// always reads its own writes, and other instances see them within one refresh
// interval.
//
//	users, _ := hotmirror.NewSet(ctx, hotmirror.SetOptions[string]{
//	    Name:            "watching_users",
//	    Store:           st, // e.g. redis.New(redis.Config{Client: rdb})
//	    Codec:           codec.String{},
//	    RefreshInterval: 5 * time.Second,
//	})
//	_ = users.Add(ctx, "123")
//	ok, _ := users.Contains(ctx, "123") // true, without a round trip
package hotmirror
