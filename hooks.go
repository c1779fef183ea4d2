package hotmirror

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The mirrors call them on hot paths.
type Hooks interface {
	// A full reconciliation replaced the local mirror.
	// size is the number of members (set) or fields (map) fetched.
	Reconciled(valueKey string, version int64, size int)

	// The cheap version check matched the local version; nothing was fetched.
	VersionUnchanged(valueKey string, version int64)

	// The stored version counter was not an integer and was treated as 0.
	VersionParseError(versionKey, raw string)

	// A stored member, key or value failed to decode and was skipped.
	DecodeError(valueKey string, err error)

	// A version check or reconciliation round trip failed.
	ReconcileError(valueKey string, err error)

	// A write-through round trip failed; the local mirror was left unchanged.
	// op ∈ {"add", "discard", "set", "delete", "clear"}
	WriteError(valueKey, op string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Reconciled(string, int64, int)    {}
func (NopHooks) VersionUnchanged(string, int64)   {}
func (NopHooks) VersionParseError(string, string) {}
func (NopHooks) DecodeError(string, error)        {}
func (NopHooks) ReconcileError(string, error)     {}
func (NopHooks) WriteError(string, string, error) {}
