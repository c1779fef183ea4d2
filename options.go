package hotmirror

import (
	"time"

	"github.com/unkn0wn-root/hotmirror/codec"
	"github.com/unkn0wn-root/hotmirror/store"
)

const (
	defaultRefreshInterval = 10 * time.Second

	// displayLimit caps how many elements String renders.
	displayLimit = 100
)

// SetOptions configure a mirrored set.
// Only Name, Store and Codec are required; others have sensible defaults.
type SetOptions[V any] struct {
	// Required
	Name  string // logical collection name; keys are "{Name}:value" and "{Name}:version"
	Store store.Store
	Codec codec.Codec[V]

	RefreshInterval time.Duration // staleness budget; <= 0 => 10s
	StartupInit     bool          // reconcile in the constructor; first expiry is jittered
	Logger          Logger        // if nil, NopLogger is used
	Hooks           Hooks         // if nil, NopHooks is used
}

// MapOptions configure a mirrored map.
// Only Name, Store, KeyCodec and ValueCodec are required.
type MapOptions[K, V any] struct {
	// Required
	Name       string
	Store      store.Store
	KeyCodec   codec.Codec[K]
	ValueCodec codec.Codec[V]

	RefreshInterval time.Duration // <= 0 => 10s
	StartupInit     bool
	Logger          Logger
	Hooks           Hooks
}

type common struct {
	name        string
	store       store.Store
	interval    time.Duration
	startupInit bool
	log         Logger
	hooks       Hooks
}

// validate checks the shared options before any store access.
func validate(name string, st store.Store, codecsSet bool) error {
	if name == "" {
		return ErrEmptyName
	}
	if st == nil {
		return ErrNilStore
	}
	if !codecsSet {
		return ErrNilCodec
	}
	return nil
}

func (c common) withDefaults() common {
	if c.interval <= 0 {
		c.interval = defaultRefreshInterval
	}
	c.log = coalesce[Logger](c.log, NopLogger{})
	c.hooks = coalesce[Hooks](c.hooks, NopHooks{})
	return c
}

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
