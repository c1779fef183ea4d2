// Package ristretto backs provider.Provider with a dgraph-io/ristretto cache.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"
	"github.com/unkn0wn-root/hotmirror/provider"
)

var _ provider.Provider = (*Provider)(nil)

type Provider struct {
	c         *rc.Cache
	// waitOnSet makes Set block until the entry is visible to Get.
	waitOnSet bool
}

type Config struct {
	NumCounters int64 // ~10x the expected number of entries
	MaxCost     int64
	BufferItems int64 // 64 unless profiling says otherwise
	Metrics     bool
	// WaitOnSet trades Set latency for read-after-write visibility.
	WaitOnSet   bool
}

// Defaults fit a memo of up to ~100k small ids.
func Defaults() Config {
	return Config{NumCounters: 1_000_000, MaxCost: 100_000, BufferItems: 64}
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, waitOnSet: cfg.WaitOnSet}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set uses cost 1 when cost <= 0 so MaxCost counts entries.
func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if cost <= 0 {
		cost = 1
	}
	ok := p.c.SetWithTTL(key, value, cost, ttl)
	if ok && p.waitOnSet {
		p.c.Wait()
	}
	return ok, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics is nil unless Config.Metrics was set.
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
