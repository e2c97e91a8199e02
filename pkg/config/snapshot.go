package config

import "sync/atomic"

// Snapshot holds the active configuration. Handlers Load once per event and
// use that value throughout; a reload replaces the whole *Config at once.
// A stored *Config must not be mutated afterwards.
type Snapshot struct {
	p atomic.Pointer[Config]
}

func NewSnapshot(cfg *Config) *Snapshot {
	s := &Snapshot{}
	s.p.Store(cfg)
	return s
}

func (s *Snapshot) Load() *Config {
	return s.p.Load()
}

// Swap installs cfg and returns the previous configuration.
func (s *Snapshot) Swap(cfg *Config) *Config {
	return s.p.Swap(cfg)
}
