package config

import (
	"sync/atomic"
)

// Store holds the current config snapshot. Readers never lock, writers swap
// the whole snapshot at once.
type Store struct {
	current atomic.Pointer[AppConfig]
}

func NewStore(cfg *AppConfig) *Store {
	store := &Store{}
	store.MakeCurrent(cfg)
	return store
}

// Current returns the snapshot active at call time. It must not be modified.
func (s *Store) Current() *AppConfig {
	return s.current.Load()
}

// MakeCurrent installs a copy of cfg as the current snapshot
func (s *Store) MakeCurrent(cfg *AppConfig) {
	if cfg == nil {
		cfg = Default()
	}
	s.current.Store(cfg.Clone())
}

var defaultStore = NewStore(Default())

// DefaultStore returns the process wide store
func DefaultStore() *Store {
	return defaultStore
}

func Current() *AppConfig {
	return defaultStore.Current()
}

func MakeCurrent(cfg *AppConfig) {
	defaultStore.MakeCurrent(cfg)
}
