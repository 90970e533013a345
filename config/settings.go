package config

import "sync"

// SettingsStore is the runtime-mutable slice of configuration: the
// generation knobs an operator may tune through the admin endpoint
// without a restart.
//
// Consistency model: last write wins. Readers always get a complete
// snapshot, never a half-applied update, but there is no transactional
// guarantee across concurrent readers — a worker that read the old
// snapshot finishes its call with the old values.
type SettingsStore struct {
	mu  sync.RWMutex
	gen Generation
}

func NewSettingsStore(gen Generation) *SettingsStore {
	return &SettingsStore{gen: gen}
}

// Generation returns a snapshot copy of the current generation settings.
func (s *SettingsStore) Generation() Generation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// UpdateGeneration replaces the generation settings wholesale.
func (s *SettingsStore) UpdateGeneration(gen Generation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen = gen
}
