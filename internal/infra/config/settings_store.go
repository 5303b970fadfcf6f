package config

import (
	"sync"

	"landowebtool/internal/domain"
)

// SettingsStore holds the live tool settings. It implements domain.SettingsProvider
// and notifies subscribers after each Update.
type SettingsStore struct {
	mu        sync.RWMutex
	settings  domain.Settings
	listeners []func(domain.Settings)
}

var _ domain.SettingsProvider = (*SettingsStore)(nil)

// NewSettingsStore creates a store seeded with s.
func NewSettingsStore(s domain.Settings) *SettingsStore {
	return &SettingsStore{settings: s}
}

// Settings returns the current snapshot.
func (st *SettingsStore) Settings() domain.Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.settings
}

// Update applies fn to a copy of the settings, stores the normalized result and
// calls every subscriber with it.
func (st *SettingsStore) Update(fn func(*domain.Settings)) domain.Settings {
	st.mu.Lock()
	next := st.settings
	fn(&next)
	next = next.Normalize()
	st.settings = next
	listeners := append([]func(domain.Settings){}, st.listeners...)
	st.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return next
}

// Subscribe registers fn to run after every Update.
func (st *SettingsStore) Subscribe(fn func(domain.Settings)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.listeners = append(st.listeners, fn)
}
