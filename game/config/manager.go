package config

import (
	"fmt"
	"os"
	"sync"
)

// Manager holds the active configuration
type Manager struct {
	current *Config
	path    string
	mu      sync.RWMutex
}

// NewManager creates a manager around cfg. A nil cfg means the defaults.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := *cfg
	return &Manager{current: &c}, nil
}

// Get returns a copy of the active configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.current
}

// Path returns the file the active configuration was loaded from, if any
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// Load reads and validates path and makes it the active configuration.
// The active configuration is unchanged on error.
func (m *Manager) Load(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = cfg
	m.path = path

	c := *cfg
	return &c, nil
}

// Update applies fn to a copy of the active configuration and keeps the
// result only if it validates.
func (m *Manager) Update(fn func(*Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := *m.current
	fn(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	m.current = &next
	return nil
}

// Save writes the active configuration to path in the format its extension
// selects.
func (m *Manager) Save(path string) error {
	cfg := m.Get()

	data, err := encode(path, &cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
