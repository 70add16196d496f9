package config

import "sync"

// Holder is a concurrency-safe container for a reloadable Config.
type Holder struct {
	mu       sync.RWMutex
	cfg      *Config
	yamlPath string
}

// NewHolder wraps an already-loaded Config.
func NewHolder(cfg *Config, yamlPath string) *Holder {
	return &Holder{cfg: cfg, yamlPath: yamlPath}
}

// Get returns the current Config snapshot.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Reload re-runs the full load pipeline. On validation failure the
// previous Config is kept.
func (h *Holder) Reload() error {
	cfg, err := LoadFrom(h.yamlPath)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
	return nil
}
