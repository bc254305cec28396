package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store holds the live settings. Reads are cheap copies; writes go back to
// the YAML file without the values that came from the environment.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  Config
}

func NewStore(path string, cfg Config) *Store {
	return &Store{path: path, cfg: cfg}
}

func (s *Store) Current() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the file and environment. The previous settings stay live
// when the new ones fail validation.
func (s *Store) Reload() (Config, error) {
	cfg, err := loadFile(s.path)
	if err != nil {
		return s.Current(), err
	}
	applyEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return s.Current(), err
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return cfg, nil
}

// Update applies mutate to the live settings and persists the same change to disk.
func (s *Store) Update(mutate func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	mutate(&next)
	if err := Validate(next); err != nil {
		return err
	}

	onDisk, err := loadFile(s.path)
	if err != nil {
		return err
	}
	mutate(&onDisk)
	if err := writeFile(s.path, onDisk); err != nil {
		return err
	}

	s.cfg = next
	return nil
}

func writeFile(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-*.yaml")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
