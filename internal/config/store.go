package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pagecast/pagecast/internal/logger"
	"gopkg.in/yaml.v3"
)

// surfaceFile is the on-disk shape of the surface store.
type surfaceFile struct {
	Surfaces []SurfaceConfig `yaml:"surfaces"`
}

// Store persists the surface list. Saves go through a temp file and
// rename so a crash mid-write never truncates the store.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store at path. The file is not touched until the
// first Save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the store location.
func (s *Store) Path() string { return s.path }

// Load reads the surface list. A missing file is an empty list, not an
// error.
func (s *Store) Load() ([]SurfaceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readSurfaces(s.path)
}

// Save atomically replaces the surface list on disk.
func (s *Store) Save(list []SurfaceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeSurfaces(s.path, list); err != nil {
		return err
	}
	logger.WithComponent("store").Debug().
		Str("path", s.path).
		Int("surfaces", len(list)).
		Msg("Surface store saved")
	return nil
}

// ExportTo writes the current surface list to an external file.
func (s *Store) ExportTo(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := readSurfaces(s.path)
	if err != nil {
		return err
	}
	return writeSurfaces(path, list)
}

// ImportFrom replaces the store's contents with the surfaces read from
// an external file and returns them.
func (s *Store) ImportFrom(path string) ([]SurfaceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := readSurfaces(path)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if err := list[i].Validate(); err != nil {
			return nil, fmt.Errorf("import %s: %w", path, err)
		}
	}
	if err := writeSurfaces(s.path, list); err != nil {
		return nil, err
	}
	return list, nil
}

func readSurfaces(path string) ([]SurfaceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read surface store: %w", err)
	}

	var file surfaceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse surface store: %w", err)
	}
	return file.Surfaces, nil
}

func writeSurfaces(path string, list []SurfaceConfig) error {
	data, err := yaml.Marshal(surfaceFile{Surfaces: list})
	if err != nil {
		return fmt.Errorf("failed to marshal surface store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".surfaces-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp store: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp store: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace surface store: %w", err)
	}
	return nil
}
