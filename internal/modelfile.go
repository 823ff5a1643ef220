package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// modelFileVersion is written to every model set file.
const modelFileVersion = "1"

// ModelSet is the on-disk model configuration set
type ModelSet struct {
	Version   string               `yaml:"version"`
	NextID    int                  `yaml:"next_id"`
	UpdatedAt time.Time            `yaml:"updated_at,omitempty"`
	Models    []ModelConfiguration `yaml:"models"`
}

// ModelFileManager loads and saves the model set YAML file
type ModelFileManager struct {
	path string
}

// NewModelFileManager creates a manager for the file at path
func NewModelFileManager(path string) *ModelFileManager {
	return &ModelFileManager{path: path}
}

// Path returns the model set file path
func (m *ModelFileManager) Path() string {
	return m.path
}

// DefaultModelSet is used when no model file exists yet: a single model
// using the first catalog entry.
func DefaultModelSet() *ModelSet {
	first := NewModelConfiguration(Catalog[0].Label, Catalog[0].Value)
	first.ID = 0
	return &ModelSet{Version: modelFileVersion, NextID: 1, Models: []ModelConfiguration{first}}
}

// Load reads the model set. A missing file yields DefaultModelSet.
func (m *ModelFileManager) Load() (*ModelSet, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		LogDebug("No model file at %s, using defaults", m.path)
		return DefaultModelSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var set ModelSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, &ParseError{Source: "models", Key: m.path, Err: err}
	}
	for _, mc := range set.Models {
		if mc.ID >= set.NextID {
			set.NextID = mc.ID + 1
		}
	}
	return &set, nil
}

// Save writes the model set, creating the parent directory if needed.
func (m *ModelFileManager) Save(set *ModelSet) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}
	set.Version = modelFileVersion
	set.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	data, err := yaml.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to marshal model set: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}

// LoadInto reads the file into store.
func (m *ModelFileManager) LoadInto(store *Store) error {
	set, err := m.Load()
	if err != nil {
		return err
	}
	store.SetModels(set.Models, set.NextID)
	return nil
}

// SaveFrom writes store's current model set.
func (m *ModelFileManager) SaveFrom(store *Store) error {
	return m.Save(&ModelSet{
		NextID: store.NextModelID(),
		Models: store.Models(),
	})
}
