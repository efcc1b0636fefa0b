// Package providerstore persists user-defined OpenAI-compatible providers as
// a JSON array file.
package providerstore

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"ragchat/internal/core"
)

// CustomProvider is one user-defined provider.
type CustomProvider struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	BaseURL string   `json:"baseUrl"`
	APIKey  string   `json:"apiKey"`
	Models  []string `json:"models"`
}

// Validate checks the fields every stored provider must carry.
func (p CustomProvider) Validate() error {
	switch {
	case p.ID == "":
		return core.NewInvalidRequestError("provider id is required", nil)
	case p.Name == "":
		return core.NewInvalidRequestError("provider name is required for "+p.ID, nil)
	case p.BaseURL == "":
		return core.NewInvalidRequestError("provider baseUrl is required for "+p.ID, nil)
	}
	return nil
}

// Store reads and writes the provider list.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the stored providers. A missing or unreadable file yields an
// empty list; corruption is logged rather than returned.
func (s *Store) Load() ([]CustomProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []CustomProvider{}, nil
		}
		return nil, core.NewInternalError("failed to read providers file: "+err.Error(), err)
	}

	var list []CustomProvider
	if err := json.Unmarshal(data, &list); err != nil {
		slog.Error("providers file is corrupt, ignoring it", "path", s.path, "error", err)
		return []CustomProvider{}, nil
	}
	return normalize(list), nil
}

// Save replaces the stored list with providers.
func (s *Store) Save(providers []CustomProvider) error {
	for _, p := range providers {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(normalize(providers), "", "  ")
	if err != nil {
		return core.NewInternalError("failed to encode providers: "+err.Error(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return core.NewInternalError("failed to create providers directory: "+err.Error(), err)
	}

	// Write atomically using temp file + rename
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return core.NewInternalError("failed to write providers file: "+err.Error(), err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return core.NewInternalError("failed to write providers file: "+err.Error(), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return core.NewInternalError("failed to write providers file: "+err.Error(), err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return core.NewInternalError("failed to replace providers file: "+err.Error(), err)
	}
	return nil
}

// normalize fills defaults so the file and API always carry "models": [].
func normalize(list []CustomProvider) []CustomProvider {
	out := make([]CustomProvider, len(list))
	for i, p := range list {
		if p.Models == nil {
			p.Models = []string{}
		}
		out[i] = p
	}
	return out
}
