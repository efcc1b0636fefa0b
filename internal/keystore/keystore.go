// Package keystore persists the gateway's provider API keys in a dotenv file.
package keystore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"

	"ragchat/internal/core"
)

// Environment variable names under which keys are stored.
const (
	GoogleKeyName = "GOOGLE_API_KEY"
	OpenAIKeyName = "OPENAI_API_KEY"
	GroqKeyName   = "GROQ_API_KEY"
)

// Keys holds the stored API keys. A nil field is unset on Load and left
// untouched on Save; an empty string on Save deletes the key.
type Keys struct {
	Google *string `json:"google"`
	OpenAI *string `json:"openai"`
	Groq   *string `json:"groq"`
}

// Store reads and writes keys in a dotenv file. Entries it does not manage
// are preserved.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

func (k Keys) fields() map[string]*string {
	return map[string]*string{
		GoogleKeyName: k.Google,
		OpenAIKeyName: k.OpenAI,
		GroqKeyName:   k.Groq,
	}
}

// Save merges keys into the file: non-empty values overwrite, empty values
// delete and nil values leave the stored key as is.
func (s *Store) Save(keys Keys) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.read()
	if err != nil {
		return err
	}

	for name, value := range keys.fields() {
		switch {
		case value == nil:
		case *value == "":
			delete(env, name)
		default:
			env[name] = *value
		}
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return core.NewInternalError("failed to create key file directory: "+err.Error(), err)
		}
	}
	if err := godotenv.Write(env, s.path); err != nil {
		return core.NewInternalError("failed to write key file: "+err.Error(), err)
	}
	return nil
}

// Load returns the stored keys. Missing and empty entries are nil.
func (s *Store) Load() (Keys, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.read()
	if err != nil {
		return Keys{}, err
	}
	return Keys{
		Google: lookup(env, GoogleKeyName),
		OpenAI: lookup(env, OpenAIKeyName),
		Groq:   lookup(env, GroqKeyName),
	}, nil
}

func (s *Store) read() (map[string]string, error) {
	env, err := godotenv.Read(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, core.NewInternalError("failed to read key file: "+err.Error(), err)
	}
	return env, nil
}

func lookup(env map[string]string, name string) *string {
	v, ok := env[name]
	if !ok || v == "" {
		return nil
	}
	return &v
}
