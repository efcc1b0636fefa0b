// Package documents stores files attached to spaces and chats on the local
// filesystem under <root>/spaces/<space>/...
package documents

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ragchat/internal/core"
)

const (
	spacesDir       = "spaces"
	sharedDocsDir   = "shared_documents"
	chatsDir        = "chats"
	dirPermissions  = 0o755
	filePermissions = 0o644
)

// Scope selects where an uploaded file goes.
type Scope struct {
	SpaceID    string
	ChatID     string
	AddToSpace bool
}

// Listing holds the file names visible to a space and one of its chats.
type Listing struct {
	SpaceDocs []string `json:"space_docs"`
	ChatDocs  []string `json:"chat_docs"`
}

// Store reads and writes documents below a root directory.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir. The directory is created lazily.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Save writes r to the scope's folder and returns the written paths.
// AddToSpace writes only to the space's shared documents even when a chat
// is given. Without AddToSpace and without a chat nothing is written.
func (s *Store) Save(scope Scope, filename string, r io.Reader) ([]string, error) {
	if err := validComponent("space_id", scope.SpaceID); err != nil {
		return nil, err
	}
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(filename, "\\", "/")))
	if err := validComponent("filename", name); err != nil {
		return nil, err
	}

	var dir string
	switch {
	case scope.AddToSpace:
		dir = s.spaceDocsDir(scope.SpaceID)
	case scope.ChatID != "":
		if err := validComponent("chat_id", scope.ChatID); err != nil {
			return nil, err
		}
		dir = s.chatDir(scope.SpaceID, scope.ChatID)
	default:
		return []string{}, nil
	}

	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, core.NewInternalError("failed to create document directory: "+err.Error(), err)
	}

	path := filepath.Join(dir, name)
	if err := writeFile(path, r); err != nil {
		return nil, core.NewInternalError("failed to save document: "+err.Error(), err)
	}
	return []string{path}, nil
}

func writeFile(path string, r io.Reader) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	_, err = io.Copy(f, r)
	return err
}

// List returns the regular files of the space's shared documents and, when
// chatID is also given, of the chat folder. Names are sorted; missing
// folders produce empty lists.
func (s *Store) List(spaceID, chatID string) (Listing, error) {
	out := Listing{SpaceDocs: []string{}, ChatDocs: []string{}}
	if spaceID == "" {
		return out, nil
	}
	if err := validComponent("space_id", spaceID); err != nil {
		return out, err
	}

	var err error
	if out.SpaceDocs, err = listFiles(s.spaceDocsDir(spaceID)); err != nil {
		return out, err
	}

	if chatID != "" {
		if err := validComponent("chat_id", chatID); err != nil {
			return out, err
		}
		if out.ChatDocs, err = listFiles(s.chatDir(spaceID, chatID)); err != nil {
			return out, err
		}
	}
	return out, nil
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, core.NewInternalError("failed to list documents: "+err.Error(), err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// DeleteSpace removes the space and everything below it. found is false
// when there was nothing to delete.
func (s *Store) DeleteSpace(spaceID string) (found bool, err error) {
	if err := validComponent("space_id", spaceID); err != nil {
		return false, err
	}
	return removeTree(filepath.Join(s.root, spacesDir, spaceID))
}

// DeleteChat removes one chat folder of a space. found is false when there
// was nothing to delete.
func (s *Store) DeleteChat(spaceID, chatID string) (found bool, err error) {
	if err := validComponent("space_id", spaceID); err != nil {
		return false, err
	}
	if err := validComponent("chat_id", chatID); err != nil {
		return false, err
	}
	return removeTree(s.chatDir(spaceID, chatID))
}

func removeTree(path string) (bool, error) {
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, core.NewInternalError("failed to stat "+path+": "+err.Error(), err)
	}
	if err := os.RemoveAll(path); err != nil {
		return true, core.NewInternalError("failed to delete "+path+": "+err.Error(), err)
	}
	return true, nil
}

func (s *Store) spaceDocsDir(spaceID string) string {
	return filepath.Join(s.root, spacesDir, spaceID, sharedDocsDir)
}

func (s *Store) chatDir(spaceID, chatID string) string {
	return filepath.Join(s.root, spacesDir, spaceID, chatsDir, chatID)
}

// validComponent rejects values that would escape their parent directory.
func validComponent(field, v string) error {
	switch {
	case strings.TrimSpace(v) == "":
		return core.NewInvalidRequestError(field+" is required", nil)
	case v == "." || v == "..":
		return core.NewInvalidRequestError(fmt.Sprintf("invalid %s: %q", field, v), nil)
	case strings.ContainsAny(v, `/\`+"\x00"):
		return core.NewInvalidRequestError(fmt.Sprintf("invalid %s: %q", field, v), nil)
	}
	return nil
}
