package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// File stores the session credential as a JSON document on disk so it
// survives between runs of the client.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile constructs a file store for the specified path. The directory is
// created if it doesn't exist.
func NewFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating credential dir: %w", err)
	}

	return &File{path: path}, nil
}

// Load reads the credential from disk if one is present and not expired.
func (f *File) Load(now time.Time) (Credential, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return Credential{}, false
	}

	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return Credential{}, false
	}

	if !c.Valid(now) {
		return Credential{}, false
	}

	return c, true
}

// Save writes the credential to disk, replacing what was there.
func (f *File) Save(c Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing credential: %w", err)
	}

	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replacing credential: %w", err)
	}

	return nil
}

// Clear removes the credential from disk.
func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
