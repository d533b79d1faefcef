// Package audio manages the on-disk audio artifacts owned by recordings and
// chat turns.
package audio

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const maxNameAttempts = 1000

// Dir is a directory of audio artifacts. Every artifact written through it
// gets a name no other artifact in the directory has.
type Dir struct {
	path string

	mu sync.Mutex
}

func NewDir(path string) *Dir {
	if path == "" {
		path = filepath.Join("recordings", "audio")
	}
	return &Dir{path: path}
}

func (d *Dir) Path() string {
	return d.path
}

// Join returns the path of name inside the directory.
func (d *Dir) Join(name string) string {
	return filepath.Join(d.path, name)
}

// Write stores r under name, or under name with a _<n> suffix before the
// extension if name is taken. It returns the path actually written.
func (d *Dir) Write(name string, r io.Reader) (string, error) {
	f, err := d.Create(name)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write artifact %s: %w", filepath.Base(f.Name()), err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close artifact %s: %w", filepath.Base(f.Name()), err)
	}
	return f.Name(), nil
}

// Create opens a new, empty artifact using the same naming rule as Write.
// The caller owns the returned file.
func (d *Dir) Create(name string) (*os.File, error) {
	if name == "" || name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid artifact name %q", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return nil, fmt.Errorf("create audio directory: %w", err)
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = stem + "_" + strconv.Itoa(i) + ext
		}
		f, err := os.OpenFile(d.Join(candidate), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create artifact %s: %w", candidate, err)
		}
	}
	return nil, fmt.Errorf("create artifact %s: no free name", name)
}

// Remove deletes the artifact at path. A file that is already gone is not
// an error.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove artifact %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Exists reports whether path names a regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
