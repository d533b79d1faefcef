package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// JSONCollection keeps the whole list in one JSON document of the form
// {"<key>": [...]}. Every mutation rewrites the document through a temp file
// and a rename, so readers never see a half-written file.
type JSONCollection[T any] struct {
	path string
	key  string
	idOf func(T) string
}

func NewJSONCollection[T any](path, key string, idOf func(T) string) *JSONCollection[T] {
	return &JSONCollection[T]{path: path, key: key, idOf: idOf}
}

func (c *JSONCollection[T]) All(_ context.Context) ([]T, error) {
	return c.load()
}

func (c *JSONCollection[T]) Get(_ context.Context, id string) (T, bool, error) {
	var zero T
	items, err := c.load()
	if err != nil {
		return zero, false, err
	}
	for _, item := range items {
		if c.idOf(item) == id {
			return item, true, nil
		}
	}
	return zero, false, nil
}

func (c *JSONCollection[T]) Prepend(_ context.Context, _ string, item T) error {
	items, err := c.load()
	if err != nil {
		return err
	}
	return c.save(append([]T{item}, items...))
}

func (c *JSONCollection[T]) Delete(_ context.Context, id string) (bool, error) {
	items, err := c.load()
	if err != nil {
		return false, err
	}

	kept := make([]T, 0, len(items))
	for _, item := range items {
		if c.idOf(item) != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(items) {
		return false, nil
	}
	return true, c.save(kept)
}

func (c *JSONCollection[T]) load() ([]T, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", filepath.Base(c.path), err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(c.path), err)
	}

	items := []T{}
	if raw, ok := doc[c.key]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("parse %s %s: %w", filepath.Base(c.path), c.key, err)
		}
	}
	return items, nil
}

func (c *JSONCollection[T]) save(items []T) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string][]T{c.key: items}); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(c.path), err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(c.path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(c.path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(c.path), err)
	}

	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(c.path), err)
	}
	return nil
}
