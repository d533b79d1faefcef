package models

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Manager keeps weights files in a single cache directory and downloads
// missing ones on demand.
type Manager struct {
	dir    string
	client *http.Client

	// baseURL replaces huggingFaceBase when set; used by tests.
	baseURL string

	mu sync.Mutex
}

func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model cache dir: %w", err)
	}
	return &Manager{dir: dir, client: &http.Client{}}, nil
}

func (m *Manager) Dir() string {
	return m.dir
}

// Path returns where the weights file for w lives in the cache.
func (m *Manager) Path(w Weights) string {
	return filepath.Join(m.dir, w.Filename)
}

func (m *Manager) IsDownloaded(w Weights) bool {
	stat, err := os.Stat(m.Path(w))
	if err != nil {
		return false
	}
	return !stat.IsDir() && stat.Size() > 0
}

// Ensure returns the local path of the named weights, downloading them first
// if they are not cached yet.
func (m *Manager) Ensure(ctx context.Context, name string) (string, error) {
	w, ok := Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown whisper model %q", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsDownloaded(w) {
		return m.Path(w), nil
	}

	start := time.Now()
	slog.Info("models: downloading weights", "model", name, "file", w.Filename)
	if err := m.download(ctx, w); err != nil {
		return "", fmt.Errorf("download %s: %w", w.Filename, err)
	}
	slog.Info("models: weights ready", "model", name, "elapsed", time.Since(start).Round(time.Millisecond))

	return m.Path(w), nil
}

func (m *Manager) download(ctx context.Context, w Weights) error {
	destPath := m.Path(w)
	tmpPath := destPath + ".tmp"
	defer os.Remove(tmpPath)

	url := w.URL
	if m.baseURL != "" {
		url = m.baseURL + w.Filename
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %s", resp.Status)
	}

	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, destPath)
}
