// Package backup copies the history documents, or a snapshot of the
// history database, to a Google Drive folder.
package backup

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// remote stores whole files in one folder.
type remote interface {
	Create(ctx context.Context, name string, r io.Reader) (string, error)
	Update(ctx context.Context, fileID string, r io.Reader) error
}

type driveRemote struct {
	service  *drive.Service
	folderID string
}

func (d *driveRemote) Create(ctx context.Context, name string, r io.Reader) (string, error) {
	f, err := d.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: "application/octet-stream",
		Parents:  []string{d.folderID},
	}).Media(r).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive create: %w", err)
	}
	return f.Id, nil
}

func (d *driveRemote) Update(ctx context.Context, fileID string, r io.Reader) error {
	if _, err := d.service.Files.Update(fileID, &drive.File{}).Media(r).Context(ctx).Do(); err != nil {
		return fmt.Errorf("drive update: %w", err)
	}
	return nil
}

// Source is one backed-up file. Open returns its current contents, or an
// error wrapping os.ErrNotExist when there is nothing to back up yet.
type Source struct {
	Name string
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// FileSource backs up the file at path as it is on disk.
func FileSource(path string) Source {
	return Source{
		Name: filepath.Base(path),
		Open: func(context.Context) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// SnapshotSource backs up a copy that snapshot writes to a temporary file on
// every sync. Use it for files that are unsafe to read while in use, such as
// a SQLite database in WAL mode.
func SnapshotSource(name string, snapshot func(ctx context.Context, dst string) error) Source {
	return Source{
		Name: name,
		Open: func(ctx context.Context) (io.ReadCloser, error) {
			dir, err := os.MkdirTemp("", "murmur-backup-*")
			if err != nil {
				return nil, fmt.Errorf("create snapshot dir: %w", err)
			}
			path := filepath.Join(dir, name)
			if err := snapshot(ctx, path); err != nil {
				_ = os.RemoveAll(dir)
				return nil, err
			}
			f, err := os.Open(path)
			if err != nil {
				_ = os.RemoveAll(dir)
				return nil, err
			}
			return &tempFile{File: f, dir: dir}, nil
		},
	}
}

// tempFile removes its directory when closed.
type tempFile struct {
	*os.File
	dir string
}

func (f *tempFile) Close() error {
	err := f.File.Close()
	if rmErr := os.RemoveAll(f.dir); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

type fileState struct {
	id  string
	sum [sha256.Size]byte
}

// Syncer uploads a fixed set of sources, creating each remote copy once and
// updating it afterwards. Sources whose contents have not changed since the
// last upload are skipped.
type Syncer struct {
	remote  remote
	sources []Source

	mu    sync.Mutex
	state map[string]fileState
}

func NewSyncer(ctx context.Context, credPath, folderID string, sources []Source) (*Syncer, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return newSyncer(&driveRemote{service: svc, folderID: folderID}, sources), nil
}

func newSyncer(r remote, sources []Source) *Syncer {
	return &Syncer{
		remote:  r,
		sources: append([]Source(nil), sources...),
		state:   make(map[string]fileState),
	}
}

// Sync uploads every changed source. Missing files are skipped. It returns
// the number of files uploaded.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	uploaded := 0
	for _, src := range s.sources {
		ok, err := s.syncOne(ctx, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			continue
		}
		if ok {
			uploaded++
		}
	}
	return uploaded, errors.Join(errs...)
}

func (s *Syncer) syncOne(ctx context.Context, src Source) (bool, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open: %w", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return false, fmt.Errorf("read: %w", err)
	}

	sum := sha256.Sum256(data)
	prev, known := s.state[src.Name]
	if known && prev.sum == sum {
		return false, nil
	}

	id := prev.id
	if known {
		if err := s.remote.Update(ctx, id, bytes.NewReader(data)); err != nil {
			return false, err
		}
	} else {
		id, err = s.remote.Create(ctx, "murmur-"+src.Name, bytes.NewReader(data))
		if err != nil {
			return false, err
		}
	}

	s.state[src.Name] = fileState{id: id, sum: sum}
	return true, nil
}

// Run syncs every interval until ctx is done, and once more on the way out.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.syncAndLog(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			s.syncAndLog(ctx)
		}
	}
}

func (s *Syncer) syncAndLog(ctx context.Context) {
	n, err := s.Sync(ctx)
	if err != nil {
		slog.Warn("backup: drive sync failed", "error", err)
	}
	if n > 0 {
		slog.Info("backup: drive sync complete", "uploaded", n)
	}
}
