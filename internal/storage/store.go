package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/sjawhar/murmur/internal/apperr"
	"github.com/sjawhar/murmur/internal/audio"
)

// store wraps a Collection with one mutex so each read-modify-write cycle
// runs alone.
type store[T any] struct {
	mu       sync.Mutex
	items    Collection[T]
	idOf     func(T) string
	notFound string
	onDelete func(T)
}

func (s *store[T]) LoadAll(ctx context.Context) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.All(ctx)
}

func (s *store[T]) InsertFront(ctx context.Context, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Prepend(ctx, s.idOf(item), item)
}

func (s *store[T]) FindByID(ctx context.Context, id string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok, err := s.items.Get(ctx, id)
	if err != nil {
		return item, err
	}
	if !ok {
		return item, apperr.NotFound(s.notFound)
	}
	return item, nil
}

// DeleteByID removes the item and then releases anything it owns on disk.
// It reports whether the id was present.
func (s *store[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok, err := s.items.Get(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	if _, err := s.items.Delete(ctx, id); err != nil {
		return false, err
	}
	if s.onDelete != nil {
		s.onDelete(item)
	}
	return true, nil
}

type RecordingStore struct {
	store[Recording]
}

func NewRecordingStore(items Collection[Recording]) *RecordingStore {
	s := &RecordingStore{}
	s.items = items
	s.idOf = recordingID
	s.notFound = "Recording not found"
	s.onDelete = func(r Recording) {
		if err := audio.Remove(r.AudioPath); err != nil {
			slog.Warn("storage: audio artifact removal failed", "id", r.ID, "path", r.AudioPath, "error", err)
		}
	}
	return s
}

// AudioPaths returns the cleaned audio_path of every recording.
func (s *RecordingStore) AudioPaths(ctx context.Context) (map[string]struct{}, error) {
	items, err := s.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load recordings: %w", err)
	}
	paths := make(map[string]struct{}, len(items))
	for _, r := range items {
		if r.AudioPath != "" {
			paths[filepath.Clean(r.AudioPath)] = struct{}{}
		}
	}
	return paths, nil
}

type ChatStore struct {
	store[ChatEntry]
}

// NewChatStore builds a ChatStore whose entries own speech artifacts in
// ttsDir.
func NewChatStore(items Collection[ChatEntry], ttsDir string) *ChatStore {
	s := &ChatStore{}
	s.items = items
	s.idOf = chatID
	s.notFound = "Chat entry not found"
	s.onDelete = func(c ChatEntry) {
		if c.TTSFile == nil || ttsDir == "" {
			return
		}
		if err := audio.Remove(filepath.Join(ttsDir, *c.TTSFile)); err != nil {
			slog.Warn("storage: tts artifact removal failed", "id", c.ID, "file", *c.TTSFile, "error", err)
		}
	}
	return s
}

// TTSFiles returns the tts_file of every chat entry that has one.
func (s *ChatStore) TTSFiles(ctx context.Context) (map[string]struct{}, error) {
	items, err := s.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chats: %w", err)
	}
	files := make(map[string]struct{}, len(items))
	for _, c := range items {
		if c.TTSFile != nil && *c.TTSFile != "" {
			files[*c.TTSFile] = struct{}{}
		}
	}
	return files, nil
}

// Collections opened for a storage driver.
type Collections struct {
	Recordings Collection[Recording]
	Chats      Collection[ChatEntry]
	sqlite     *SQLiteDB
	closer     func() error
}

// SQLite returns the database behind the collections, or nil for the json
// driver.
func (c Collections) SQLite() *SQLiteDB {
	return c.sqlite
}

func (c Collections) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// Open returns the collections for driver: "json" uses the two history
// documents, "sqlite" uses a single database file.
func Open(driver, historyPath, chatHistoryPath, sqlitePath string) (Collections, error) {
	switch driver {
	case "", "json":
		return Collections{
			Recordings: NewJSONCollection(historyPath, "recordings", recordingID),
			Chats:      NewJSONCollection(chatHistoryPath, "chats", chatID),
		}, nil
	case "sqlite":
		db, err := NewSQLiteDB(sqlitePath)
		if err != nil {
			return Collections{}, err
		}
		return Collections{
			Recordings: NewSQLiteCollection[Recording](db, "recordings"),
			Chats:      NewSQLiteCollection[ChatEntry](db, "chats"),
			sqlite:     db,
			closer:     db.Close,
		}, nil
	default:
		return Collections{}, fmt.Errorf("unknown storage driver %q", driver)
	}
}
