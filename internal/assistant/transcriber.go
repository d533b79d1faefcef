// Package assistant composes the speech, generation and storage layers into
// the operations the HTTP surface exposes.
package assistant

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/murmur/internal/audio"
	"github.com/sjawhar/murmur/internal/models"
	"github.com/sjawhar/murmur/internal/storage"
	"github.com/sjawhar/murmur/internal/stt"
)

var (
	// ErrNoAudio is returned by Transcriber.Run when the upload holds no bytes.
	ErrNoAudio = errors.New("no audio")
	// ErrUnknownEngine is returned by Transcriber.Run for an engine name that
	// is neither a whisper model nor a deepgram/<model> name.
	ErrUnknownEngine = errors.New("unknown engine")
)

const unknownLanguage = "unknown"

// EngineSource hands out speech-to-text engines by name.
type EngineSource interface {
	Get(ctx context.Context, name string) (stt.Engine, error)
}

// Transcriber turns uploaded audio into a Recording. It does not store the
// Recording; the caller decides that.
type Transcriber struct {
	dir     *audio.Dir
	engines EngineSource
	now     func() time.Time
}

func NewTranscriber(dir *audio.Dir, engines EngineSource) *Transcriber {
	return &Transcriber{dir: dir, engines: engines, now: time.Now}
}

// Run writes r to a new artifact, transcribes it with the named engine and
// returns the resulting Recording. ext is the extension of the uploaded file
// and defaults to .wav.
//
// When the engine fails the artifact stays on disk unreferenced until the
// orphan sweep removes it.
func (t *Transcriber) Run(ctx context.Context, r io.Reader, ext, engineName string) (storage.Recording, error) {
	if !knownEngine(engineName) {
		return storage.Recording{}, fmt.Errorf("%w: %q", ErrUnknownEngine, engineName)
	}

	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return storage.Recording{}, ErrNoAudio
		}
		return storage.Recording{}, fmt.Errorf("read upload: %w", err)
	}

	created := t.now()
	name := "recording_" + created.Format("20060102_150405") + normalizeExt(ext)
	path, err := t.dir.Write(name, br)
	if err != nil {
		return storage.Recording{}, fmt.Errorf("store upload: %w", err)
	}

	engine, err := t.engines.Get(ctx, engineName)
	if err != nil {
		return storage.Recording{}, err
	}

	start := time.Now()
	result, err := engine.Transcribe(ctx, path)
	if err != nil {
		slog.Warn("assistant: transcription failed", "engine", engineName, "path", path, "error", err)
		return storage.Recording{}, fmt.Errorf("transcribe %s: %w", filepath.Base(path), err)
	}

	language := result.Language
	if language == "" {
		language = unknownLanguage
	}

	rec := storage.Recording{
		ID:            uuid.NewString(),
		Filename:      filepath.Base(path),
		AudioPath:     path,
		Transcription: result.Text,
		Timestamp:     created.Format(time.RFC3339Nano),
		Duration:      stt.FormatDuration(result.Segments),
		Language:      language,
		Model:         engineName,
	}
	slog.Info("assistant: transcribed", "id", rec.ID, "engine", engineName, "duration", rec.Duration, "language", language, "elapsed", time.Since(start).Round(time.Millisecond))
	return rec, nil
}

func knownEngine(name string) bool {
	if model, ok := strings.CutPrefix(name, stt.DeepgramPrefix); ok {
		return model != ""
	}
	_, ok := models.Lookup(name)
	return ok
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" || len(ext) > 5 {
		return ".wav"
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ".wav"
		}
	}
	return "." + ext
}
