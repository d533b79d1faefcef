package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/murmur/internal/audio"
)

const DefaultTimeout = 120 * time.Second

// Outcome is the result of one synthesis. On success File and Path name the
// new artifact; on failure both are empty and Err says why.
type Outcome struct {
	File string
	Path string
	Err  error
}

func (o Outcome) OK() bool { return o.Err == nil && o.File != "" }

// Synthesizer writes speech artifacts into a directory. It never returns an
// error to its caller; failures come back as an Outcome.
type Synthesizer struct {
	engine  Engine
	dir     *audio.Dir
	timeout time.Duration
}

func NewSynthesizer(engine Engine, dir *audio.Dir, timeout time.Duration) *Synthesizer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Synthesizer{engine: engine, dir: dir, timeout: timeout}
}

// Dir is where synthesized artifacts are stored.
func (s *Synthesizer) Dir() *audio.Dir {
	return s.dir
}

func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string) Outcome {
	if strings.TrimSpace(text) == "" {
		return s.fail(voice, errors.New("empty text"))
	}

	f, err := s.dir.Create(fmt.Sprintf("tts_%s.wav", uuid.NewString()))
	if err != nil {
		return s.fail(voice, err)
	}
	path := f.Name()
	f.Close()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.engine.Synthesize(ctx, text, voice, path); err != nil {
		_ = audio.Remove(path)
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (after %s)", err, s.timeout)
		}
		return s.fail(voice, err)
	}
	if !audio.Exists(path) {
		return s.fail(voice, errors.New("engine produced no file"))
	}

	slog.Info("tts: synthesized", "engine", s.engine.Name(), "voice", voice, "file", filepath.Base(path), "elapsed", time.Since(start).Round(time.Millisecond))
	return Outcome{File: filepath.Base(path), Path: path}
}

func (s *Synthesizer) fail(voice string, err error) Outcome {
	slog.Warn("tts: synthesis failed", "engine", s.engine.Name(), "voice", voice, "error", err)
	return Outcome{Err: err}
}
