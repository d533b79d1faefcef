package stt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

type stubWeights struct {
	path string
	err  error
	got  []string
}

func (s *stubWeights) Ensure(_ context.Context, name string) (string, error) {
	s.got = append(s.got, name)
	return s.path, s.err
}

func TestLoaderDeepgramRequiresKey(t *testing.T) {
	load := NewLoader(LoaderConfig{})
	if _, err := load(context.Background(), "deepgram/nova-2"); err == nil {
		t.Fatal("expected error without deepgram key")
	}
}

func TestLoaderDeepgramModel(t *testing.T) {
	load := NewLoader(LoaderConfig{DeepgramAPIKey: "key"})
	e, err := load(context.Background(), "deepgram/nova-2")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	dg, ok := e.(*deepgramEngine)
	if !ok {
		t.Fatalf("expected deepgram engine, got %T", e)
	}
	if dg.model != "nova-2" {
		t.Fatalf("expected model nova-2, got %q", dg.model)
	}
}

func TestLoaderWeightsFailure(t *testing.T) {
	weights := &stubWeights{err: errors.New("unknown whisper model")}
	load := NewLoader(LoaderConfig{WhisperServerBin: "whisper-server", Weights: weights})

	if _, err := load(context.Background(), "gigantic"); err == nil {
		t.Fatal("expected weights error")
	}
	if len(weights.got) != 1 || weights.got[0] != "gigantic" {
		t.Fatalf("expected Ensure(gigantic), got %v", weights.got)
	}
}

func TestLoaderMissingServerBinary(t *testing.T) {
	weights := &stubWeights{path: filepath.Join(t.TempDir(), "ggml-tiny.bin")}
	load := NewLoader(LoaderConfig{
		WhisperServerBin: filepath.Join(t.TempDir(), "no-such-whisper-server"),
		Weights:          weights,
	})

	if _, err := load(context.Background(), "tiny"); err == nil {
		t.Fatal("expected error when whisper-server binary is missing")
	}
}
