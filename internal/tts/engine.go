// Package tts turns text into speech artifacts.
package tts

import (
	"context"
	"fmt"
)

// Engine renders text as a WAV file at dst. voice is a catalog id; engines
// without a voice selector ignore it.
type Engine interface {
	Name() string
	Synthesize(ctx context.Context, text, voice, dst string) error
}

type EngineConfig struct {
	Engine      string
	PiperBin    string
	PiperModel  string
	OpenAIURL   string
	OpenAIModel string
	OpenAIKey   string
}

func NewEngine(cfg EngineConfig) (Engine, error) {
	switch cfg.Engine {
	case "", "piper":
		return NewPiper(cfg.PiperBin, cfg.PiperModel), nil
	case "openai":
		return NewOpenAISpeech(cfg.OpenAIKey, cfg.OpenAIURL, cfg.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown tts engine %q: supported engines are piper, openai", cfg.Engine)
	}
}
