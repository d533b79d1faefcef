package stt

import (
	"context"
	"fmt"
	"strings"
)

// WeightsProvider resolves a whisper model name to a local weights file,
// fetching it if needed.
type WeightsProvider interface {
	Ensure(ctx context.Context, name string) (string, error)
}

type LoaderConfig struct {
	WhisperServerBin string
	Weights          WeightsProvider
	DeepgramAPIKey   string
}

// NewLoader routes "deepgram/<model>" names to Deepgram and every other name
// to a local whisper-server process serving that model's weights.
func NewLoader(cfg LoaderConfig) Loader {
	return func(ctx context.Context, name string) (Engine, error) {
		if model, ok := strings.CutPrefix(name, DeepgramPrefix); ok {
			return newDeepgramEngine(cfg.DeepgramAPIKey, model)
		}

		if cfg.Weights == nil {
			return nil, fmt.Errorf("no weights provider configured for %q", name)
		}
		weightsPath, err := cfg.Weights.Ensure(ctx, name)
		if err != nil {
			return nil, err
		}
		return startWhisperServer(ctx, cfg.WhisperServerBin, name, weightsPath)
	}
}
