package tts

import (
	"context"
	"fmt"
	"io"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// openaiVoices maps catalog ids onto the speech API's voices.
var openaiVoices = map[string]openai.SpeechVoice{
	"default":   openai.VoiceAlloy,
	"female":    openai.VoiceNova,
	"male":      openai.VoiceOnyx,
	"calm":      openai.VoiceShimmer,
	"energetic": openai.VoiceFable,
}

// OpenAISpeech talks to any server implementing the OpenAI /audio/speech
// endpoint.
type OpenAISpeech struct {
	client *openai.Client
	model  string
}

func NewOpenAISpeech(apiKey, baseURL, model string) *OpenAISpeech {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.TTSModel1)
	}
	return &OpenAISpeech{client: openai.NewClientWithConfig(config), model: model}
}

func (o *OpenAISpeech) Name() string { return "openai" }

func (o *OpenAISpeech) Synthesize(ctx context.Context, text, voice, dst string) error {
	v, ok := openaiVoices[voice]
	if !ok {
		v = openaiVoices[DefaultVoice]
	}

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          text,
		Voice:          v,
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("open speech output: %w", err)
	}
	if _, err := io.Copy(f, resp); err != nil {
		f.Close()
		return fmt.Errorf("write speech output: %w", err)
	}
	return f.Close()
}
