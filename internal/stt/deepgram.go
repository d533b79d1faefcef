package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

// DeepgramPrefix marks engine names served by Deepgram, e.g. "deepgram/nova-2".
const DeepgramPrefix = "deepgram/"

var deepgramInit sync.Once

type deepgramEngine struct {
	model      string
	fromStream func(ctx context.Context, r io.Reader, options *interfaces.PreRecordedTranscriptionOptions) (any, error)
}

// deepgramResponse is the subset of the pre-recorded response we read.
type deepgramResponse struct {
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string `json:"transcript"`
				Words      []struct {
					PunctuatedWord string  `json:"punctuated_word"`
					Word           string  `json:"word"`
					Start          float64 `json:"start"`
					End            float64 `json:"end"`
					Speaker        *int    `json:"speaker"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Transcript string  `json:"transcript"`
		} `json:"utterances"`
	} `json:"results"`
}

func newDeepgramEngine(apiKey, model string) (*deepgramEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram API key not configured")
	}
	if model == "" {
		return nil, fmt.Errorf("deepgram model name is empty")
	}

	deepgramInit.Do(func() {
		client.Init(client.InitLib{LogLevel: client.LogLevelDefault})
	})

	rest := api.New(client.NewREST(apiKey, &interfaces.ClientOptions{}))
	return &deepgramEngine{
		model: model,
		fromStream: func(ctx context.Context, r io.Reader, options *interfaces.PreRecordedTranscriptionOptions) (any, error) {
			res, err := rest.FromStream(ctx, r, options)
			if err != nil {
				return nil, err
			}
			return res, nil
		},
	}, nil
}

func (e *deepgramEngine) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:          e.model,
		Punctuate:      true,
		SmartFormat:    true,
		Utterances:     true,
		Diarize:        true,
		DetectLanguage: true,
	}

	res, err := e.fromStream(ctx, f, options)
	if err != nil {
		return Result{}, fmt.Errorf("deepgram transcribe: %w", err)
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return Result{}, fmt.Errorf("encode deepgram response: %w", err)
	}
	return parseDeepgramResponse(raw)
}

func (e *deepgramEngine) Close() error { return nil }

func parseDeepgramResponse(raw []byte) (Result, error) {
	var resp deepgramResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Result{}, fmt.Errorf("decode deepgram response: %w", err)
	}

	var out Result
	for _, u := range resp.Results.Utterances {
		out.Segments = append(out.Segments, Segment{Start: u.Start, End: u.End, Text: strings.TrimSpace(u.Transcript)})
	}

	if len(resp.Results.Channels) == 0 {
		out.Text = JoinText(out.Segments)
		return out, nil
	}

	channel := resp.Results.Channels[0]
	out.Language = channel.DetectedLanguage
	if len(channel.Alternatives) == 0 {
		out.Text = JoinText(out.Segments)
		return out, nil
	}

	alt := channel.Alternatives[0]
	out.Text = strings.TrimSpace(alt.Transcript)

	if len(out.Segments) == 0 && len(alt.Words) > 0 {
		words := make([]Word, 0, len(alt.Words))
		for _, w := range alt.Words {
			text := w.PunctuatedWord
			if text == "" {
				text = w.Word
			}
			words = append(words, Word{Speaker: w.Speaker, PunctuatedWord: text, Start: w.Start, End: w.End})
		}
		out.Segments = GroupWordsBySpeaker(words)
	}
	if out.Text == "" {
		out.Text = JoinText(out.Segments)
	}
	return out, nil
}
