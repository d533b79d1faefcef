package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 60 * time.Second

const preamble = `You are a helpful AI assistant working with voice transcriptions. You can:
- Reformat and improve text (fix grammar, punctuation, structure)
- Generate new content based on the user's request
- Answer questions about the provided text or in general

Respond directly with the result, without extra commentary.`

// Reply is the outcome of a generation call. Text is always safe to show to
// the user: the model's answer on success, a diagnostic on failure.
type Reply struct {
	Text string
	Err  error
}

func (r Reply) Failed() bool { return r.Err != nil }

// Generator composes prompts and turns provider failures into readable
// replies instead of errors.
type Generator struct {
	client  Client
	timeout time.Duration
}

func NewGenerator(client Client) *Generator {
	return &Generator{client: client, timeout: DefaultTimeout}
}

// Provider names the backing client, e.g. "Ollama".
func (g *Generator) Provider() string {
	return g.client.Name()
}

// BuildPrompt assembles the preamble, the optional context block and the
// user's request into one prompt.
func BuildPrompt(request, contextText string) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\n")
	if contextText != "" {
		b.WriteString("Context/Previous transcription:\n")
		b.WriteString(contextText)
		b.WriteString("\n\n")
	}
	b.WriteString("User request: ")
	b.WriteString(request)
	return b.String()
}

func (g *Generator) Query(ctx context.Context, request, contextText, model string) Reply {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.client.Complete(ctx, model, []Message{{Role: "user", Content: BuildPrompt(request, contextText)}})
	if err != nil {
		slog.Warn("llm: generation failed", "provider", g.client.Name(), "model", model, "error", err)
		return Reply{Text: g.diagnostic(err), Err: err}
	}

	slog.Info("llm: generation complete", "provider", g.client.Name(), "model", model, "elapsed", time.Since(start).Round(time.Millisecond))
	return Reply{Text: text}
}

func (g *Generator) diagnostic(err error) string {
	if code, ok := statusCode(err); ok {
		return fmt.Sprintf("Error: %s returned status %d", g.client.Name(), code)
	}
	return fmt.Sprintf("Error connecting to %s: %v", g.client.Name(), err)
}

// ListModels asks the provider for its installed models when it supports
// listing them.
func (g *Generator) ListModels(ctx context.Context) ([]string, error) {
	lister, ok := g.client.(ModelLister)
	if !ok {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return lister.ListModels(ctx)
}
