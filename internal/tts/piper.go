package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sjawhar/murmur/internal/audio"
)

// piperSampleRate matches the medium-quality piper voices.
const piperSampleRate = 22050

type Piper struct {
	binaryPath string
	modelPath  string
	sampleRate int
}

func NewPiper(binaryPath, modelPath string) *Piper {
	if binaryPath == "" {
		binaryPath = "piper"
	}
	return &Piper{binaryPath: binaryPath, modelPath: modelPath, sampleRate: piperSampleRate}
}

func (p *Piper) Name() string { return "piper" }

// Synthesize runs piper with raw PCM output and wraps the samples as WAV.
// The voice is ignored: the loaded model fixes the speaker.
func (p *Piper) Synthesize(ctx context.Context, text, _ string, dst string) error {
	cmd := exec.CommandContext(ctx, p.binaryPath,
		"--model", p.modelPath,
		"--output-raw",
	)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("piper: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return fmt.Errorf("piper: no audio produced")
	}

	return audio.WritePCM16(dst, stdout.Bytes(), p.sampleRate, 1)
}
