package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// InferenceSampleRate is the rate speech-to-text engines expect.
const InferenceSampleRate = 16000

// ffmpegBin is swapped in tests.
var ffmpegBin = "ffmpeg"

// TranscodeWAV converts any ffmpeg-readable input into mono 16-bit WAV at
// sampleRate.
func TranscodeWAV(ctx context.Context, src, dst string, sampleRate int) error {
	cmd := exec.CommandContext(ctx,
		ffmpegBin,
		"-y",
		"-loglevel", "error",
		"-i", src,
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-c:a", "pcm_s16le",
		dst,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", filepath.Base(src), err, out)
	}
	return nil
}

// PrepareForInference returns a WAV version of src suitable for an engine.
// WAV input is returned as is. Otherwise a temporary transcoded copy is
// made and cleanup removes it.
func PrepareForInference(ctx context.Context, src string) (path string, cleanup func(), err error) {
	noop := func() {}
	if IsWAV(src) {
		return src, noop, nil
	}

	tmp, err := os.CreateTemp("", "murmur-*.wav")
	if err != nil {
		return "", noop, fmt.Errorf("create temp wav: %w", err)
	}
	tmp.Close()

	if err := TranscodeWAV(ctx, src, tmp.Name(), InferenceSampleRate); err != nil {
		_ = os.Remove(tmp.Name())
		return "", noop, err
	}
	return tmp.Name(), func() { _ = os.Remove(tmp.Name()) }, nil
}
