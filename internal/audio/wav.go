package audio

import (
	"encoding/binary"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	pcmBitDepth = 16
	wavFormat   = 1
)

// WritePCM16 wraps little-endian signed 16-bit PCM into a WAV file at path.
func WritePCM16(path string, pcm []byte, sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid pcm format: rate=%d channels=%d", sampleRate, channels)
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open wav output: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, pcmBitDepth, channels, wavFormat)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           samples,
		SourceBitDepth: pcmBitDepth,
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("write wav payload: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	return f.Close()
}

// IsWAV reports whether the file at path decodes as a valid WAV file.
func IsWAV(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	return wav.NewDecoder(f).IsValidFile()
}
