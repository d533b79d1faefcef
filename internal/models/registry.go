// Package models manages whisper model weights on local disk.
package models

import "fmt"

const huggingFaceBase = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// Weights describes one downloadable ggml weights file.
type Weights struct {
	Name     string
	Filename string
	URL      string
	Size     int64
}

// Registry lists every weights name the whisper loader accepts.
var Registry = []Weights{
	ggml("tiny", 75),
	ggml("tiny.en", 75),
	ggml("base", 142),
	ggml("base.en", 142),
	ggml("small", 466),
	ggml("small.en", 466),
	ggml("medium", 1500),
	ggml("medium.en", 1500),
	ggml("large-v3", 2900),
	{
		Name:     "turbo",
		Filename: "ggml-large-v3-turbo.bin",
		URL:      huggingFaceBase + "ggml-large-v3-turbo.bin",
		Size:     1600 * 1024 * 1024,
	},
}

func ggml(name string, sizeMB int64) Weights {
	filename := fmt.Sprintf("ggml-%s.bin", name)
	return Weights{
		Name:     name,
		Filename: filename,
		URL:      huggingFaceBase + filename,
		Size:     sizeMB * 1024 * 1024,
	}
}

// Lookup returns the registry entry for name.
func Lookup(name string) (Weights, bool) {
	for _, w := range Registry {
		if w.Name == name {
			return w, true
		}
	}
	return Weights{}, false
}
