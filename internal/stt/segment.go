package stt

import (
	"fmt"
	"strings"
)

// Segment is one timed span of a transcript, in seconds from the start of
// the audio.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is what an engine returns for one audio file.
type Result struct {
	Text     string
	Language string
	Segments []Segment
}

// Word is a single recognised word with optional speaker attribution.
type Word struct {
	Speaker        *int
	PunctuatedWord string
	Start          float64
	End            float64
}

// GroupWordsBySpeaker folds consecutive words from the same speaker into
// segments. Words without a speaker count as speaker -1.
func GroupWordsBySpeaker(words []Word) []Segment {
	if len(words) == 0 {
		return nil
	}

	var segments []Segment
	var current Segment
	currentSpeaker := 0

	for i, w := range words {
		speaker := -1
		if w.Speaker != nil {
			speaker = *w.Speaker
		}

		if i > 0 && speaker == currentSpeaker {
			current.Text += " " + w.PunctuatedWord
			current.End = w.End
			continue
		}
		if i > 0 {
			segments = append(segments, current)
		}
		current = Segment{Start: w.Start, End: w.End, Text: w.PunctuatedWord}
		currentSpeaker = speaker
	}

	return append(segments, current)
}

// FormatDuration renders the end of the last segment as m:ss, truncating
// fractional seconds. No segments means 0:00.
func FormatDuration(segments []Segment) string {
	if len(segments) == 0 {
		return "0:00"
	}
	total := int(segments[len(segments)-1].End)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// JoinText concatenates segment texts, used when an engine reports segments
// but no overall transcript.
func JoinText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
