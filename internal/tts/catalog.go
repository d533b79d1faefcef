package tts

const DefaultVoice = "default"

// voices maps voice ids to display names.
var voices = map[string]string{
	"default":   "Default Voice",
	"female":    "Female Voice",
	"male":      "Male Voice",
	"calm":      "Calm Voice",
	"energetic": "Energetic Voice",
}

// Voices returns a copy of the voice catalog, id to display name.
func Voices() map[string]string {
	out := make(map[string]string, len(voices))
	for id, name := range voices {
		out[id] = name
	}
	return out
}

// KnownVoice reports whether id is in the catalog.
func KnownVoice(id string) bool {
	_, ok := voices[id]
	return ok
}
