package storage

// Recording is one uploaded audio clip and its transcription.
type Recording struct {
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	AudioPath     string `json:"audio_path"`
	Transcription string `json:"transcription"`
	Timestamp     string `json:"timestamp"`
	Duration      string `json:"duration"`
	Language      string `json:"language"`
	Model         string `json:"model"`
}

// ChatEntry is one user message and the assistant's reply.
type ChatEntry struct {
	ID          string  `json:"id"`
	Timestamp   string  `json:"timestamp"`
	UserMessage string  `json:"user_message"`
	AIResponse  string  `json:"ai_response"`
	Context     string  `json:"context"`
	Model       string  `json:"model"`
	Voice       string  `json:"voice"`
	TTSFile     *string `json:"tts_file"`
}

func recordingID(r Recording) string { return r.ID }

func chatID(c ChatEntry) string { return c.ID }
