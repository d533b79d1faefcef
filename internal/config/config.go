package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all murmur environment variables.
const EnvPrefix = "MURMUR_"

// Storage selects how the recording and chat histories are persisted.
type Storage struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Generation configures the text-generation engine used by chat and reformat.
type Generation struct {
	Provider     string   `yaml:"provider"`
	URL          string   `yaml:"url"`
	Models       []string `yaml:"models"`
	DefaultModel string   `yaml:"default_model"`
}

// TTS configures the speech synthesizer.
type TTS struct {
	Engine      string `yaml:"engine"`
	PiperBin    string `yaml:"piper_bin"`
	PiperModel  string `yaml:"piper_model"`
	OpenAIURL   string `yaml:"openai_url"`
	OpenAIModel string `yaml:"openai_model"`
	Timeout     string `yaml:"timeout"`
}

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	HTTPAddr              string     `yaml:"http_addr"`
	DataDir               string     `yaml:"data_dir"`
	AudioDir              string     `yaml:"audio_dir"`
	TTSDir                string     `yaml:"tts_dir"`
	ModelCacheDir         string     `yaml:"model_cache_dir"`
	DefaultSTTModel       string     `yaml:"default_stt_model"`
	WhisperServerBin      string     `yaml:"whisper_server_bin"`
	MaxUploadBytes        int64      `yaml:"max_upload_bytes"`
	OrphanGrace           string     `yaml:"orphan_grace"`
	LogLevel              string     `yaml:"log_level"`
	GDriveFolderID        string     `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string     `yaml:"google_credentials_file"`
	Storage               Storage    `yaml:"storage"`
	Generation            Generation `yaml:"generation"`
	TTS                   TTS        `yaml:"tts"`

	// Secrets come from env vars only and are never serialized to YAML.
	DeepgramAPIKey  string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
}

func defaults() Config {
	return Config{
		HTTPAddr:              "127.0.0.1:5000",
		DataDir:               "recordings",
		AudioDir:              filepath.Join("recordings", "audio"),
		TTSDir:                filepath.Join("recordings", "tts"),
		ModelCacheDir:         defaultModelCacheDir(),
		DefaultSTTModel:       "small",
		WhisperServerBin:      "whisper-server",
		MaxUploadBytes:        100 << 20,
		OrphanGrace:           "1h",
		LogLevel:              "info",
		GoogleCredentialsFile: "./service-account.json",
		Storage: Storage{
			Driver:     "json",
			SQLitePath: filepath.Join("recordings", "murmur.db"),
		},
		Generation: Generation{
			Provider:     "ollama",
			URL:          "http://localhost:11434",
			Models:       []string{"gemma3:4b", "llama3.2:3b", "qwen2.5:7b"},
			DefaultModel: "gemma3:4b",
		},
		TTS: TTS{
			Engine:      "piper",
			PiperBin:    "piper",
			PiperModel:  filepath.Join("models", "en_US-amy-medium.onnx"),
			OpenAIURL:   "http://localhost:8880/v1",
			OpenAIModel: "tts-1",
			Timeout:     "120s",
		},
	}
}

func defaultModelCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "murmur", "whisper")
	}
	return filepath.Join("models", "whisper")
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// HistoryPath is the JSON document holding the recording history.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.json")
}

// ChatHistoryPath is the JSON document holding the chat history.
func (c *Config) ChatHistoryPath() string {
	return filepath.Join(c.DataDir, "chat_history.json")
}

// ParsedOrphanGrace returns OrphanGrace as a time.Duration, falling back to
// one hour if the value is invalid.
func (c *Config) ParsedOrphanGrace() time.Duration {
	d, err := time.ParseDuration(c.OrphanGrace)
	if err != nil || d < 0 {
		return time.Hour
	}
	return d
}

// ParsedTTSTimeout returns TTS.Timeout as a time.Duration, falling back to
// two minutes if the value is invalid.
func (c *Config) ParsedTTSTimeout() time.Duration {
	d, err := time.ParseDuration(c.TTS.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(EnvPrefix + key)); v != "" {
			*dst = v
		}
	}

	setString("HTTP_ADDR", &cfg.HTTPAddr)
	setString("DATA_DIR", &cfg.DataDir)
	setString("AUDIO_DIR", &cfg.AudioDir)
	setString("TTS_DIR", &cfg.TTSDir)
	setString("MODEL_CACHE_DIR", &cfg.ModelCacheDir)
	setString("DEFAULT_STT_MODEL", &cfg.DefaultSTTModel)
	setString("WHISPER_SERVER_BIN", &cfg.WhisperServerBin)
	setString("ORPHAN_GRACE", &cfg.OrphanGrace)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("GDRIVE_FOLDER_ID", &cfg.GDriveFolderID)
	setString("GOOGLE_CREDENTIALS_FILE", &cfg.GoogleCredentialsFile)
	setString("STORAGE_DRIVER", &cfg.Storage.Driver)
	setString("SQLITE_PATH", &cfg.Storage.SQLitePath)
	setString("GENERATION_PROVIDER", &cfg.Generation.Provider)
	setString("GENERATION_URL", &cfg.Generation.URL)
	setString("GENERATION_DEFAULT_MODEL", &cfg.Generation.DefaultModel)
	setString("TTS_ENGINE", &cfg.TTS.Engine)
	setString("PIPER_BIN", &cfg.TTS.PiperBin)
	setString("PIPER_MODEL", &cfg.TTS.PiperModel)
	setString("TTS_OPENAI_URL", &cfg.TTS.OpenAIURL)
	setString("TTS_TIMEOUT", &cfg.TTS.Timeout)

	if v := os.Getenv(EnvPrefix + "GENERATION_MODELS"); v != "" {
		cfg.Generation.Models = parseList(v)
	}
}

func loadSecrets(cfg *Config) {
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	switch cfg.Storage.Driver {
	case "json", "sqlite":
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown storage driver %q, using json.", cfg.Storage.Driver))
		cfg.Storage.Driver = "json"
	}

	switch cfg.Generation.Provider {
	case "ollama", "openai", "anthropic", "gemini":
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown generation provider %q, using ollama.", cfg.Generation.Provider))
		cfg.Generation.Provider = "ollama"
	}
	if cfg.Generation.Provider == "anthropic" && cfg.AnthropicAPIKey == "" {
		warnings = append(warnings, "Anthropic API key not configured. Set "+EnvPrefix+"ANTHROPIC_API_KEY.")
	}
	if cfg.Generation.Provider == "gemini" && cfg.GeminiAPIKey == "" {
		warnings = append(warnings, "Gemini API key not configured. Set "+EnvPrefix+"GEMINI_API_KEY.")
	}
	if len(cfg.Generation.Models) == 0 {
		cfg.Generation.Models = []string{cfg.Generation.DefaultModel}
	}

	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured, deepgram/* transcription models are disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}
	if _, err := time.ParseDuration(cfg.OrphanGrace); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid orphan_grace %q, using default 1h.", cfg.OrphanGrace))
	}
	if _, err := time.ParseDuration(cfg.TTS.Timeout); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid tts.timeout %q, using default 120s.", cfg.TTS.Timeout))
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 100 << 20
	}

	return warnings
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	seen := make(map[string]struct{}, len(parts))
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}

	return result
}
