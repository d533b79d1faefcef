package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HTTP_ADDR", "DATA_DIR", "AUDIO_DIR", "TTS_DIR", "MODEL_CACHE_DIR",
		"DEFAULT_STT_MODEL", "WHISPER_SERVER_BIN", "ORPHAN_GRACE", "LOG_LEVEL",
		"GDRIVE_FOLDER_ID", "GOOGLE_CREDENTIALS_FILE", "STORAGE_DRIVER", "SQLITE_PATH",
		"GENERATION_PROVIDER", "GENERATION_URL", "GENERATION_DEFAULT_MODEL", "GENERATION_MODELS",
		"TTS_ENGINE", "PIPER_BIN", "PIPER_MODEL", "TTS_OPENAI_URL", "TTS_TIMEOUT",
		"DEEPGRAM_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY",
	} {
		t.Setenv(EnvPrefix+key, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DataDir != "recordings" {
		t.Fatalf("expected default data_dir, got %q", cfg.DataDir)
	}
	if cfg.AudioDir != filepath.Join("recordings", "audio") {
		t.Fatalf("expected default audio_dir, got %q", cfg.AudioDir)
	}
	if cfg.DefaultSTTModel != "small" {
		t.Fatalf("expected default stt model small, got %q", cfg.DefaultSTTModel)
	}
	if cfg.Generation.DefaultModel != "gemma3:4b" {
		t.Fatalf("expected default generation model gemma3:4b, got %q", cfg.Generation.DefaultModel)
	}
	if cfg.Generation.URL != "http://localhost:11434" {
		t.Fatalf("expected default generation url, got %q", cfg.Generation.URL)
	}
	if cfg.Storage.Driver != "json" {
		t.Fatalf("expected json storage driver, got %q", cfg.Storage.Driver)
	}
	if cfg.HistoryPath() != filepath.Join("recordings", "history.json") {
		t.Fatalf("unexpected history path %q", cfg.HistoryPath())
	}
	if cfg.ChatHistoryPath() != filepath.Join("recordings", "chat_history.json") {
		t.Fatalf("unexpected chat history path %q", cfg.ChatHistoryPath())
	}
	if cfg.ParsedTTSTimeout() != 120*time.Second {
		t.Fatalf("expected tts timeout 120s, got %v", cfg.ParsedTTSTimeout())
	}
}

func TestYAMLLoading(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "murmur.yaml")
	yamlContent := `
http_addr: 0.0.0.0:9000
data_dir: /custom/data
audio_dir: /custom/audio
model_cache_dir: /custom/models
default_stt_model: base.en
orphan_grace: 15m
storage:
  driver: sqlite
  sqlite_path: /custom/murmur.db
generation:
  provider: openai
  url: http://localhost:8080/v1
  models: [llama3.2:3b, mistral]
  default_model: mistral
tts:
  engine: openai
  timeout: 30s
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddr != "0.0.0.0:9000" {
		t.Fatalf("expected yaml http_addr, got %q", cfg.HTTPAddr)
	}
	if cfg.DataDir != "/custom/data" {
		t.Fatalf("expected yaml data_dir, got %q", cfg.DataDir)
	}
	if cfg.ModelCacheDir != "/custom/models" {
		t.Fatalf("expected yaml model_cache_dir, got %q", cfg.ModelCacheDir)
	}
	if cfg.DefaultSTTModel != "base.en" {
		t.Fatalf("expected yaml default_stt_model, got %q", cfg.DefaultSTTModel)
	}
	if cfg.ParsedOrphanGrace() != 15*time.Minute {
		t.Fatalf("expected orphan grace 15m, got %v", cfg.ParsedOrphanGrace())
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.SQLitePath != "/custom/murmur.db" {
		t.Fatalf("expected yaml storage section, got %+v", cfg.Storage)
	}
	if cfg.Generation.Provider != "openai" {
		t.Fatalf("expected yaml generation provider, got %q", cfg.Generation.Provider)
	}
	if !reflect.DeepEqual(cfg.Generation.Models, []string{"llama3.2:3b", "mistral"}) {
		t.Fatalf("expected yaml generation models, got %v", cfg.Generation.Models)
	}
	if cfg.TTS.Engine != "openai" || cfg.ParsedTTSTimeout() != 30*time.Second {
		t.Fatalf("expected yaml tts section, got %+v", cfg.TTS)
	}
	if cfg.TTS.PiperBin != "piper" {
		t.Fatalf("expected untouched tts default piper_bin, got %q", cfg.TTS.PiperBin)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "murmur.yaml")
	yamlContent := `
data_dir: /from/yaml
generation:
  url: http://yaml:11434
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	clearEnv(t)
	t.Setenv(EnvPrefix+"DATA_DIR", "/from/env")
	t.Setenv(EnvPrefix+"GENERATION_URL", "http://env:11434")
	t.Setenv(EnvPrefix+"GENERATION_MODELS", "a, b ,a,,c")

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DataDir != "/from/env" {
		t.Fatalf("expected env override for data_dir, got %q", cfg.DataDir)
	}
	if cfg.Generation.URL != "http://env:11434" {
		t.Fatalf("expected env override for generation url, got %q", cfg.Generation.URL)
	}
	if !reflect.DeepEqual(cfg.Generation.Models, []string{"a", "b", "c"}) {
		t.Fatalf("expected deduplicated env models, got %v", cfg.Generation.Models)
	}
}

func TestSecretsIgnoredInYAML(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "murmur.yaml")
	yamlContent := `
deepgram_api_key: should-be-ignored
openai_api_key: also-ignored
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "" {
		t.Fatalf("expected empty deepgram key (yaml should be ignored), got %q", cfg.DeepgramAPIKey)
	}
	if cfg.OpenAIAPIKey != "" {
		t.Fatalf("expected empty openai key (yaml should be ignored), got %q", cfg.OpenAIAPIKey)
	}
}

func TestSecretsFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"DEEPGRAM_API_KEY", "dg-secret")
	t.Setenv(EnvPrefix+"ANTHROPIC_API_KEY", "ant-secret")

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "dg-secret" {
		t.Fatalf("expected deepgram key from env, got %q", cfg.DeepgramAPIKey)
	}
	if cfg.AnthropicAPIKey != "ant-secret" {
		t.Fatalf("expected anthropic key from env, got %q", cfg.AnthropicAPIKey)
	}
}

func TestValidationWarnings(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"STORAGE_DRIVER", "postgres")
	t.Setenv(EnvPrefix+"TTS_TIMEOUT", "soon")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var driverWarning, deepgramWarning, timeoutWarning bool
	for _, w := range warnings {
		if strings.Contains(w, "storage driver") {
			driverWarning = true
		}
		if strings.Contains(w, "Deepgram") {
			deepgramWarning = true
		}
		if strings.Contains(w, "tts.timeout") {
			timeoutWarning = true
		}
	}

	if !driverWarning || !deepgramWarning || !timeoutWarning {
		t.Fatalf("expected driver, deepgram and timeout warnings, got: %v", warnings)
	}
	if cfg.Storage.Driver != "json" {
		t.Fatalf("expected fallback to json driver, got %q", cfg.Storage.Driver)
	}
	if cfg.ParsedTTSTimeout() != 120*time.Second {
		t.Fatalf("expected fallback tts timeout, got %v", cfg.ParsedTTSTimeout())
	}
}

func TestValidationNoWarningsWhenConfigured(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"DEEPGRAM_API_KEY", "key")

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 0 {
		t.Fatalf("expected no warnings when fully configured, got: %v", warnings)
	}
}

func TestMissingConfigFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("/nonexistent/path/murmur.yaml")
	if err != nil {
		t.Fatalf("Load should not fail for missing config file, got: %v", err)
	}

	if cfg.DataDir != "recordings" {
		t.Fatalf("expected defaults when config file missing, got data_dir=%q", cfg.DataDir)
	}
}

func TestInvalidConfigFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte(":::invalid yaml"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	clearEnv(t)

	_, _, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid yaml, got nil")
	}
}

func TestParseList(t *testing.T) {
	got := parseList(" gemma3:4b,  ,llama3.2:3b,gemma3:4b ")
	want := []string{"gemma3:4b", "llama3.2:3b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected parsed list: got=%v want=%v", got, want)
	}
}
