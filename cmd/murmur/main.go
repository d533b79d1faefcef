package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/sjawhar/murmur/internal/assistant"
	"github.com/sjawhar/murmur/internal/audio"
	"github.com/sjawhar/murmur/internal/backup"
	"github.com/sjawhar/murmur/internal/config"
	"github.com/sjawhar/murmur/internal/llm"
	"github.com/sjawhar/murmur/internal/models"
	"github.com/sjawhar/murmur/internal/server"
	"github.com/sjawhar/murmur/internal/storage"
	"github.com/sjawhar/murmur/internal/stt"
	"github.com/sjawhar/murmur/internal/tts"
)

const (
	shutdownGrace  = 5 * time.Second
	sweepInterval  = time.Hour
	backupInterval = 5 * time.Minute
)

func main() {
	if err := run(); err != nil {
		slog.Error("murmur: fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, warnings, err := config.Load(envOrDefault("MURMUR_CONFIG", "murmur.yaml"))
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(cfg.LogLevel))
	slog.Info("murmur: starting", "addr", cfg.HTTPAddr, "storage", cfg.Storage.Driver, "generation", cfg.Generation.Provider, "tts", cfg.TTS.Engine)
	for _, w := range warnings {
		slog.Warn("murmur: config", "warning", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cols, err := storage.Open(cfg.Storage.Driver, cfg.HistoryPath(), cfg.ChatHistoryPath(), cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	defer func() { _ = cols.Close() }()

	weights, err := models.NewManager(cfg.ModelCacheDir)
	if err != nil {
		return fmt.Errorf("model cache init: %w", err)
	}
	engines := stt.NewCache(stt.NewLoader(stt.LoaderConfig{
		WhisperServerBin: cfg.WhisperServerBin,
		Weights:          weights,
		DeepgramAPIKey:   cfg.DeepgramAPIKey,
	}))
	defer func() {
		if err := engines.Close(); err != nil {
			slog.Warn("murmur: engine shutdown", "error", err)
		}
	}()

	client, err := generationClient(cfg)
	if err != nil {
		return fmt.Errorf("generation client: %w", err)
	}

	speechEngine, err := tts.NewEngine(tts.EngineConfig{
		Engine:      cfg.TTS.Engine,
		PiperBin:    cfg.TTS.PiperBin,
		PiperModel:  cfg.TTS.PiperModel,
		OpenAIURL:   cfg.TTS.OpenAIURL,
		OpenAIModel: cfg.TTS.OpenAIModel,
		OpenAIKey:   cfg.OpenAIAPIKey,
	})
	if err != nil {
		return fmt.Errorf("tts engine: %w", err)
	}

	hub := server.NewHub()
	svc := assistant.New(assistant.Options{
		Transcriber:            assistant.NewTranscriber(audio.NewDir(cfg.AudioDir), engines),
		Recordings:             storage.NewRecordingStore(cols.Recordings),
		Chats:                  storage.NewChatStore(cols.Chats, cfg.TTSDir),
		Generator:              llm.NewGenerator(client),
		Speech:                 tts.NewSynthesizer(speechEngine, audio.NewDir(cfg.TTSDir), cfg.ParsedTTSTimeout()),
		Notifier:               hub,
		DefaultSTTModel:        cfg.DefaultSTTModel,
		DefaultGenerationModel: cfg.Generation.DefaultModel,
		GenerationModels:       cfg.Generation.Models,
	})

	go sweepLoop(ctx, svc, cfg.ParsedOrphanGrace())

	if cfg.GDriveFolderID != "" {
		syncer, syncErr := backup.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID, backupSources(cfg, cols))
		if syncErr != nil {
			slog.Warn("murmur: drive backup disabled", "error", syncErr)
		} else {
			go syncer.Run(ctx, backupInterval)
		}
	}

	handler := server.Handler(svc, hub, server.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		Engines:        engines.Names,
	})
	if err := server.New(cfg.HTTPAddr, handler).Run(ctx, shutdownGrace); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	slog.Info("murmur: stopped")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.DateTime,
	}))
}

// generationClient builds the client for the configured provider. The
// endpoint URL is passed to ollama, and to the others only when it was
// changed from the ollama default.
func generationClient(cfg config.Config) (llm.Client, error) {
	var key string
	switch cfg.Generation.Provider {
	case "openai":
		key = cfg.OpenAIAPIKey
	case "anthropic":
		key = cfg.AnthropicAPIKey
	case "gemini":
		key = cfg.GeminiAPIKey
	}

	var opts []llm.Option
	url := strings.TrimSpace(cfg.Generation.URL)
	if url != "" && (cfg.Generation.Provider == "ollama" || url != llm.DefaultOllamaURL) {
		opts = append(opts, llm.WithBaseURL(url))
	}
	return llm.NewClient(cfg.Generation.Provider, key, opts...)
}

// backupSources picks what the Drive backup uploads: a snapshot of the
// database for the sqlite driver, the two history documents otherwise.
func backupSources(cfg config.Config, cols storage.Collections) []backup.Source {
	if db := cols.SQLite(); db != nil {
		return []backup.Source{backup.SnapshotSource(filepath.Base(cfg.Storage.SQLitePath), db.Snapshot)}
	}
	return []backup.Source{backup.FileSource(cfg.HistoryPath()), backup.FileSource(cfg.ChatHistoryPath())}
}

type sweeper interface {
	Sweep(ctx context.Context, grace time.Duration) ([]string, error)
}

// sweepLoop removes orphaned artifacts at startup and then every hour.
func sweepLoop(ctx context.Context, s sweeper, grace time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx, grace); err != nil {
			slog.Warn("murmur: orphan sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func envOrDefault(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
