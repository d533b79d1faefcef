package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/murmur/internal/apperr"
	"github.com/sjawhar/murmur/internal/audio"
	"github.com/sjawhar/murmur/internal/llm"
	"github.com/sjawhar/murmur/internal/storage"
	"github.com/sjawhar/murmur/internal/tts"
)

const (
	DefaultSTTModel        = "small"
	DefaultGenerationModel = "gemma3:4b"
	DefaultInstruction     = "Please reformat and improve this transcription, fixing any errors and making it more readable."
)

// Notifier is told about changes to the stored history.
type Notifier interface {
	BroadcastRecordingCreated(rec storage.Recording)
	BroadcastRecordingDeleted(id string)
	BroadcastChatCreated(entry storage.ChatEntry)
}

type nopNotifier struct{}

func (nopNotifier) BroadcastRecordingCreated(storage.Recording) {}
func (nopNotifier) BroadcastRecordingDeleted(string)            {}
func (nopNotifier) BroadcastChatCreated(storage.ChatEntry)      {}

type Options struct {
	Transcriber *Transcriber
	Recordings  *storage.RecordingStore
	Chats       *storage.ChatStore
	Generator   *llm.Generator
	Speech      *tts.Synthesizer
	Notifier    Notifier

	DefaultSTTModel        string
	DefaultGenerationModel string
	GenerationModels       []string
}

// Service implements the upload, chat, reformat and speak operations. Engine
// steps are detached from the request context: once started they run to
// completion even if the client goes away.
type Service struct {
	transcriber *Transcriber
	recordings  *storage.RecordingStore
	chats       *storage.ChatStore
	generator   *llm.Generator
	speech      *tts.Synthesizer
	notifier    Notifier

	defaultSTT   string
	defaultModel string
	models       []string

	now func() time.Time
}

func New(opts Options) *Service {
	s := &Service{
		transcriber:  opts.Transcriber,
		recordings:   opts.Recordings,
		chats:        opts.Chats,
		generator:    opts.Generator,
		speech:       opts.Speech,
		notifier:     opts.Notifier,
		defaultSTT:   opts.DefaultSTTModel,
		defaultModel: opts.DefaultGenerationModel,
		models:       append([]string(nil), opts.GenerationModels...),
		now:          time.Now,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.defaultSTT == "" {
		s.defaultSTT = DefaultSTTModel
	}
	if s.defaultModel == "" {
		s.defaultModel = DefaultGenerationModel
	}
	return s
}

type UploadResult struct {
	Transcription string `json:"transcription"`
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	Model         string `json:"model"`
}

// Upload transcribes audio with the named engine (DefaultSTTModel when
// empty) and stores the Recording. filename is only used for its extension.
func (s *Service) Upload(ctx context.Context, r io.Reader, filename, engine string) (UploadResult, error) {
	if r == nil {
		return UploadResult{}, apperr.Input("No file received")
	}
	if engine == "" {
		engine = s.defaultSTT
	}

	work := context.WithoutCancel(ctx)
	rec, err := s.transcriber.Run(work, r, filepath.Ext(filename), engine)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoAudio):
			return UploadResult{}, apperr.Input("No file received")
		case errors.Is(err, ErrUnknownEngine):
			return UploadResult{}, apperr.Input(fmt.Sprintf("Unknown model: %s", engine))
		}
		return UploadResult{}, apperr.Wrap(err, "Transcription failed")
	}

	if err := s.recordings.InsertFront(work, rec); err != nil {
		return UploadResult{}, apperr.Wrap(err, "Failed to save recording")
	}
	s.notifier.BroadcastRecordingCreated(rec)

	return UploadResult{
		Transcription: rec.Transcription,
		ID:            rec.ID,
		Filename:      rec.Filename,
		Model:         rec.Model,
	}, nil
}

func (s *Service) Recordings(ctx context.Context) ([]storage.Recording, error) {
	recs, err := s.recordings.LoadAll(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to load history")
	}
	return recs, nil
}

func (s *Service) Recording(ctx context.Context, id string) (storage.Recording, error) {
	return s.recordings.FindByID(ctx, id)
}

// DeleteRecording removes the Recording and its audio artifact. An unknown id
// is reported as NotFound.
func (s *Service) DeleteRecording(ctx context.Context, id string) error {
	deleted, err := s.recordings.DeleteByID(ctx, id)
	if err != nil {
		return apperr.Wrap(err, "Failed to delete recording")
	}
	if !deleted {
		return apperr.NotFound("Recording not found")
	}
	s.notifier.BroadcastRecordingDeleted(id)
	slog.Info("assistant: recording deleted", "id", id)
	return nil
}

type ChatRequest struct {
	Message   string `json:"message"`
	Context   string `json:"context"`
	Model     string `json:"model"`
	Voice     string `json:"voice"`
	EnableTTS *bool  `json:"enable_tts"`
}

type ChatResult struct {
	Response string  `json:"response"`
	ID       string  `json:"id"`
	TTSFile  *string `json:"tts_file"`
	TTSURL   *string `json:"tts_url"`
}

// Chat answers a message, optionally speaks the answer and records the turn.
// Generation failures are not errors: the diagnostic becomes the response.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (ChatResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return ChatResult{}, apperr.Input("No message provided")
	}
	model := s.modelOrDefault(req.Model)
	voice := voiceOrDefault(req.Voice)
	work := context.WithoutCancel(ctx)

	reply := s.generator.Query(work, req.Message, req.Context, model)
	if reply.Failed() {
		slog.Warn("assistant: chat answered with diagnostic", "model", model, "error", reply.Err)
	}

	var file *string
	if enabled(req.EnableTTS) {
		file = s.speak(work, reply.Text, voice)
	}

	entry := storage.ChatEntry{
		ID:          uuid.NewString(),
		Timestamp:   s.now().Format(time.RFC3339Nano),
		UserMessage: req.Message,
		AIResponse:  reply.Text,
		Context:     req.Context,
		Model:       model,
		Voice:       voice,
		TTSFile:     file,
	}
	if err := s.chats.InsertFront(work, entry); err != nil {
		return ChatResult{}, apperr.Wrap(err, "Failed to save chat")
	}
	s.notifier.BroadcastChatCreated(entry)

	return ChatResult{
		Response: reply.Text,
		ID:       entry.ID,
		TTSFile:  file,
		TTSURL:   ttsURL(file),
	}, nil
}

func (s *Service) Chats(ctx context.Context) ([]storage.ChatEntry, error) {
	entries, err := s.chats.LoadAll(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "Failed to load chat history")
	}
	return entries, nil
}

type ReformatRequest struct {
	Instruction string `json:"instruction"`
	Model       string `json:"model"`
	Voice       string `json:"voice"`
	EnableTTS   *bool  `json:"enable_tts"`
}

type ReformatResult struct {
	Response string  `json:"response"`
	TTSFile  *string `json:"tts_file"`
	TTSURL   *string `json:"tts_url"`
}

// Reformat runs an instruction against a stored transcription. The result is
// not added to the chat history.
func (s *Service) Reformat(ctx context.Context, id string, req ReformatRequest) (ReformatResult, error) {
	rec, err := s.recordings.FindByID(ctx, id)
	if err != nil {
		return ReformatResult{}, err
	}

	instruction := req.Instruction
	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultInstruction
	}
	model := s.modelOrDefault(req.Model)
	work := context.WithoutCancel(ctx)

	reply := s.generator.Query(work, instruction, rec.Transcription, model)
	if reply.Failed() {
		slog.Warn("assistant: reformat answered with diagnostic", "id", id, "model", model, "error", reply.Err)
	}

	var file *string
	if enabled(req.EnableTTS) {
		file = s.speak(work, reply.Text, voiceOrDefault(req.Voice))
	}

	return ReformatResult{Response: reply.Text, TTSFile: file, TTSURL: ttsURL(file)}, nil
}

type SpeakResult struct {
	TTSFile string `json:"tts_file"`
	TTSURL  string `json:"tts_url"`
}

// Speak synthesizes text on its own. Unlike Chat and Reformat, a synthesis
// failure is an error here.
func (s *Service) Speak(ctx context.Context, text, voice string) (SpeakResult, error) {
	if strings.TrimSpace(text) == "" {
		return SpeakResult{}, apperr.Input("No text provided")
	}

	out := s.speech.Synthesize(context.WithoutCancel(ctx), text, voiceOrDefault(voice))
	if !out.OK() {
		return SpeakResult{}, apperr.Synthesis("Failed to generate speech", out.Err)
	}
	return SpeakResult{TTSFile: out.File, TTSURL: "/tts/" + out.File}, nil
}

// SpeechPath returns the on-disk path of a synthesized artifact, or NotFound.
// file must already be a bare file name.
func (s *Service) SpeechPath(file string) (string, error) {
	path := s.speech.Dir().Join(file)
	if !audio.Exists(path) {
		return "", apperr.NotFound("Audio file not found")
	}
	return path, nil
}

// speak returns the artifact name, or nil when synthesis failed.
func (s *Service) speak(ctx context.Context, text, voice string) *string {
	out := s.speech.Synthesize(ctx, text, voice)
	if !out.OK() {
		return nil
	}
	file := out.File
	return &file
}

type Catalog struct {
	GenerationModels []string          `json:"generation_models"`
	Voices           map[string]string `json:"voices"`
}

// Catalog lists the configured generation models, followed by any extra
// models the provider reports as installed, and the voice catalog.
func (s *Service) Catalog(ctx context.Context) Catalog {
	models := append([]string(nil), s.models...)
	seen := make(map[string]struct{}, len(models))
	for _, m := range models {
		seen[m] = struct{}{}
	}

	installed, err := s.generator.ListModels(ctx)
	if err != nil {
		slog.Debug("assistant: listing installed models failed", "provider", s.generator.Provider(), "error", err)
	}
	for _, m := range installed {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		models = append(models, m)
	}
	if models == nil {
		models = []string{}
	}

	return Catalog{GenerationModels: models, Voices: tts.Voices()}
}

// Sweep removes audio and speech artifacts that no stored entity references
// and that are older than grace.
func (s *Service) Sweep(ctx context.Context, grace time.Duration) ([]string, error) {
	audioPaths, err := s.recordings.AudioPaths(ctx)
	if err != nil {
		return nil, err
	}
	ttsFiles, err := s.chats.TTSFiles(ctx)
	if err != nil {
		return nil, err
	}

	audioDir := filepath.Clean(s.transcriber.dir.Path())
	ttsDir := filepath.Clean(s.speech.Dir().Path())
	referenced := func(path string) bool {
		if _, ok := audioPaths[filepath.Clean(path)]; ok {
			return true
		}
		if filepath.Dir(path) == ttsDir {
			_, ok := ttsFiles[filepath.Base(path)]
			return ok
		}
		return false
	}

	dirs := []string{audioDir}
	if ttsDir != audioDir {
		dirs = append(dirs, ttsDir)
	}
	removed, err := audio.Sweep(dirs, referenced, grace, s.now())
	if err != nil {
		return removed, fmt.Errorf("sweep artifacts: %w", err)
	}
	if len(removed) > 0 {
		slog.Info("assistant: orphaned artifacts removed", "count", len(removed))
	}
	return removed, nil
}

func (s *Service) modelOrDefault(model string) string {
	if strings.TrimSpace(model) == "" {
		return s.defaultModel
	}
	return model
}

// voiceOrDefault maps empty and uncatalogued voices to the default voice.
func voiceOrDefault(voice string) string {
	if !tts.KnownVoice(voice) {
		return tts.DefaultVoice
	}
	return voice
}

func enabled(flag *bool) bool {
	return flag == nil || *flag
}

func ttsURL(file *string) *string {
	if file == nil {
		return nil
	}
	url := "/tts/" + *file
	return &url
}
