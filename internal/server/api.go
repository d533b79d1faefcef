package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/sjawhar/murmur/internal/apperr"
	"github.com/sjawhar/murmur/internal/assistant"
	"github.com/sjawhar/murmur/internal/storage"
)

var (
	idPattern      = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	ttsFilePattern = regexp.MustCompile(`^tts_[a-zA-Z0-9-]+\.wav$`)
)

// multipartMemory is how much of an upload is held in memory before the
// rest spills to a temp file.
const multipartMemory = 32 << 20

// Assistant is the set of operations the HTTP surface exposes.
type Assistant interface {
	Upload(ctx context.Context, r io.Reader, filename, engine string) (assistant.UploadResult, error)
	Recordings(ctx context.Context) ([]storage.Recording, error)
	Recording(ctx context.Context, id string) (storage.Recording, error)
	DeleteRecording(ctx context.Context, id string) error
	Chat(ctx context.Context, req assistant.ChatRequest) (assistant.ChatResult, error)
	Chats(ctx context.Context) ([]storage.ChatEntry, error)
	Reformat(ctx context.Context, id string, req assistant.ReformatRequest) (assistant.ReformatResult, error)
	Speak(ctx context.Context, text, voice string) (assistant.SpeakResult, error)
	SpeechPath(file string) (string, error)
	Catalog(ctx context.Context) assistant.Catalog
}

func registerAPIRoutes(mux *http.ServeMux, svc Assistant, opts Options) {
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, opts.MaxUploadBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSONError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit))
				return
			}
			writeJSONError(w, http.StatusBadRequest, "No file received")
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		file, header, err := r.FormFile("audio")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "No file received")
			return
		}
		defer func() { _ = file.Close() }()

		res, err := svc.Upload(r.Context(), file, header.Filename, r.FormValue("model"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("GET /history", func(w http.ResponseWriter, r *http.Request) {
		recs, err := svc.Recordings(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"recordings": recs})
	})

	mux.HandleFunc("GET /recording/{id}", func(w http.ResponseWriter, r *http.Request) {
		rec, err := findRecording(r, svc)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	mux.HandleFunc("GET /download/{id}", func(w http.ResponseWriter, r *http.Request) {
		rec, err := findRecording(r, svc)
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": rec.Filename}))
		serveArtifact(w, r, rec.AudioPath)
	})

	mux.HandleFunc("DELETE /delete/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !idPattern.MatchString(id) {
			writeJSONError(w, http.StatusNotFound, "Recording not found")
			return
		}
		if err := svc.DeleteRecording(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})

	mux.HandleFunc("POST /ai/chat", func(w http.ResponseWriter, r *http.Request) {
		var req assistant.ChatRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		res, err := svc.Chat(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("GET /ai/chat/history", func(w http.ResponseWriter, r *http.Request) {
		chats, err := svc.Chats(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"chats": chats})
	})

	mux.HandleFunc("POST /ai/reformat/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !idPattern.MatchString(id) {
			writeJSONError(w, http.StatusNotFound, "Recording not found")
			return
		}
		var req assistant.ReformatRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		res, err := svc.Reformat(r.Context(), id, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("GET /tts/{filename}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("filename")
		if !ttsFilePattern.MatchString(name) {
			writeJSONError(w, http.StatusNotFound, "Audio file not found")
			return
		}
		path, err := svc.SpeechPath(name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		serveArtifact(w, r, path)
	})

	mux.HandleFunc("GET /ai/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Catalog(r.Context()))
	})

	mux.HandleFunc("POST /ai/speak", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text  string `json:"text"`
			Voice string `json:"voice"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		res, err := svc.Speak(r.Context(), req.Text, req.Voice)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		engines := []string{}
		if opts.Engines != nil {
			engines = append(engines, opts.Engines()...)
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "engines": engines})
	})
}

func findRecording(r *http.Request, svc Assistant) (storage.Recording, error) {
	id := r.PathValue("id")
	if !idPattern.MatchString(id) {
		return storage.Recording{}, apperr.NotFound("Recording not found")
	}
	return svc.Recording(r.Context(), id)
}

// decodeJSON reads an optional JSON body into dst. An empty body leaves dst
// at its zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSONError(w, http.StatusBadRequest, "Invalid JSON body")
	return false
}

func serveArtifact(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "Audio file not found")
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		writeJSONError(w, http.StatusNotFound, "Audio file not found")
		return
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentTypeForAudio(path))
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}

func contentTypeForAudio(path string) string {
	switch filepath.Ext(path) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".webm":
		return "audio/webm"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("server: request failed", "request_id", RequestID(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeJSONError(w, status, apperr.Message(err))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
