package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/murmur/internal/audio"
)

const whisperReadyTimeout = 2 * time.Minute

// whisperEngine talks to a whisper-server instance over its /inference
// endpoint. When cmd is set the engine owns the process.
type whisperEngine struct {
	name    string
	baseURL string
	client  *http.Client

	cmd    *exec.Cmd
	exited chan struct{}
	once   sync.Once
}

type whisperResponse struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
	Error    string    `json:"error"`
}

// startWhisperServer spawns bin serving weightsPath on a free loopback port
// and waits until it answers HTTP.
func startWhisperServer(ctx context.Context, bin, name, weightsPath string) (*whisperEngine, error) {
	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("pick port: %w", err)
	}

	cmd := exec.Command(bin,
		"-m", weightsPath,
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(port),
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", filepath.Base(bin), err)
	}

	e := &whisperEngine{
		name:    name,
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		client:  &http.Client{},
		cmd:     cmd,
		exited:  make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(e.exited)
	}()

	if err := e.waitReady(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}
	slog.Info("stt: whisper-server ready", "engine", name, "addr", e.baseURL, "pid", cmd.Process.Pid)
	return e, nil
}

func (e *whisperEngine) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, whisperReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/", nil)
		if err != nil {
			return err
		}
		if resp, err := e.client.Do(req); err == nil {
			resp.Body.Close()
			return nil
		}

		select {
		case <-e.exited:
			return fmt.Errorf("whisper-server for %s exited before becoming ready", e.name)
		case <-ctx.Done():
			return fmt.Errorf("whisper-server for %s not ready: %w", e.name, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (e *whisperEngine) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	// whisper-server only decodes WAV unless built with ffmpeg support.
	inputPath, cleanup, err := audio.PrepareForInference(ctx, audioPath)
	if err != nil {
		slog.Warn("stt: transcode failed, sending original audio", "path", audioPath, "error", err)
		inputPath = audioPath
	}
	defer cleanup()

	f, err := os.Open(inputPath)
	if err != nil {
		return Result{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return Result{}, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return Result{}, fmt.Errorf("read audio: %w", err)
	}
	_ = mw.WriteField("response_format", "verbose_json")
	_ = mw.WriteField("temperature", "0.0")
	if err := mw.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/inference", &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("whisper inference: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("whisper inference: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode whisper response: %w", err)
	}
	if out.Error != "" {
		return Result{}, errors.New("whisper inference: " + out.Error)
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		text = JoinText(out.Segments)
	}
	return Result{Text: text, Language: out.Language, Segments: out.Segments}, nil
}

func (e *whisperEngine) Close() error {
	if e.cmd == nil || e.cmd.Process == nil {
		return nil
	}
	var err error
	e.once.Do(func() {
		select {
		case <-e.exited:
			return
		default:
		}
		if kerr := e.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			err = fmt.Errorf("kill whisper-server: %w", kerr)
			return
		}
		<-e.exited
	})
	return err
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
