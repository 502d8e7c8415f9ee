// Package stt provides the speech-to-text transcription client.
package stt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"

	"github.com/vowrite/vowrite/internal/apierr"
	"github.com/vowrite/vowrite/internal/config"
	. "github.com/vowrite/vowrite/internal/logging"
)

// Upload-dominated, so the timeout is deliberately longer than the polish call.
const defaultTimeout = 60 * time.Second

// Client sends recorded audio to an OpenAI-compatible transcriptions endpoint.
type Client struct {
	cfg    config.APIConfig
	client *http.Client
}

// NewClient creates a transcription client for the given provider settings.
func NewClient(cfg config.APIConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: defaultTimeout},
	}
}

// Transcribe uploads the audio file and returns the transcript, trimmed of
// surrounding whitespace. The temp audio file is removed after the attempt
// regardless of outcome; removal failures are swallowed.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	defer func() {
		if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
			L_debug("stt: failed to remove temp audio", "path", audioPath, "error", err)
		}
	}()

	audioData, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("read audio file: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("model", c.cfg.STTModel); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := writer.WriteField("response_format", "text"); err != nil {
		return "", fmt.Errorf("write response_format field: %w", err)
	}

	// The wire contract names the payload audio.m4a with an audio/mp4
	// content type, independent of the local capture container.
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="audio.m4a"`)
	header.Set("Content-Type", "audio/mp4")
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(audioData); err != nil {
		return "", fmt.Errorf("write audio payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.cfg.Provider == config.ProviderOpenRouter {
		// OpenRouter's terms require app attribution on every request.
		req.Header.Set("HTTP-Referer", "https://vowrite.com")
		req.Header.Set("X-Title", "Vowrite")
	}

	L_debug("stt: sending", "url", endpoint, "model", c.cfg.STTModel, "bytes", len(audioData))

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		L_error("stt: request failed", "status", resp.StatusCode, "body", string(body))
		return "", &apierr.APIError{
			Kind:       apierr.KindAPI,
			Op:         "transcribe",
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	// Response is plain text when response_format=text.
	result := strings.TrimSpace(string(body))
	L_elapsed(start, "stt: transcription complete", "length", len(result))
	return result, nil
}
