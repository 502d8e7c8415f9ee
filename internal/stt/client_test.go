package stt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/vowrite/vowrite/internal/apierr"
	"github.com/vowrite/vowrite/internal/config"
)

func writeTempAudio(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vowrite_test.wav")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write temp audio: %v", err)
	}
	return path
}

func clientFor(url string, provider config.Provider) *Client {
	return NewClient(config.APIConfig{
		Provider: provider,
		BaseURL:  url,
		STTModel: "whisper-1",
		APIKey:   "sk-test",
	})
}

func TestTranscribeSuccess(t *testing.T) {
	var gotModel, gotFormat, gotFilename, gotPartType, gotAuth string
	var gotPayload []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		gotFormat = r.FormValue("response_format")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		gotFilename = header.Filename
		gotPartType = header.Header.Get("Content-Type")
		gotPayload, _ = io.ReadAll(file)

		w.Write([]byte("  hello world \n"))
	}))
	defer srv.Close()

	path := writeTempAudio(t, []byte("RIFFdata"))
	text, err := clientFor(srv.URL+"/v1", config.ProviderOpenAI).Transcribe(context.Background(), path)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}

	if text != "hello world" {
		t.Errorf("expected trimmed transcript, got %q", text)
	}
	if gotModel != "whisper-1" {
		t.Errorf("model field = %q", gotModel)
	}
	if gotFormat != "text" {
		t.Errorf("response_format = %q", gotFormat)
	}
	if gotFilename != "audio.m4a" {
		t.Errorf("filename = %q", gotFilename)
	}
	if gotPartType != "audio/mp4" {
		t.Errorf("file part content type = %q", gotPartType)
	}
	if string(gotPayload) != "RIFFdata" {
		t.Errorf("payload mismatch: %q", gotPayload)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("authorization = %q", gotAuth)
	}
}

func TestTranscribeDeletesTempFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	path := writeTempAudio(t, []byte("x"))
	if _, err := clientFor(srv.URL, config.ProviderOpenAI).Transcribe(context.Background(), path); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("temp audio file should have been removed")
	}
}

func TestTranscribeDeletesTempFileOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	path := writeTempAudio(t, []byte("x"))
	if _, err := clientFor(srv.URL, config.ProviderOpenAI).Transcribe(context.Background(), path); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("temp audio file should have been removed on failure too")
	}
}

func TestTranscribeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Incorrect API key provided"))
	}))
	defer srv.Close()

	path := writeTempAudio(t, []byte("x"))
	_, err := clientFor(srv.URL, config.ProviderOpenAI).Transcribe(context.Background(), path)
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *apierr.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *apierr.APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if apiErr.Body != "Incorrect API key provided" {
		t.Errorf("body = %q", apiErr.Body)
	}
	if apierr.Classify(err) != apierr.CategoryCredential {
		t.Errorf("401 should classify as credential")
	}
}

func TestTranscribeOpenRouterAttributionHeaders(t *testing.T) {
	var referer, title string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("HTTP-Referer")
		title = r.Header.Get("X-Title")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	path := writeTempAudio(t, []byte("x"))
	if _, err := clientFor(srv.URL, config.ProviderOpenRouter).Transcribe(context.Background(), path); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if referer != "https://vowrite.com" || title != "Vowrite" {
		t.Errorf("missing attribution headers: referer=%q title=%q", referer, title)
	}

	// Non-OpenRouter providers must never send them.
	referer, title = "", ""
	path = writeTempAudio(t, []byte("x"))
	if _, err := clientFor(srv.URL, config.ProviderGroq).Transcribe(context.Background(), path); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if referer != "" || title != "" {
		t.Errorf("unexpected attribution headers for groq: referer=%q title=%q", referer, title)
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent when the file is unreadable")
	}))
	defer srv.Close()

	_, err := clientFor(srv.URL, config.ProviderOpenAI).Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	if err == nil {
		t.Fatal("expected error for missing audio file")
	}
}
