// Package polish provides the AI text-cleanup client.
package polish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vowrite/vowrite/internal/apierr"
	"github.com/vowrite/vowrite/internal/config"
	. "github.com/vowrite/vowrite/internal/logging"
)

// Text-only payloads, so the timeout is tighter than the transcription upload.
const defaultTimeout = 30 * time.Second

const (
	temperature = 0.3
	maxTokens   = 4096
)

// openRouterTransport adds Vowrite attribution headers to OpenRouter requests
type openRouterTransport struct {
	base http.RoundTripper
}

func (t *openRouterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("HTTP-Referer", "https://vowrite.com")
	req.Header.Set("X-Title", "Vowrite")
	if t.base == nil {
		return http.DefaultTransport.RoundTrip(req)
	}
	return t.base.RoundTrip(req)
}

// Client polishes raw transcripts through an OpenAI-compatible
// chat-completions endpoint.
type Client struct {
	cfg    config.APIConfig
	client *openai.Client
}

// NewClient creates a polish client for the given provider settings.
func NewClient(cfg config.APIConfig) *Client {
	occfg := openai.DefaultConfig(cfg.APIKey)
	occfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := &http.Client{Timeout: defaultTimeout}
	if cfg.Provider == config.ProviderOpenRouter {
		httpClient.Transport = &openRouterTransport{}
	}
	occfg.HTTPClient = httpClient

	return &Client{
		cfg:    cfg,
		client: openai.NewClientWithConfig(occfg),
	}
}

// Polish sends the transcript with the effective system prompt and returns
// the cleaned text, trimmed of surrounding whitespace.
func (c *Client) Polish(ctx context.Context, text, systemPrompt string) (string, error) {
	start := time.Now()
	L_debug("polish: sending", "model", c.cfg.PolishModel, "chars", len(text))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.PolishModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", asAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", &apierr.APIError{
			Kind: apierr.KindParse,
			Op:   "polish",
			Body: "response has no choices",
		}
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	L_elapsed(start, "polish: complete", "chars", len(content))
	return content, nil
}

// asAPIError converts go-openai client errors into the typed *apierr.APIError
// so the caller classifies by status code, not message text.
func asAPIError(err error) error {
	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) {
		return &apierr.APIError{
			Kind:       apierr.KindAPI,
			Op:         "polish",
			StatusCode: oaiErr.HTTPStatusCode,
			Body:       oaiErr.Message,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &apierr.APIError{
			Kind:       apierr.KindAPI,
			Op:         "polish",
			StatusCode: reqErr.HTTPStatusCode,
			Body:       fmt.Sprint(reqErr.Err),
		}
	}
	// Transport-level failure (timeout, refused connection); leave as-is for
	// the network classification path.
	return fmt.Errorf("polish request: %w", err)
}
