// Package openai vectorizes text through an OpenAI-compatible embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	openai "github.com/sashabaranov/go-openai"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
)

// DefaultTimeout bounds a single embeddings call.
const DefaultTimeout = 15 * time.Second

// Config holds the provider settings. BaseURL switches to a compatible
// gateway; Dimensions is sent only when positive, since older models reject it.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Embedder calls the embeddings endpoint one text at a time.
type Embedder struct {
	client  *openai.Client
	base    openai.EmbeddingRequest
	timeout time.Duration
}

// NewEmbedder creates a provider client.
func NewEmbedder(cfg *Config) *Embedder {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		cc.HTTPClient = cfg.HTTPClient
	}
	e := &Embedder{
		client: openai.NewClientWithConfig(cc),
		base: openai.EmbeddingRequest{
			Model:          openai.EmbeddingModel(cfg.Model),
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
			User:           cfg.User,
		},
		timeout: cfg.Timeout,
	}
	if cfg.Dimensions > 0 {
		e.base.Dimensions = cfg.Dimensions
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	return e
}

// Embed implements domain.Embedder. Every failure wraps
// domain.ErrEmbeddingProviderError.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.EmbeddingResult{}, fmt.Errorf("empty input: %w", domain.ErrEmbeddingProviderError)
	}

	req := e.base
	req.Input = []string{text}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return domain.EmbeddingResult{}, describe(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return domain.EmbeddingResult{}, fmt.Errorf("no vector in response: %w", domain.ErrEmbeddingProviderError)
	}
	return domain.EmbeddingResult{
		Embedding:    resp.Data[0].Embedding,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck lists models, which needs a valid key but costs no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// describe converts a client error into one that names the HTTP status and
// the provider's message. The cause chain is kept so callers can still
// detect deadlines.
func describe(err error) error {
	var (
		apiErr *openai.APIError
		reqErr *openai.RequestError
	)
	switch {
	case errors.As(err, &apiErr):
		return fmt.Errorf("%w: status %d: %s", domain.ErrEmbeddingProviderError, apiErr.HTTPStatusCode, apiErr.Message)
	case errors.As(err, &reqErr):
		msg := detailMessage(reqErr.Body)
		if msg == "" {
			msg = strings.TrimSpace(string(reqErr.Body))
		}
		return fmt.Errorf("%w: status %d: %s", domain.ErrEmbeddingProviderError, reqErr.HTTPStatusCode, msg)
	default:
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
	}
}

// detailMessage reads {"detail": "..."}, the error body shape of several
// self-hosted gateways.
func detailMessage(body []byte) string {
	var b struct {
		Detail string `json:"detail"`
	}
	if err := sonic.Unmarshal(body, &b); err != nil {
		return ""
	}
	return b.Detail
}
