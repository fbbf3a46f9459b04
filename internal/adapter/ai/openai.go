package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/peoplelab/hr-kb/internal/port"
)

// OpenAIConfig holds the configuration for an OpenAI-compatible
// embeddings endpoint.
type OpenAIConfig struct {
	BaseURL   string // e.g. https://api.openai.com or https://models.github.ai/inference
	APIKey    string // Bearer token
	Model     string // e.g. text-embedding-3-large
	Dimension int    // expected vector length
	Timeout   time.Duration
}

// OpenAIProvider implements port.EmbeddingProvider against the
// /v1/embeddings API. The HTTP client is built lazily on first use so the
// rest of the application stays usable when no API key is configured;
// the missing-credential failure surfaces only when a vector is actually
// needed. Safe for concurrent use after construction.
type OpenAIProvider struct {
	cfg OpenAIConfig

	initOnce   sync.Once
	initErr    error
	httpClient *http.Client
}

// NewOpenAIProvider creates a new embedding provider. No network or
// credential check happens here.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &OpenAIProvider{cfg: cfg}
}

// ModelName returns the embedding model identifier.
func (p *OpenAIProvider) ModelName() string {
	return p.cfg.Model
}

// Dimension returns the expected vector length.
func (p *OpenAIProvider) Dimension() int {
	return p.cfg.Dimension
}

// Embed generates a vector embedding for the given text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.initOnce.Do(func() {
		if p.cfg.APIKey == "" {
			p.initErr = port.ErrEmbeddingNotConfigured
			return
		}
		p.httpClient = &http.Client{Timeout: p.cfg.Timeout}
	})
	if p.initErr != nil {
		return nil, p.initErr
	}

	payload := map[string]interface{}{
		"model":           p.cfg.Model,
		"input":           normalizeText(text),
		"encoding_format": "float",
	}

	body, err := p.post(ctx, "/v1/embeddings", payload)
	if err != nil {
		return nil, &port.ProviderError{Op: "embed", Err: err}
	}

	var resp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &port.ProviderError{Op: "embed", Err: fmt.Errorf("decode: %w", err)}
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, &port.ProviderError{Op: "embed", Err: fmt.Errorf("empty response")}
	}

	vec := resp.Data[0].Embedding
	if p.cfg.Dimension > 0 && len(vec) != p.cfg.Dimension {
		return nil, &port.ProviderError{
			Op:  "embed",
			Err: fmt.Errorf("unexpected dimension %d, want %d", len(vec), p.cfg.Dimension),
		}
	}

	return vec, nil
}

// post is a helper for POST requests to the embeddings endpoint.
func (p *OpenAIProvider) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embeddings API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// normalizeText replaces newlines with spaces. The embedding model
// produces degraded vectors for inputs with raw newlines.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return text
}
