// Package funfact produces short city trivia texts via a generative
// backend, with a deterministic local fallback and a TTL cache.
package funfact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strings"
)

// TextGenerator is the narrow capability a fun-fact backend must provide.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient is a thin wrapper around the Gemini generateContent REST
// API.
type GeminiClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewGeminiClient constructs a client with sane defaults.
func NewGeminiClient(apiKey, model string, opts ...func(*GeminiClient)) *GeminiClient {
	c := &GeminiClient{
		baseURL:    defaultGeminiBaseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient overrides the internal HTTP client.
func WithHTTPClient(hc *http.Client) func(*GeminiClient) {
	return func(c *GeminiClient) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the default API base URL (useful for tests).
func WithBaseURL(url string) func(*GeminiClient) {
	return func(c *GeminiClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate asks Gemini for a completion of the prompt.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("funfact: missing Gemini API key")
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("funfact: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("funfact: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("funfact: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("funfact: api error %d: %s", resp.StatusCode, string(data))
	}

	var payload geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("funfact: decode response: %w", err)
	}
	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("funfact: empty completion")
	}

	text := strings.TrimSpace(payload.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", errors.New("funfact: empty completion")
	}
	return text, nil
}

// LocalGenerator is a rule-based generator that never fails. The template
// choice is derived from the city name so repeated calls for the same city
// stay stable.
type LocalGenerator struct{}

var localTemplates = []string{
	"%s sits in a region where daily weather can shift noticeably between morning and afternoon — locals plan around it.",
	"Air quality in %s often tracks traffic and seasonal winds, which is why daily PM2.5 averages tell a better story than single readings.",
	"Rainfall in %s tends to arrive in short intense bursts rather than all-day drizzle, so daily totals can be deceiving.",
	"%s residents know that the felt temperature can differ from the thermometer by several degrees on humid days.",
	"The wettest day of a week in %s often carries more rain than the other six combined.",
}

func (LocalGenerator) Generate(_ context.Context, prompt string) (string, error) {
	h := fnv.New32a()
	h.Write([]byte(prompt))
	tpl := localTemplates[int(h.Sum32())%len(localTemplates)]
	city := cityFromPrompt(prompt)
	return fmt.Sprintf(tpl, city), nil
}

// cityFromPrompt recovers the city from the standard prompt wording; as a
// last resort, the whole prompt is used.
func cityFromPrompt(prompt string) string {
	const marker = "around "
	if i := strings.LastIndex(prompt, marker); i >= 0 {
		rest := strings.TrimSuffix(prompt[i+len(marker):], ".")
		if rest != "" {
			return rest
		}
	}
	return prompt
}
