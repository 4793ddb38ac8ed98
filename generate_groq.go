package petpal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GroqGenerator produces replies via the Groq chat completions API
// (OpenAI-compatible wire format). Implements Generator.
type GroqGenerator struct {
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// GroqOption configures a GroqGenerator.
type GroqOption func(*GroqGenerator)

// WithGroqModel sets the chat model (default: llama-3.1-8b-instant).
func WithGroqModel(model string) GroqOption {
	return func(g *GroqGenerator) { g.model = model }
}

// WithGroqBaseURL sets the API base URL (default: https://api.groq.com/openai).
// Useful for proxies or compatible APIs.
func WithGroqBaseURL(url string) GroqOption {
	return func(g *GroqGenerator) { g.baseURL = url }
}

// WithGroqMaxTokens caps the reply length (default: 300).
func WithGroqMaxTokens(n int) GroqOption {
	return func(g *GroqGenerator) { g.maxTokens = n }
}

// NewGroqGenerator creates a text generator backed by Groq.
func NewGroqGenerator(apiKey string, opts ...GroqOption) *GroqGenerator {
	g := &GroqGenerator{
		apiKey:      apiKey,
		model:       "llama-3.1-8b-instant",
		baseURL:     "https://api.groq.com/openai",
		maxTokens:   300,
		temperature: 0.7,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate sends the prompt as a system message and returns the model's
// reply. The caller bounds the call with its context deadline.
func (g *GroqGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("no API key")
	}

	url := g.baseURL + "/v1/chat/completions"

	reqBody := groqChatRequest{
		Model: g.model,
		Messages: []groqMessage{
			{Role: "system", Content: prompt},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("groq chat %d: %s", resp.StatusCode, string(body[:min(len(body), 300)]))
	}

	var chatResp groqChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty completion returned")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// --- Groq chat API types ---

type groqChatRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqChatResponse struct {
	Choices []struct {
		Message groqMessage `json:"message"`
	} `json:"choices"`
}
