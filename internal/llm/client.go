package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// notConfiguredText is returned in place of a completion when no API key is
// set, so the rest of the product stays usable in local setups.
const notConfiguredText = "AI feature not configured. Please add an API key."

// Generator produces a chat completion for a prompt.
type Generator interface {
	Complete(ctx context.Context, systemMessage, prompt string) (string, error)
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient builds a Client. An empty apiKey yields a client whose
// completions are a fixed placeholder rather than an error.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a system+user message pair and returns the trimmed
// completion text.
func (c *Client) Complete(ctx context.Context, systemMessage, prompt string) (string, error) {
	if c.apiKey == "" {
		return notConfiguredText, nil
	}

	messages := make([]chatMessage, 0, 2)
	if systemMessage != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemMessage})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ai response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("ai response decode: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("ai provider: %s", parsed.Error.Message)
		}
		return "", fmt.Errorf("ai provider: status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("ai provider: empty response")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
