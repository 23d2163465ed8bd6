// Package genai proxies course descriptions to an OpenAI-compatible chat
// completion endpoint and returns the model's structured JSON report.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const analysisPrompt = `You are a course advisor. Analyze the following course and respond with a JSON object containing exactly these keys:
"summary" (a two sentence overview),
"difficulty" (one of "beginner", "intermediate", "advanced"),
"topics" (an array of the main topics covered),
"prerequisites" (an array of recommended prerequisites),
"careerPaths" (an array of career paths this course supports).

Course: %s`

// Client calls a hosted chat completion router. BaseURL points at the
// /chat/completions endpoint, APIKey is sent as a bearer token.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat formatSpec    `json:"response_format"`
	MaxTokens      int           `json:"max_tokens"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type formatSpec struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// AnalyzeCourse sends the analysis prompt for the given course description
// and returns the model's JSON report verbatim.
func (c *Client) AnalyzeCourse(ctx context.Context, course string) (json.RawMessage, error) {
	if course == "" {
		return nil, fmt.Errorf("course description is required")
	}
	payload := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "user", Content: fmt.Sprintf(analysisPrompt, course)},
		},
		ResponseFormat: formatSpec{Type: "json_object"},
		MaxTokens:      1500,
		Temperature:    0.7,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling completion endpoint: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode, data)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("completion response has no choices")
	}
	content := parsed.Choices[0].Message.Content
	if !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("model returned invalid JSON")
	}
	return json.RawMessage(content), nil
}
