// Package llm is a client for a TensorZero-style inference gateway exposing
// a chat endpoint that returns typed text content.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMissingGateway is returned when no gateway URL is configured.
var ErrMissingGateway = errors.New("missing gateway url")

const defaultFunction = "hsuf_enrichment"

// Config locates and names the gateway function.
type Config struct {
	GatewayURL string
	APIKey     string
	Function   string
	Model      string
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption when the gateway provides it.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the extracted text payload of a chat call.
type Response struct {
	Text  string
	Usage *Usage
}

// Client issues chat requests against the gateway.
type Client struct {
	http   *http.Client
	config Config
}

// NewClient builds a client over the shared outbound HTTP client.
func NewClient(httpClient *http.Client, config Config) *Client {
	return &Client{http: httpClient, config: config}
}

type chatRequest struct {
	FunctionName string    `json:"function_name"`
	ModelName    string    `json:"model_name,omitempty"`
	Input        chatInput `json:"input"`
}

type chatInput struct {
	Messages []Message `json:"messages"`
}

type gatewayResponse struct {
	Content []responseContent `json:"content"`
	Usage   *Usage            `json:"usage"`
}

type responseContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Chat posts the messages to the gateway's inference endpoint and returns the
// first text content item.
func (c *Client) Chat(ctx context.Context, messages []Message) (*Response, error) {
	var gateway = strings.TrimSpace(c.config.GatewayURL)
	if gateway == "" {
		return nil, ErrMissingGateway
	}

	var function = c.config.Function
	if function == "" {
		function = defaultFunction
	}
	body, err := json.Marshal(chatRequest{
		FunctionName: function,
		ModelName:    c.config.Model,
		Input:        chatInput{Messages: messages},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gateway+"/inference", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("X-API-Key", c.config.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llm request: HTTP %d", resp.StatusCode)
	}

	var payload gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("llm response: %w", err)
	}
	for _, item := range payload.Content {
		if item.Type == "text" {
			return &Response{Text: item.Text, Usage: payload.Usage}, nil
		}
	}
	return nil, fmt.Errorf("llm response: missing text content")
}
