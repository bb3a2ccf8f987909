package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TokenizerClient counts tokens via the llama.cpp /tokenize endpoint. It is
// the first tier of the chunker's token counting chain: exact counts from
// the model that will embed the text, when the server is reachable.
type TokenizerClient struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewTokenizerClient creates a tokenizer client against the model server.
func NewTokenizerClient(baseURL, apiKey string, timeout time.Duration) *TokenizerClient {
	return &TokenizerClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		client:  newHTTPClient(timeout),
	}
}

// TokenizeRequest represents the request payload for /tokenize.
type TokenizeRequest struct {
	Content string `json:"content"`
}

// TokenizeResponse represents the response from /tokenize.
type TokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

// CountTokens tokenizes the text on the model server and returns the count.
func (c *TokenizerClient) CountTokens(ctx context.Context, text string) (int, error) {
	url := fmt.Sprintf("%s/tokenize", c.BaseURL)

	body, err := json.Marshal(TokenizeRequest{Content: text})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var tokenizeResp TokenizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenizeResp); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	return len(tokenizeResp.Tokens), nil
}

// Name identifies the counter tier in logs.
func (c *TokenizerClient) Name() string { return "model_server" }

// Available probes the model server health endpoint with a short deadline.
func (c *TokenizerClient) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, "GET", fmt.Sprintf("%s/health", c.BaseURL), nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return resp.StatusCode == http.StatusOK
}
