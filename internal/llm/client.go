package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

const answerSystemPrompt = `You answer questions using only the provided context. ` +
	`If the context does not contain the answer, say "insufficient information". ` +
	`Answer in plain prose without citing source numbers or scores.`

// Client is a client for the llama.cpp chat completions API, used for local
// answer generation.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
}

// NewClient creates a new generation client.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		client:  newHTTPClient(timeout),
	}
}

// ChatRequest represents the request payload for chat completions.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Logprobs bool      `json:"logprobs,omitempty"`
}

// TokenLogprob is the per-token logprob entry in a chat response.
type TokenLogprob struct {
	Token   string  `json:"token"`
	Logprob float64 `json:"logprob"`
}

// ChoiceLogprobs carries the per-token logprobs of a choice.
type ChoiceLogprobs struct {
	Content []TokenLogprob `json:"content"`
}

// ChatChoice represents a single choice in the chat response.
type ChatChoice struct {
	Index        int             `json:"index"`
	Message      Message         `json:"message"`
	FinishReason string          `json:"finish_reason"`
	Logprobs     *ChoiceLogprobs `json:"logprobs,omitempty"`
}

// ChatResponse represents the response from the chat completions API.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Choices []ChatChoice `json:"choices"`
}

// Generate produces an answer to the question grounded in the given context
// text. The returned confidence is derived from the completion's token
// logprobs; responses without logprobs get the neutral default.
func (c *Client) Generate(ctx context.Context, question, contextText string) (Generation, error) {
	url := fmt.Sprintf("%s/v1/chat/completions", c.BaseURL)

	userPrompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, question)
	payload := ChatRequest{
		Model: c.Model,
		Messages: []Message{
			{Role: "system", Content: answerSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Logprobs: true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Generation{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return Generation{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Generation{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return Generation{}, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Generation{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return Generation{}, fmt.Errorf("no choices returned")
	}

	choice := chatResp.Choices[0]
	return Generation{
		Answer:     choice.Message.Content,
		Confidence: confidenceFromLogprobs(choice.Logprobs),
	}, nil
}

// confidenceFromLogprobs maps mean token logprob to [0,1] via exp. A model
// that is certain of every token approaches 1; scattered low-probability
// tokens pull the mean down sharply.
func confidenceFromLogprobs(lp *ChoiceLogprobs) float64 {
	if lp == nil || len(lp.Content) == 0 {
		return neutralConfidence
	}

	var sum float64
	for _, tok := range lp.Content {
		sum += tok.Logprob
	}
	mean := sum / float64(len(lp.Content))

	conf := math.Exp(mean)
	if conf > 1 {
		conf = 1
	}
	if conf < 0 || math.IsNaN(conf) {
		conf = 0
	}
	return conf
}
