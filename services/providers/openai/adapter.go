package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/promptpilot/llm-gateway/services/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
)

// Adapter implements providers.Adapter for OpenAI-compatible chat completions
type Adapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
}

// NewAdapter creates a new OpenAI adapter
func NewAdapter(config providers.ProviderConfig) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Adapter{
		config:     config,
		httpClient: config.Client(),
	}
}

// Name returns the provider name
func (a *Adapter) Name() providers.ProviderID {
	return providers.OpenAI
}

// Execute sends a single-turn chat completion request
func (a *Adapter) Execute(ctx context.Context, req *providers.CompletionRequest) (*providers.Completion, error) {
	reqBody, err := json.Marshal(buildChatRequest(req))
	if err != nil {
		return nil, &providers.ProviderFailure{Provider: a.Name(), Message: "failed to marshal request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, &providers.ProviderFailure{Provider: a.Name(), Message: "failed to create request", Cause: err}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewTransportFailure(a.Name(), "HTTP request failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewTransportFailure(a.Name(), "failed to read response", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, handleErrorResponse(httpResp.StatusCode, respBody)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, &providers.ProviderFailure{
			Provider:   a.Name(),
			StatusCode: httpResp.StatusCode,
			Message:    "failed to unmarshal response",
			Cause:      err,
		}
	}

	return toCompletion(&chatResp), nil
}

// buildChatRequest sends every sampling parameter; stop is left out when empty
func buildChatRequest(req *providers.CompletionRequest) *ChatRequest {
	chatReq := &ChatRequest{
		Model:            req.Model,
		Messages:         []Message{{Role: "user", Content: req.Prompt}},
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
	}
	if len(req.StopSequences) > 0 {
		chatReq.Stop = req.StopSequences
	}
	return chatReq
}

// toCompletion takes prompt and completion counts verbatim; a missing usage
// block counts as zero. The total is always their sum.
func toCompletion(resp *ChatResponse) *providers.Completion {
	completion := &providers.Completion{}
	if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != nil {
		completion.Content = *resp.Choices[0].Message.Content
	}
	if resp.Usage != nil {
		completion.Usage = providers.NewUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	return completion
}

// handleErrorResponse handles OpenAI error responses
func handleErrorResponse(statusCode int, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewStatusFailure(providers.OpenAI, statusCode, strings.TrimSpace(string(body)))
	}
	return providers.NewStatusFailure(providers.OpenAI, statusCode, errResp.Error.Message)
}

// OpenAI wire types

type ChatRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Temperature      float64   `json:"temperature"`
	MaxTokens        int       `json:"max_tokens"`
	TopP             float64   `json:"top_p"`
	FrequencyPenalty float64   `json:"frequency_penalty"`
	PresencePenalty  float64   `json:"presence_penalty"`
	Stop             []string  `json:"stop,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseMessage content is null when the model produced no text
type ResponseMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ErrorResponse struct {
	Error Error `json:"error"`
}

type Error struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}
