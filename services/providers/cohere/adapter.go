package cohere

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
	defaultBaseURL = "https://api.cohere.ai"
)

// Adapter implements providers.Adapter for the Cohere v1 chat endpoint
type Adapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
}

// NewAdapter creates a new Cohere adapter
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
	return providers.Cohere
}

// Execute sends a single-turn chat message with temperature and max tokens.
//
// Cohere's token reporting is not relied on. Both counts are estimated with
// providers.EstimateTokens (ceil(chars/4)) on the raw prompt and the raw
// response text. This is an approximation, not a tokenizer count.
func (a *Adapter) Execute(ctx context.Context, req *providers.CompletionRequest) (*providers.Completion, error) {
	reqBody, err := json.Marshal(ChatRequest{
		Message:     req.Prompt,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, &providers.ProviderFailure{Provider: a.Name(), Message: "failed to marshal request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/v1/chat", bytes.NewReader(reqBody))
	if err != nil {
		return nil, &providers.ProviderFailure{Provider: a.Name(), Message: "failed to create request", Cause: err}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
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

	return &providers.Completion{
		Content: chatResp.Text,
		Usage: providers.NewUsage(
			providers.EstimateTokens(req.Prompt),
			providers.EstimateTokens(chatResp.Text),
		),
	}, nil
}

func handleErrorResponse(statusCode int, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Message == "" {
		return providers.NewStatusFailure(providers.Cohere, statusCode, strings.TrimSpace(string(body)))
	}
	return providers.NewStatusFailure(providers.Cohere, statusCode, errResp.Message)
}

// Cohere wire types

type ChatRequest struct {
	Message     string  `json:"message"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type ChatResponse struct {
	ResponseID   string `json:"response_id"`
	Text         string `json:"text"`
	GenerationID string `json:"generation_id"`
	FinishReason string `json:"finish_reason"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}
