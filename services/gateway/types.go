package gateway

import (
	"time"

	"github.com/promptpilot/llm-gateway/services/providers"
)

// Request defaults
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
	DefaultTopP        = 1.0
)

// GenerationRequest is one normalized generation call
type GenerationRequest struct {
	Prompt           string
	Model            string
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	StopSequences    []string
}

// NewGenerationRequest returns a request for prompt with every default applied
func NewGenerationRequest(prompt string) GenerationRequest {
	return GenerationRequest{
		Prompt:      prompt,
		Model:       providers.DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		TopP:        DefaultTopP,
	}
}

// WithDefaults fills the fields whose zero value is never meaningful.
// Temperature, TopP and the penalties are left alone because zero is valid
// for them; callers that need their defaults start from NewGenerationRequest.
func (r GenerationRequest) WithDefaults() GenerationRequest {
	if r.Model == "" {
		r.Model = providers.DefaultModel
	}
	if r.MaxTokens == 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	return r
}

func (r GenerationRequest) completionRequest() *providers.CompletionRequest {
	return &providers.CompletionRequest{
		Prompt:           r.Prompt,
		Model:            r.Model,
		Temperature:      r.Temperature,
		MaxTokens:        r.MaxTokens,
		TopP:             r.TopP,
		FrequencyPenalty: r.FrequencyPenalty,
		PresencePenalty:  r.PresencePenalty,
		StopSequences:    r.StopSequences,
	}
}

// GenerationResult is the outcome of one successful call
type GenerationResult struct {
	Content   string               `json:"content"`
	Usage     providers.Usage      `json:"usage"`
	CostCents float64              `json:"cost_cents"`
	LatencyMs int64                `json:"latency_ms"`
	Model     string               `json:"model"`
	Provider  providers.ProviderID `json:"provider"`
}

// Estimate is a pre-call token and cost projection
type Estimate struct {
	Model            string               `json:"model"`
	Provider         providers.ProviderID `json:"provider"`
	PromptTokens     int                  `json:"prompt_tokens"`
	CompletionTokens int                  `json:"completion_tokens"`
	CostCents        float64              `json:"cost_cents"`
}

// Clock measures elapsed time
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

type systemClock struct{}

func (systemClock) Now() time.Time                  { return time.Now() }
func (systemClock) Since(t time.Time) time.Duration { return time.Since(t) }

// SystemClock is the wall clock. time.Now carries a monotonic reading, so
// Since is unaffected by wall clock adjustments.
var SystemClock Clock = systemClock{}
