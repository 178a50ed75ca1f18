package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/promptpilot/llm-gateway/services"
	"github.com/promptpilot/llm-gateway/services/providers"
)

// Service executes generation requests against the configured vendors
type Service struct {
	adapters       map[providers.ProviderID]providers.Adapter
	credentials    CredentialProvider
	clock          Clock
	requestTimeout time.Duration
	logger         *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces the clock used for latency measurement
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRequestTimeout bounds each outbound vendor call. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.requestTimeout = d
	}
}

// NewService creates a gateway over the given adapters. A later adapter for
// the same vendor replaces an earlier one.
func NewService(
	credentials CredentialProvider,
	adapters []providers.Adapter,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		adapters:    make(map[providers.ProviderID]providers.Adapter, len(adapters)),
		credentials: credentials,
		clock:       SystemClock,
		logger:      logger,
	}
	for _, a := range adapters {
		s.adapters[a.Name()] = a
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs one generation call. It either returns a complete result or
// a *services.DomainError; there are no partial results and no retries.
func (s *Service) Execute(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	req = req.WithDefaults()
	if err := validate(req); err != nil {
		return nil, err
	}

	provider := providers.ResolveProvider(req.Model)

	if s.credentials == nil || !s.credentials.HasCredential(provider) {
		s.logger.Warn("provider credential missing",
			zap.String("provider", provider.String()),
			zap.String("model", req.Model))
		return nil, services.NewProviderNotConfiguredError(provider.DisplayName())
	}

	start := s.clock.Now()

	adapter, ok := s.adapters[provider]
	if !ok {
		s.logger.Error("no adapter registered", zap.String("provider", provider.String()))
		return nil, services.NewUnknownProviderError(provider.String())
	}

	callCtx := ctx
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	completion, err := adapter.Execute(callCtx, req.completionRequest())
	if err != nil {
		classified := classify(provider, callCtx, err)
		s.logger.Warn("generation failed",
			zap.String("provider", provider.String()),
			zap.String("model", req.Model),
			zap.String("error_type", string(services.GetErrorType(classified))),
			zap.Duration("elapsed", s.clock.Since(start)),
			zap.Error(err))
		return nil, classified
	}

	latency := s.clock.Since(start)
	pricing := providers.ResolvePricing(req.Model)

	result := &GenerationResult{
		Content:   completion.Content,
		Usage:     completion.Usage,
		CostCents: providers.CostCents(pricing, completion.Usage.PromptTokens, completion.Usage.CompletionTokens),
		LatencyMs: latency.Milliseconds(),
		Model:     req.Model,
		Provider:  provider,
	}

	s.logger.Info("generation completed",
		zap.String("provider", provider.String()),
		zap.String("model", req.Model),
		zap.Int64("latency_ms", result.LatencyMs),
		zap.Int("prompt_tokens", result.Usage.PromptTokens),
		zap.Int("completion_tokens", result.Usage.CompletionTokens),
		zap.Float64("cost_cents", result.CostCents))

	return result, nil
}

// EstimateTokens approximates the token count of text
func (s *Service) EstimateTokens(text string) int {
	return providers.EstimateTokens(text)
}

// EstimateCost projects the worst-case cost of a call: the estimated prompt
// tokens plus a completion that uses all of maxTokens.
func (s *Service) EstimateCost(model, prompt string, maxTokens int) Estimate {
	if model == "" {
		model = providers.DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	pricing := providers.ResolvePricing(model)
	promptTokens := providers.EstimateTokens(prompt)

	return Estimate{
		Model:            model,
		Provider:         pricing.Provider,
		PromptTokens:     promptTokens,
		CompletionTokens: maxTokens,
		CostCents:        providers.CostCents(pricing, promptTokens, maxTokens),
	}
}

// ConfiguredProviders lists vendors that have both a credential and an adapter
func (s *Service) ConfiguredProviders() []providers.ProviderID {
	var out []providers.ProviderID
	for _, p := range []providers.ProviderID{providers.OpenAI, providers.Anthropic, providers.Cohere} {
		if _, ok := s.adapters[p]; ok && s.credentials != nil && s.credentials.HasCredential(p) {
			out = append(out, p)
		}
	}
	return out
}

func validate(req GenerationRequest) error {
	if req.Prompt == "" {
		return services.NewInvalidRequestError("Prompt is required")
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		return services.NewInvalidRequestError("temperature must be between 0 and 2").
			WithDetail("field", "temperature")
	}
	if req.MaxTokens <= 0 {
		return services.NewInvalidRequestError("max_tokens must be greater than 0").
			WithDetail("field", "max_tokens")
	}
	if req.TopP < 0 || req.TopP > 1 {
		return services.NewInvalidRequestError("top_p must be between 0 and 1").
			WithDetail("field", "top_p")
	}
	return nil
}

// classify maps an adapter failure onto the error taxonomy. Only the status
// code and timeout flag are inspected; 401 text is never passed through.
func classify(provider providers.ProviderID, callCtx context.Context, err error) error {
	failure, ok := providers.AsFailure(err)
	if !ok {
		failure = &providers.ProviderFailure{Provider: provider, Message: err.Error(), Cause: err}
	}

	switch {
	case failure.Timeout || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return services.NewProviderTimeoutError(provider.DisplayName(), err)
	case failure.StatusCode == http.StatusUnauthorized:
		return services.NewInvalidCredentialsError(provider.String(), err)
	case failure.StatusCode == http.StatusTooManyRequests:
		return services.NewRateLimitedError(provider.String(), err)
	default:
		return services.NewProviderError(provider.String(), failure.Message, err)
	}
}
