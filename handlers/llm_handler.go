package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/promptpilot/llm-gateway/middleware"
	"github.com/promptpilot/llm-gateway/models"
	"github.com/promptpilot/llm-gateway/repositories"
	"github.com/promptpilot/llm-gateway/services"
	"github.com/promptpilot/llm-gateway/services/gateway"
	"github.com/promptpilot/llm-gateway/services/providers"
	"github.com/promptpilot/llm-gateway/utils"
)

const (
	maxRequestBodyBytes = 1 << 20
	defaultCallsLimit   = 50
	callLogTimeout      = 2 * time.Second
)

// ExecuteRequest is the body of POST /api/llm/execute. Absent optional
// fields take the gateway defaults; an explicit zero is honored.
type ExecuteRequest struct {
	Prompt           string   `json:"prompt"`
	Model            string   `json:"model,omitempty" validate:"omitempty,max=100"`
	Temperature      *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens        *int     `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	TopP             *float64 `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" validate:"omitempty,gte=-2,lte=2"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty" validate:"omitempty,gte=-2,lte=2"`
	StopSequences    []string `json:"stop_sequences,omitempty"`
}

// toGenerationRequest starts from the defaults and overlays present fields
func (r ExecuteRequest) toGenerationRequest() gateway.GenerationRequest {
	req := gateway.NewGenerationRequest(r.Prompt)
	if r.Model != "" {
		req.Model = r.Model
	}
	if r.Temperature != nil {
		req.Temperature = *r.Temperature
	}
	if r.MaxTokens != nil {
		req.MaxTokens = *r.MaxTokens
	}
	if r.TopP != nil {
		req.TopP = *r.TopP
	}
	if r.FrequencyPenalty != nil {
		req.FrequencyPenalty = *r.FrequencyPenalty
	}
	if r.PresencePenalty != nil {
		req.PresencePenalty = *r.PresencePenalty
	}
	if len(r.StopSequences) > 0 {
		req.StopSequences = r.StopSequences
	}
	return req
}

// ExecuteResponse is the success body of POST /api/llm/execute
type ExecuteResponse struct {
	Content    string               `json:"content"`
	TokensUsed int                  `json:"tokens_used"`
	CostCents  float64              `json:"cost_cents"`
	LatencyMs  int64                `json:"latency_ms"`
	Model      string               `json:"model"`
	Provider   providers.ProviderID `json:"provider"`
	Usage      providers.Usage      `json:"usage"`
}

// EstimateRequest is the body of POST /api/llm/estimate
type EstimateRequest struct {
	Prompt    string `json:"prompt"`
	Model     string `json:"model,omitempty" validate:"omitempty,max=100"`
	MaxTokens *int   `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
}

// GenerationService is the part of the gateway the handler drives
type GenerationService interface {
	Execute(ctx context.Context, req gateway.GenerationRequest) (*gateway.GenerationResult, error)
	EstimateCost(model, prompt string, maxTokens int) gateway.Estimate
}

// LLMHandler handles the generation API
type LLMHandler struct {
	service GenerationService
	calls   repositories.APICallRepository
	logger  *zap.Logger
}

// NewLLMHandler creates a new LLMHandler. calls may be nil, which disables
// call logging and the calls listing.
func NewLLMHandler(service GenerationService, calls repositories.APICallRepository, logger *zap.Logger) *LLMHandler {
	return &LLMHandler{
		service: service,
		calls:   calls,
		logger:  logger,
	}
}

// HandleExecute handles POST /api/llm/execute
func (h *LLMHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	start := time.Now()
	call := models.NewAPICall(requestID, r.Method, r.URL.Path)
	call.UserAgent = r.UserAgent()
	call.IPAddress = getClientIP(r)

	var req ExecuteRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		call.RecordFailure(http.StatusBadRequest, "Invalid request body")
		h.recordCall(ctx, call, start)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		call.RecordFailure(http.StatusBadRequest, utils.FirstFieldMessage(err))
		h.recordCall(ctx, call, start)
		return
	}

	genReq := req.toGenerationRequest()
	h.logger.Debug("executing generation",
		zap.String("request_id", requestID),
		zap.String("model", genReq.Model))

	result, err := h.service.Execute(ctx, genReq)
	if err != nil {
		h.logger.Warn("generation failed",
			zap.String("request_id", requestID),
			zap.String("error_type", string(services.GetErrorType(err))),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		call.Model = genReq.Model
		call.Provider = providers.ResolveProvider(genReq.Model).String()
		call.RecordFailure(StatusForError(err), services.GetErrorMessage(err))
		h.recordCall(ctx, call, start)
		return
	}

	response := ExecuteResponse{
		Content:    result.Content,
		TokensUsed: result.Usage.TotalTokens,
		CostCents:  result.CostCents,
		LatencyMs:  result.LatencyMs,
		Model:      result.Model,
		Provider:   result.Provider,
		Usage:      result.Usage,
	}

	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}

	call.RecordSuccess(http.StatusOK, result.Model, result.Provider.String(), result.Usage.TotalTokens, result.CostCents)
	h.recordCall(ctx, call, start)
}

// HandleEstimate handles POST /api/llm/estimate
func (h *LLMHandler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := decodeBody(w, r, &req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if req.Prompt == "" {
		HandleServiceError(w, services.NewInvalidRequestError("Prompt is required"), h.logger)
		return
	}

	maxTokens := 0
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	if err := utils.WriteOK(w, h.service.EstimateCost(req.Model, req.Prompt, maxTokens)); err != nil {
		h.logger.Error("failed to write estimate response", zap.Error(err))
	}
}

// HandleModels handles GET /api/llm/models
func (h *LLMHandler) HandleModels(w http.ResponseWriter, r *http.Request) {
	table := providers.Models()
	if err := utils.WriteList(w, table, len(table)); err != nil {
		h.logger.Error("failed to write models response", zap.Error(err))
	}
}

// HandleListCalls handles GET /api/llm/calls?limit=N
func (h *LLMHandler) HandleListCalls(w http.ResponseWriter, r *http.Request) {
	if h.calls == nil {
		HandleServiceError(w, services.NewDomainError(services.ErrorTypeNotFound, "Call log not configured", nil), h.logger)
		return
	}

	limit := defaultCallsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			_ = utils.WriteBadRequest(w, "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}

	calls, err := h.calls.ListRecent(r.Context(), limit)
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to list calls", err), h.logger)
		return
	}

	if err := utils.WriteList(w, calls, len(calls)); err != nil {
		h.logger.Error("failed to write calls response", zap.Error(err))
	}
}

// recordCall persists one call log row. Failures are logged and never
// surface to the client.
func (h *LLMHandler) recordCall(ctx context.Context, call *models.APICall, start time.Time) {
	if h.calls == nil {
		return
	}
	call.ResponseTimeMs = time.Since(start).Milliseconds()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), callLogTimeout)
	defer cancel()

	if err := h.calls.Create(ctx, call); err != nil {
		h.logger.Warn("failed to record api call",
			zap.String("request_id", call.RequestID),
			zap.Error(err))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// Try X-Forwarded-For first (for proxied requests)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	// Try X-Real-IP
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
