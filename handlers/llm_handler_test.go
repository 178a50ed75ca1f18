package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promptpilot/llm-gateway/middleware"
	"github.com/promptpilot/llm-gateway/models"
	"github.com/promptpilot/llm-gateway/services"
	"github.com/promptpilot/llm-gateway/services/gateway"
	"github.com/promptpilot/llm-gateway/services/providers"
	"github.com/promptpilot/llm-gateway/utils"
)

// MockGenerationService is a mock implementation of GenerationService
type MockGenerationService struct {
	mock.Mock
}

func (m *MockGenerationService) Execute(ctx context.Context, req gateway.GenerationRequest) (*gateway.GenerationResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.GenerationResult), args.Error(1)
}

func (m *MockGenerationService) EstimateCost(model, prompt string, maxTokens int) gateway.Estimate {
	args := m.Called(model, prompt, maxTokens)
	return args.Get(0).(gateway.Estimate)
}

// MockAPICallRepository is a mock implementation of repositories.APICallRepository
type MockAPICallRepository struct {
	mock.Mock
}

func (m *MockAPICallRepository) Create(ctx context.Context, call *models.APICall) error {
	args := m.Called(ctx, call)
	return args.Error(0)
}

func (m *MockAPICallRepository) ListRecent(ctx context.Context, limit int) ([]*models.APICall, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.APICall), args.Error(1)
}

func newExecuteRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/llm/execute", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "pilot-test")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	return req.WithContext(middleware.WithRequestID(req.Context(), "req-42"))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestHandleExecute(t *testing.T) {
	logger := zap.NewNop()

	t.Run("successful generation", func(t *testing.T) {
		service := new(MockGenerationService)
		calls := new(MockAPICallRepository)
		handler := NewLLMHandler(service, calls, logger)

		result := &gateway.GenerationResult{
			Content:   "Hello there",
			Usage:     providers.NewUsage(5, 3),
			CostCents: 0.033,
			LatencyMs: 250,
			Model:     "gpt-4",
			Provider:  providers.OpenAI,
		}
		service.On("Execute", mock.Anything, mock.MatchedBy(func(req gateway.GenerationRequest) bool {
			return req.Prompt == "Say hi" && req.Model == "gpt-4"
		})).Return(result, nil)

		calls.On("Create", mock.Anything, mock.MatchedBy(func(call *models.APICall) bool {
			return call.RequestID == "req-42" &&
				call.StatusCode == http.StatusOK &&
				call.Provider == "openai" &&
				call.TokensUsed == 8 &&
				call.IPAddress == "203.0.113.9" &&
				call.UserAgent == "pilot-test" &&
				call.ErrorMessage == nil
		})).Return(nil)

		w := httptest.NewRecorder()
		handler.HandleExecute(w, newExecuteRequest(t, `{"prompt":"Say hi","model":"gpt-4"}`))

		assert.Equal(t, http.StatusOK, w.Code)

		var response ExecuteResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Hello there", response.Content)
		assert.Equal(t, 8, response.TokensUsed)
		assert.InDelta(t, 0.033, response.CostCents, 1e-9)
		assert.Equal(t, int64(250), response.LatencyMs)
		assert.Equal(t, "gpt-4", response.Model)
		assert.Equal(t, providers.OpenAI, response.Provider)
		assert.Equal(t, providers.NewUsage(5, 3), response.Usage)

		service.AssertExpectations(t)
		calls.AssertExpectations(t)
	})

	t.Run("absent fields take defaults", func(t *testing.T) {
		service := new(MockGenerationService)
		handler := NewLLMHandler(service, nil, logger)

		expected := gateway.NewGenerationRequest("Say hi")
		service.On("Execute", mock.Anything, expected).
			Return(&gateway.GenerationResult{Model: providers.DefaultModel, Provider: providers.OpenAI}, nil)

		w := httptest.NewRecorder()
		handler.HandleExecute(w, newExecuteRequest(t, `{"prompt":"Say hi"}`))

		assert.Equal(t, http.StatusOK, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("explicit zero values are honored", func(t *testing.T) {
		service := new(MockGenerationService)
		handler := NewLLMHandler(service, nil, logger)

		service.On("Execute", mock.Anything, mock.MatchedBy(func(req gateway.GenerationRequest) bool {
			return req.Temperature == 0 &&
				req.TopP == 0 &&
				req.MaxTokens == 50 &&
				req.FrequencyPenalty == 0.5 &&
				req.PresencePenalty == -0.5 &&
				assert.ObjectsAreEqual([]string{"\n\n"}, req.StopSequences)
		})).Return(&gateway.GenerationResult{Model: "gpt-4", Provider: providers.OpenAI}, nil)

		body := `{"prompt":"p","model":"gpt-4","temperature":0,"top_p":0,"max_tokens":50,` +
			`"frequency_penalty":0.5,"presence_penalty":-0.5,"stop_sequences":["\n\n"]}`
		w := httptest.NewRecorder()
		handler.HandleExecute(w, newExecuteRequest(t, body))

		assert.Equal(t, http.StatusOK, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("stop sequences are forwarded without a count limit", func(t *testing.T) {
		service := new(MockGenerationService)
		handler := NewLLMHandler(service, nil, logger)

		stops := []string{"a", "b", "c", "d", "e"}
		service.On("Execute", mock.Anything, mock.MatchedBy(func(req gateway.GenerationRequest) bool {
			return req.Model == "claude-3-haiku" && assert.ObjectsAreEqual(stops, req.StopSequences)
		})).Return(&gateway.GenerationResult{Model: "claude-3-haiku", Provider: providers.Anthropic}, nil)

		body := `{"prompt":"p","model":"claude-3-haiku","stop_sequences":["a","b","c","d","e"]}`
		w := httptest.NewRecorder()
		handler.HandleExecute(w, newExecuteRequest(t, body))

		assert.Equal(t, http.StatusOK, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("invalid JSON body", func(t *testing.T) {
		service := new(MockGenerationService)
		calls := new(MockAPICallRepository)
		handler := NewLLMHandler(service, calls, logger)

		calls.On("Create", mock.Anything, mock.MatchedBy(func(call *models.APICall) bool {
			return call.StatusCode == http.StatusBadRequest && call.IsError()
		})).Return(nil)

		w := httptest.NewRecorder()
		handler.HandleExecute(w, newExecuteRequest(t, `{"prompt":`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		response := decodeError(t, w)
		assert.Equal(t, "invalid_request", response.Error)
		assert.Equal(t, "Invalid request body", response.Message)

		service.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
		calls.AssertExpectations(t)
	})

	t.Run("out of range parameters fail validation", func(t *testing.T) {
		tests := []struct {
			name  string
			body  string
			field string
		}{
			{"temperature above 2", `{"prompt":"p","temperature":2.5}`, "temperature"},
			{"negative temperature", `{"prompt":"p","temperature":-0.1}`, "temperature"},
			{"zero max tokens", `{"prompt":"p","max_tokens":0}`, "max_tokens"},
			{"top_p above 1", `{"prompt":"p","top_p":1.5}`, "top_p"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				service := new(MockGenerationService)
				handler := NewLLMHandler(service, nil, logger)

				w := httptest.NewRecorder()
				handler.HandleExecute(w, newExecuteRequest(t, tt.body))

				assert.Equal(t, http.StatusBadRequest, w.Code)
				response := decodeError(t, w)
				assert.Equal(t, "invalid_request", response.Error)
				assert.Contains(t, response.Details, tt.field)
				service.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("service errors map to status codes", func(t *testing.T) {
		tests := []struct {
			name    string
			err     error
			status  int
			kind    string
			message string
		}{
			{
				name:    "empty prompt",
				err:     services.NewInvalidRequestError("Prompt is required"),
				status:  http.StatusBadRequest,
				kind:    "invalid_request",
				message: "Prompt is required",
			},
			{
				name:    "missing key",
				err:     services.NewProviderNotConfiguredError("OpenAI"),
				status:  http.StatusInternalServerError,
				kind:    "provider_not_configured",
				message: "OpenAI API key not configured on server",
			},
			{
				name:    "rate limited",
				err:     services.NewRateLimitedError("openai", errors.New("429")),
				status:  http.StatusTooManyRequests,
				kind:    "rate_limited",
				message: "Rate limit exceeded. Please try again later.",
			},
			{
				name:    "timeout",
				err:     services.NewProviderTimeoutError("OpenAI", context.DeadlineExceeded),
				status:  http.StatusGatewayTimeout,
				kind:    "provider_timeout",
				message: "OpenAI request timed out",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				service := new(MockGenerationService)
				calls := new(MockAPICallRepository)
				handler := NewLLMHandler(service, calls, logger)

				service.On("Execute", mock.Anything, mock.Anything).Return(nil, tt.err)
				calls.On("Create", mock.Anything, mock.MatchedBy(func(call *models.APICall) bool {
					return call.StatusCode == tt.status &&
						call.ErrorMessage != nil &&
						*call.ErrorMessage == tt.message &&
						call.Model == providers.DefaultModel
				})).Return(nil)

				w := httptest.NewRecorder()
				handler.HandleExecute(w, newExecuteRequest(t, `{"prompt":"   "}`))

				assert.Equal(t, tt.status, w.Code)
				response := decodeError(t, w)
				assert.Equal(t, tt.kind, response.Error)
				assert.Equal(t, tt.message, response.Message)
				calls.AssertExpectations(t)
			})
		}
	})

	t.Run("call log failure does not fail the request", func(t *testing.T) {
		service := new(MockGenerationService)
		calls := new(MockAPICallRepository)
		handler := NewLLMHandler(service, calls, logger)

		service.On("Execute", mock.Anything, mock.Anything).
			Return(&gateway.GenerationResult{Content: "ok", Model: "command", Provider: providers.Cohere}, nil)
		calls.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

		w := httptest.NewRecorder()
		handler.HandleExecute(w, newExecuteRequest(t, `{"prompt":"p","model":"command"}`))

		assert.Equal(t, http.StatusOK, w.Code)
		calls.AssertExpectations(t)
	})
}

func TestHandleEstimate(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns estimate", func(t *testing.T) {
		service := new(MockGenerationService)
		handler := NewLLMHandler(service, nil, logger)

		estimate := gateway.Estimate{
			Model:            "gpt-4",
			Provider:         providers.OpenAI,
			PromptTokens:     10,
			CompletionTokens: 100,
			CostCents:        0.63,
		}
		service.On("EstimateCost", "gpt-4", strings.Repeat("a", 40), 100).Return(estimate)

		body, _ := json.Marshal(map[string]interface{}{
			"prompt":     strings.Repeat("a", 40),
			"model":      "gpt-4",
			"max_tokens": 100,
		})
		req := httptest.NewRequest(http.MethodPost, "/api/llm/estimate", bytes.NewReader(body))
		w := httptest.NewRecorder()
		handler.HandleEstimate(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response gateway.Estimate
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, estimate, response)
		service.AssertExpectations(t)
	})

	t.Run("absent max tokens passes zero", func(t *testing.T) {
		service := new(MockGenerationService)
		handler := NewLLMHandler(service, nil, logger)

		service.On("EstimateCost", "", "hello", 0).Return(gateway.Estimate{Model: providers.DefaultModel})

		req := httptest.NewRequest(http.MethodPost, "/api/llm/estimate", strings.NewReader(`{"prompt":"hello"}`))
		w := httptest.NewRecorder()
		handler.HandleEstimate(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("whitespace prompt is estimated", func(t *testing.T) {
		service := new(MockGenerationService)
		handler := NewLLMHandler(service, nil, logger)

		service.On("EstimateCost", "", "   ", 0).Return(gateway.Estimate{Model: providers.DefaultModel, PromptTokens: 1})

		req := httptest.NewRequest(http.MethodPost, "/api/llm/estimate", strings.NewReader(`{"prompt":"   "}`))
		w := httptest.NewRecorder()
		handler.HandleEstimate(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		service.AssertExpectations(t)
	})

	t.Run("empty prompt", func(t *testing.T) {
		service := new(MockGenerationService)
		handler := NewLLMHandler(service, nil, logger)

		req := httptest.NewRequest(http.MethodPost, "/api/llm/estimate", strings.NewReader(`{"prompt":""}`))
		w := httptest.NewRecorder()
		handler.HandleEstimate(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Prompt is required", decodeError(t, w).Message)
		service.AssertNotCalled(t, "EstimateCost", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandleModels(t *testing.T) {
	handler := NewLLMHandler(new(MockGenerationService), nil, zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleModels(w, httptest.NewRequest(http.MethodGet, "/api/llm/models", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data  []providers.ModelPricing `json:"data"`
		Count int                      `json:"count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, len(providers.Models()), response.Count)
	assert.Len(t, response.Data, response.Count)
	assert.Equal(t, providers.Models(), response.Data)
}

func TestHandleListCalls(t *testing.T) {
	logger := zap.NewNop()

	t.Run("not found without store", func(t *testing.T) {
		handler := NewLLMHandler(new(MockGenerationService), nil, logger)

		w := httptest.NewRecorder()
		handler.HandleListCalls(w, httptest.NewRequest(http.MethodGet, "/api/llm/calls", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", decodeError(t, w).Error)
	})

	t.Run("lists with default limit", func(t *testing.T) {
		calls := new(MockAPICallRepository)
		handler := NewLLMHandler(new(MockGenerationService), calls, logger)

		rows := []*models.APICall{models.NewAPICall("req-1", "POST", "/api/llm/execute")}
		calls.On("ListRecent", mock.Anything, defaultCallsLimit).Return(rows, nil)

		w := httptest.NewRecorder()
		handler.HandleListCalls(w, httptest.NewRequest(http.MethodGet, "/api/llm/calls", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.EqualValues(t, 1, response["count"])
		calls.AssertExpectations(t)
	})

	t.Run("honors limit", func(t *testing.T) {
		calls := new(MockAPICallRepository)
		handler := NewLLMHandler(new(MockGenerationService), calls, logger)

		calls.On("ListRecent", mock.Anything, 5).Return([]*models.APICall{}, nil)

		w := httptest.NewRecorder()
		handler.HandleListCalls(w, httptest.NewRequest(http.MethodGet, "/api/llm/calls?limit=5", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		calls.AssertExpectations(t)
	})

	t.Run("rejects bad limit", func(t *testing.T) {
		calls := new(MockAPICallRepository)
		handler := NewLLMHandler(new(MockGenerationService), calls, logger)

		w := httptest.NewRecorder()
		handler.HandleListCalls(w, httptest.NewRequest(http.MethodGet, "/api/llm/calls?limit=abc", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		calls.AssertNotCalled(t, "ListRecent", mock.Anything, mock.Anything)
	})

	t.Run("store failure is internal", func(t *testing.T) {
		calls := new(MockAPICallRepository)
		handler := NewLLMHandler(new(MockGenerationService), calls, logger)

		calls.On("ListRecent", mock.Anything, defaultCallsLimit).Return(nil, errors.New("relation missing"))

		w := httptest.NewRecorder()
		handler.HandleListCalls(w, httptest.NewRequest(http.MethodGet, "/api/llm/calls", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		response := decodeError(t, w)
		assert.Equal(t, "internal", response.Error)
		assert.NotContains(t, response.Message, "relation")
	})
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.2:5000", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:5000", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
