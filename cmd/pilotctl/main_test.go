package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/promptpilot/llm-gateway/services"
	"github.com/promptpilot/llm-gateway/services/gateway"
	"github.com/promptpilot/llm-gateway/services/providers"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Execute(ctx context.Context, req gateway.GenerationRequest) (*gateway.GenerationResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.GenerationResult), args.Error(1)
}

func (m *mockGenerator) EstimateCost(model, prompt string, maxTokens int) gateway.Estimate {
	args := m.Called(model, prompt, maxTokens)
	return args.Get(0).(gateway.Estimate)
}

func runCmd(t *testing.T, gen Generator, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	e := &env{
		out:    &out,
		errOut: &errOut,
		generator: func(ctx context.Context) (Generator, error) {
			if gen == nil {
				return nil, errors.New("no generator")
			}
			return gen, nil
		},
	}
	cmd := newRootCmd(e)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestExecCommand(t *testing.T) {
	result := &gateway.GenerationResult{
		Content:   "Hello",
		Usage:     providers.NewUsage(5, 3),
		CostCents: 0.033,
		LatencyMs: 12,
		Model:     "gpt-4",
		Provider:  providers.OpenAI,
	}

	t.Run("defaults", func(t *testing.T) {
		gen := new(mockGenerator)
		expected := gateway.NewGenerationRequest("Say hi")
		gen.On("Execute", mock.Anything, expected).Return(result, nil)

		out, errOut, err := runCmd(t, gen, "exec", "Say", "hi")
		require.NoError(t, err)
		assert.Equal(t, "Hello\n", out)
		assert.Contains(t, errOut, "openai/gpt-4")
		assert.Contains(t, errOut, "tokens=8")
		gen.AssertExpectations(t)
	})

	t.Run("flags override defaults", func(t *testing.T) {
		gen := new(mockGenerator)
		expected := gateway.NewGenerationRequest("Say hi")
		expected.Model = "gpt-4"
		expected.Temperature = 0
		expected.MaxTokens = 20
		expected.StopSequences = []string{"END", "STOP"}
		gen.On("Execute", mock.Anything, expected).Return(result, nil)

		_, _, err := runCmd(t, gen, "exec", "Say hi", "-m", "gpt-4",
			"--temperature", "0", "--max-tokens", "20", "--stop", "END,STOP")
		require.NoError(t, err)
		gen.AssertExpectations(t)
	})

	t.Run("json output", func(t *testing.T) {
		gen := new(mockGenerator)
		gen.On("Execute", mock.Anything, mock.Anything).Return(result, nil)

		out, _, err := runCmd(t, gen, "exec", "Say hi", "--json")
		require.NoError(t, err)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(out), &body))
		assert.Equal(t, "Hello", body["content"])
		assert.Equal(t, "openai", body["provider"])
	})

	t.Run("gateway error", func(t *testing.T) {
		gen := new(mockGenerator)
		gen.On("Execute", mock.Anything, mock.Anything).
			Return(nil, services.NewProviderNotConfiguredError("Cohere"))

		_, _, err := runCmd(t, gen, "exec", "Say hi", "-m", "command")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "provider_not_configured")
		assert.Contains(t, err.Error(), "Cohere API key not configured on server")
	})

	t.Run("missing prompt", func(t *testing.T) {
		_, _, err := runCmd(t, new(mockGenerator), "exec")
		assert.Error(t, err)
	})

	t.Run("config failure", func(t *testing.T) {
		_, _, err := runCmd(t, nil, "exec", "Say hi")
		require.Error(t, err)
		assert.Equal(t, "no generator", err.Error())
	})
}

func TestEstimateCommand(t *testing.T) {
	estimate := gateway.Estimate{
		Model:            "gpt-4",
		Provider:         providers.OpenAI,
		PromptTokens:     2,
		CompletionTokens: 200,
		CostCents:        1.206,
	}

	t.Run("text output", func(t *testing.T) {
		gen := new(mockGenerator)
		gen.On("EstimateCost", "gpt-4", "hello there", 200).Return(estimate)

		out, _, err := runCmd(t, gen, "estimate", "hello", "there", "-m", "gpt-4", "--max-tokens", "200")
		require.NoError(t, err)
		assert.Contains(t, out, "gpt-4 (openai)")
		assert.Contains(t, out, "completion tokens: 200")
		gen.AssertExpectations(t)
	})

	t.Run("json output", func(t *testing.T) {
		gen := new(mockGenerator)
		gen.On("EstimateCost", providers.DefaultModel, "hello", gateway.DefaultMaxTokens).Return(estimate)

		out, _, err := runCmd(t, gen, "estimate", "hello", "--json")
		require.NoError(t, err)

		var body gateway.Estimate
		require.NoError(t, json.Unmarshal([]byte(out), &body))
		assert.Equal(t, estimate, body)
	})

	t.Run("empty prompt", func(t *testing.T) {
		_, _, err := runCmd(t, new(mockGenerator), "estimate", "")
		require.Error(t, err)
		assert.Equal(t, "prompt is required", err.Error())
	})
}

func TestModelsCommand(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		out, _, err := runCmd(t, nil, "models")
		require.NoError(t, err)
		assert.Contains(t, out, "MODEL")
		assert.Contains(t, out, "gpt-4")
		assert.Contains(t, out, "claude-3-haiku")
		assert.Contains(t, out, "command")
	})

	t.Run("filtered json", func(t *testing.T) {
		out, _, err := runCmd(t, nil, "models", "-p", "anthropic", "--json")
		require.NoError(t, err)

		var table []providers.ModelPricing
		require.NoError(t, json.Unmarshal([]byte(out), &table))
		require.NotEmpty(t, table)
		for _, m := range table {
			assert.Equal(t, providers.Anthropic, m.Provider)
		}
	})
}
