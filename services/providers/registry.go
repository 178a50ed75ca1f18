package providers

import (
	"math"
	"sort"
	"unicode/utf16"
)

// ModelPricing holds USD prices per 1K tokens and the vendor serving a model
type ModelPricing struct {
	ModelID           string     `json:"model"`
	InputPerThousand  float64    `json:"input_price_per_1k"`
	OutputPerThousand float64    `json:"output_price_per_1k"`
	Provider          ProviderID `json:"provider"`
}

// DefaultModel is used when a request names no model
const DefaultModel = "gpt-3.5-turbo"

// Unknown models are priced like this and routed to OpenAI. Novel or renamed
// models are therefore accepted rather than rejected.
const (
	fallbackInputPerThousand  = 0.001
	fallbackOutputPerThousand = 0.002
	fallbackProvider          = OpenAI
)

var pricingTable = map[string]ModelPricing{
	// OpenAI
	"gpt-4":         {InputPerThousand: 0.03, OutputPerThousand: 0.06, Provider: OpenAI},
	"gpt-4-turbo":   {InputPerThousand: 0.01, OutputPerThousand: 0.03, Provider: OpenAI},
	"gpt-3.5-turbo": {InputPerThousand: 0.0005, OutputPerThousand: 0.0015, Provider: OpenAI},

	// Anthropic
	"claude-3-opus-20240229":   {InputPerThousand: 0.015, OutputPerThousand: 0.075, Provider: Anthropic},
	"claude-3-sonnet-20240229": {InputPerThousand: 0.003, OutputPerThousand: 0.015, Provider: Anthropic},
	"claude-3-haiku-20240307":  {InputPerThousand: 0.00025, OutputPerThousand: 0.00125, Provider: Anthropic},
	"claude-3-opus":            {InputPerThousand: 0.015, OutputPerThousand: 0.075, Provider: Anthropic},
	"claude-3-sonnet":          {InputPerThousand: 0.003, OutputPerThousand: 0.015, Provider: Anthropic},
	"claude-3-haiku":           {InputPerThousand: 0.00025, OutputPerThousand: 0.00125, Provider: Anthropic},

	// Cohere
	"command":        {InputPerThousand: 0.001, OutputPerThousand: 0.002, Provider: Cohere},
	"command-light":  {InputPerThousand: 0.0003, OutputPerThousand: 0.0006, Provider: Cohere},
	"command-r":      {InputPerThousand: 0.0005, OutputPerThousand: 0.0015, Provider: Cohere},
	"command-r-plus": {InputPerThousand: 0.003, OutputPerThousand: 0.015, Provider: Cohere},
}

// ResolveProvider returns the vendor serving model. Never fails.
func ResolveProvider(model string) ProviderID {
	return ResolvePricing(model).Provider
}

// ResolvePricing returns the pricing row for model, or the fallback row. Never fails.
func ResolvePricing(model string) ModelPricing {
	if p, ok := pricingTable[model]; ok {
		p.ModelID = model
		return p
	}
	return ModelPricing{
		ModelID:           model,
		InputPerThousand:  fallbackInputPerThousand,
		OutputPerThousand: fallbackOutputPerThousand,
		Provider:          fallbackProvider,
	}
}

// IsKnownModel reports whether model has its own pricing row
func IsKnownModel(model string) bool {
	_, ok := pricingTable[model]
	return ok
}

// Models returns every priced model, ordered by provider then model id
func Models() []ModelPricing {
	out := make([]ModelPricing, 0, len(pricingTable))
	for id := range pricingTable {
		out = append(out, ResolvePricing(id))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].ModelID < out[j].ModelID
	})
	return out
}

// CostCents prices usage in hundredths of a USD
func CostCents(p ModelPricing, promptTokens, completionTokens int) float64 {
	inputCost := (float64(promptTokens) / 1000) * p.InputPerThousand
	outputCost := (float64(completionTokens) / 1000) * p.OutputPerThousand
	return (inputCost + outputCost) * 100
}

// charsPerToken is a rough average for English text across vendors
const charsPerToken = 4

// EstimateTokens approximates a token count as ceil(chars/4), counting
// characters as UTF-16 code units so characters outside the BMP count twice.
// It is not a tokenizer and only used where a vendor reports no counts, or
// for pre-call estimates.
func EstimateTokens(text string) int {
	units := 0
	for _, r := range text {
		units += utf16.RuneLen(r)
	}
	return int(math.Ceil(float64(units) / charsPerToken))
}
