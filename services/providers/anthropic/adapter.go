package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/promptpilot/llm-gateway/services/providers"
)

// Adapter implements providers.Adapter on top of the official Messages API client
type Adapter struct {
	client sdk.Client
}

// NewAdapter creates a new Anthropic adapter. An empty BaseURL keeps the SDK default.
func NewAdapter(config providers.ProviderConfig) *Adapter {
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(config.APIKey)),
		option.WithHTTPClient(config.Client()),
		option.WithMaxRetries(0), // callers own retry policy
	}
	if baseURL := strings.TrimRight(config.BaseURL, "/"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Adapter{client: sdk.NewClient(opts...)}
}

// Name returns the provider name
func (a *Adapter) Name() providers.ProviderID {
	return providers.Anthropic
}

// Execute sends a single-turn message. Only temperature and max tokens are
// forwarded; top_p, penalties and stop sequences are not supported here.
func (a *Adapter) Execute(ctx context.Context, req *providers.CompletionRequest) (*providers.Completion, error) {
	msg, err := a.client.Messages.New(ctx, buildParams(req))
	if err != nil {
		return nil, toFailure(err)
	}

	block := firstBlock(msg.Content)
	return &providers.Completion{
		Content: block.text(),
		Usage:   providers.NewUsage(int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)),
	}, nil
}

func buildParams(req *providers.CompletionRequest) sdk.MessageNewParams {
	return sdk.MessageNewParams{
		Model:       sdk.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: sdk.Float(req.Temperature),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
}

// blockKind distinguishes text blocks from every other content block type
type blockKind int

const (
	blockOther blockKind = iota
	blockText
)

// contentBlock is the part of a response block the adapter cares about
type contentBlock struct {
	kind blockKind
	body string
}

// text yields the block's text, or "" for anything that is not a text block
func (b contentBlock) text() string {
	switch b.kind {
	case blockText:
		return b.body
	default:
		return ""
	}
}

// firstBlock maps the first response block; a missing block counts as other
func firstBlock(content []sdk.ContentBlockUnion) contentBlock {
	if len(content) == 0 {
		return contentBlock{kind: blockOther}
	}
	if content[0].Type == "text" {
		return contentBlock{kind: blockText, body: content[0].Text}
	}
	return contentBlock{kind: blockOther}
}

// toFailure normalizes SDK and transport errors into a ProviderFailure
func toFailure(err error) *providers.ProviderFailure {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		failure := providers.NewStatusFailure(providers.Anthropic, apiErr.StatusCode, errorMessage(apiErr.RawJSON()))
		failure.Cause = err
		return failure
	}
	return providers.NewTransportFailure(providers.Anthropic, "HTTP request failed", err)
}

// errorMessage pulls error.message out of an Anthropic error body
func errorMessage(raw string) string {
	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return ""
	}
	return body.Error.Message
}
