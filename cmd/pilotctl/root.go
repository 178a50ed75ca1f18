package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/promptpilot/llm-gateway/app"
	"github.com/promptpilot/llm-gateway/config"
	"github.com/promptpilot/llm-gateway/internal/observability"
	"github.com/promptpilot/llm-gateway/services/gateway"
)

var version = "0.1.0"

// Generator is what the exec and estimate commands drive
type Generator interface {
	Execute(ctx context.Context, req gateway.GenerationRequest) (*gateway.GenerationResult, error)
	EstimateCost(model, prompt string, maxTokens int) gateway.Estimate
}

// env carries the process dependencies so tests can swap them
type env struct {
	out       io.Writer
	errOut    io.Writer
	generator func(ctx context.Context) (Generator, error)
}

func defaultEnv() *env {
	return &env{
		out:       os.Stdout,
		errOut:    os.Stderr,
		generator: gatewayFromConfig,
	}
}

// gatewayFromConfig builds the gateway the same way the server does
func gatewayFromConfig(ctx context.Context) (Generator, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, err
	}
	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, err
	}
	// Startup logs only matter when debugging the CLI itself
	if cfg.Observability.LogLevel != "debug" {
		logger = zap.NewNop()
	}
	return app.NewGateway(cfg.Providers, logger), nil
}

func newRootCmd(e *env) *cobra.Command {
	var asJSON bool

	rootCmd := &cobra.Command{
		Use:   "pilotctl",
		Short: "Prompt Pilot gateway operator CLI",
		Long: `pilotctl runs generations and cost estimates against the configured
LLM vendors without going through the HTTP server.

Credentials are read from the same environment as the server:
  OPENAI_API_KEY, ANTHROPIC_API_KEY, COHERE_API_KEY

Examples:
  pilotctl models
  pilotctl estimate "Summarize this" -m gpt-4 --max-tokens 200
  pilotctl exec "Say hi" -m claude-3-haiku --temperature 0`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(e.out)
	rootCmd.SetErr(e.errOut)
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of text")

	rootCmd.AddCommand(
		execCmd(e, &asJSON),
		estimateCmd(e, &asJSON),
		modelsCmd(e, &asJSON),
	)

	return rootCmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
