package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/promptpilot/llm-gateway/services"
	"github.com/promptpilot/llm-gateway/services/gateway"
	"github.com/promptpilot/llm-gateway/services/providers"
)

func execCmd(e *env, asJSON *bool) *cobra.Command {
	req := gateway.NewGenerationRequest("")

	cmd := &cobra.Command{
		Use:   "exec <prompt>",
		Short: "Run one generation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Prompt = strings.Join(args, " ")

			gen, err := e.generator(cmd.Context())
			if err != nil {
				return err
			}

			result, err := gen.Execute(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("%s: %s", services.GetErrorType(err), services.GetErrorMessage(err))
			}

			if *asJSON {
				return printJSON(cmd.OutOrStdout(), result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, result.Content)
			fmt.Fprintf(cmd.ErrOrStderr(), "\n%s/%s  tokens=%d (prompt %d, completion %d)  cost=%.6f¢  latency=%dms\n",
				result.Provider, result.Model,
				result.Usage.TotalTokens, result.Usage.PromptTokens, result.Usage.CompletionTokens,
				result.CostCents, result.LatencyMs)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&req.Model, "model", "m", providers.DefaultModel, "model id")
	flags.Float64Var(&req.Temperature, "temperature", gateway.DefaultTemperature, "sampling temperature (0-2)")
	flags.IntVar(&req.MaxTokens, "max-tokens", gateway.DefaultMaxTokens, "completion token limit")
	flags.Float64Var(&req.TopP, "top-p", gateway.DefaultTopP, "nucleus sampling (0-1)")
	flags.Float64Var(&req.FrequencyPenalty, "frequency-penalty", 0, "frequency penalty")
	flags.Float64Var(&req.PresencePenalty, "presence-penalty", 0, "presence penalty")
	flags.StringSliceVar(&req.StopSequences, "stop", nil, "stop sequences")

	return cmd
}

func estimateCmd(e *env, asJSON *bool) *cobra.Command {
	var (
		model     string
		maxTokens int
	)

	cmd := &cobra.Command{
		Use:   "estimate <prompt>",
		Short: "Estimate tokens and worst-case cost without calling a vendor",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if prompt == "" {
				return errors.New("prompt is required")
			}

			gen, err := e.generator(cmd.Context())
			if err != nil {
				return err
			}

			estimate := gen.EstimateCost(model, prompt, maxTokens)
			if *asJSON {
				return printJSON(cmd.OutOrStdout(), estimate)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "model:             %s (%s)\n", estimate.Model, estimate.Provider)
			fmt.Fprintf(cmd.OutOrStdout(), "prompt tokens:     %d\n", estimate.PromptTokens)
			fmt.Fprintf(cmd.OutOrStdout(), "completion tokens: %d\n", estimate.CompletionTokens)
			fmt.Fprintf(cmd.OutOrStdout(), "max cost:          %.6f¢\n", estimate.CostCents)
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", providers.DefaultModel, "model id")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", gateway.DefaultMaxTokens, "completion token limit")

	return cmd
}

func modelsCmd(e *env, asJSON *bool) *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List priced models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var table []providers.ModelPricing
			for _, m := range providers.Models() {
				if provider == "" || m.Provider.String() == provider {
					table = append(table, m)
				}
			}

			if *asJSON {
				return printJSON(cmd.OutOrStdout(), table)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODEL\tPROVIDER\tINPUT/1K\tOUTPUT/1K")
			for _, m := range table {
				fmt.Fprintf(tw, "%s\t%s\t$%g\t$%g\n", m.ModelID, m.Provider, m.InputPerThousand, m.OutputPerThousand)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "only list models of this provider")

	return cmd
}
