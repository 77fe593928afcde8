package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vnmchuo/adstream-gateway/internal/pricing"
	"github.com/vnmchuo/adstream-gateway/internal/provider"
)

func newPriceCmd() *cobra.Command {
	var (
		vendor     string
		model      string
		prompt     int
		completion int
		text       string
	)

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Estimate the cost of a completion",
		Example: `  gateway price --provider openai --model gpt-4o --prompt 1000 --completion 500
  gateway price --provider openai --model gpt-4o-mini --text "Write a headline for running shoes"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if prompt < 0 || completion < 0 {
				return errors.New("token counts must not be negative")
			}
			if text != "" {
				prompt = provider.EstimateTokens(text).Prompt
			}

			info := pricing.GetCostInfo(vendor, model)
			cost := pricing.CalculateCost(vendor, model, prompt, completion)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "provider:    %s\n", vendor)
			fmt.Fprintf(out, "model:       %s\n", model)
			fmt.Fprintf(out, "rates:       $%.6f prompt, $%.6f completion per 1K tokens\n", info.PromptCostPer1K, info.CompletionCostPer1K)
			fmt.Fprintf(out, "tokens:      %d prompt, %d completion\n", prompt, completion)
			fmt.Fprintf(out, "estimated:   $%.6f\n", cost)
			return nil
		},
	}

	cmd.Flags().StringVar(&vendor, "provider", string(provider.GitHub), "vendor name (github or openai)")
	cmd.Flags().StringVar(&model, "model", provider.DefaultModel, "model name")
	cmd.Flags().IntVar(&prompt, "prompt", 0, "prompt tokens")
	cmd.Flags().IntVar(&completion, "completion", 0, "completion tokens")
	cmd.Flags().StringVar(&text, "text", "", "estimate prompt tokens from this text instead of --prompt")

	return cmd
}
