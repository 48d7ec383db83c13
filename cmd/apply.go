package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/glowcart/optimizer-cli/internal/engine"
	"github.com/glowcart/optimizer-cli/internal/model"
)

var (
	applyShop     string
	applyProduct  string
	applyType     string
	applyProposed string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply an optimization to one product and bill one credit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		typ, err := model.ParseType(applyType)
		if err != nil {
			return err
		}

		env, err := initEngine(ctx, "optimize")
		if err != nil {
			return err
		}
		defer env.Close()

		req := engine.ApplyRequest{Shop: applyShop, ProductID: applyProduct, Type: typ}
		if applyProposed != "" {
			// Apply a reviewed value instead of generating a fresh one.
			req.Suggestion = &model.SuggestionResult{
				Type:          typ,
				ProposedValue: applyProposed,
				Source:        model.SourceGenerated,
			}
		}

		result, err := env.Engine.ApplySingle(ctx, req)
		if err != nil {
			return err
		}

		env.Tracker.LogSummary()
		zap.L().Info("apply complete",
			zap.String("shop", applyShop),
			zap.String("product", result.ProductID),
			zap.Bool("billed", result.Billed),
			zap.Int64("credits_used", result.CreditsUsed),
		)

		return printJSON(result)
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyShop, "shop", "", "shop domain (required)")
	applyCmd.Flags().StringVar(&applyProduct, "product", "", "product ID (required)")
	applyCmd.Flags().StringVar(&applyType, "type", "", "optimization type: title, description, pricing, or keywords (required)")
	applyCmd.Flags().StringVar(&applyProposed, "proposed", "", "apply this value instead of generating one")
	_ = applyCmd.MarkFlagRequired("shop")
	_ = applyCmd.MarkFlagRequired("product")
	_ = applyCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(applyCmd)
}
