package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/glowcart/optimizer-cli/internal/model"
)

var (
	previewShop    string
	previewProduct string
	previewType    string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Generate a suggestion for one product without applying it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		typ, err := model.ParseType(previewType)
		if err != nil {
			return err
		}

		env, err := initEngine(ctx, "optimize")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Engine.Preview(ctx, previewShop, previewProduct, typ)
		if err != nil {
			return err
		}

		env.Tracker.LogSummary()
		zap.L().Info("preview complete",
			zap.String("shop", previewShop),
			zap.String("product", result.ProductID),
			zap.String("source", string(result.Suggestion.Source)),
		)

		return printJSON(result)
	},
}

func init() {
	previewCmd.Flags().StringVar(&previewShop, "shop", "", "shop domain, e.g. acme.myshopify.com (required)")
	previewCmd.Flags().StringVar(&previewProduct, "product", "", "product ID (required)")
	previewCmd.Flags().StringVar(&previewType, "type", "", "optimization type: title, description, pricing, or keywords (required)")
	_ = previewCmd.MarkFlagRequired("shop")
	_ = previewCmd.MarkFlagRequired("product")
	_ = previewCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(previewCmd)
}
