package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/glowcart/optimizer-cli/internal/model"
)

var (
	auditShop string
	auditType string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Classify every product in a catalog against one optimization rule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		typ, err := model.ParseType(auditType)
		if err != nil {
			return err
		}

		env, err := initEngine(ctx, "optimize")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Engine.Audit(ctx, auditShop, typ)
		if err != nil {
			return err
		}

		zap.L().Info("audit complete",
			zap.String("shop", auditShop),
			zap.Int("total", result.Total),
			zap.Int("needs_work", result.NeedsWork),
			zap.Int("recorded", result.Recorded),
		)

		return printJSON(result)
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditShop, "shop", "", "shop domain (required)")
	auditCmd.Flags().StringVar(&auditType, "type", "", "optimization type: title, description, pricing, or keywords (required)")
	_ = auditCmd.MarkFlagRequired("shop")
	_ = auditCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(auditCmd)
}
