package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/glowcart/optimizer-cli/internal/engine"
	"github.com/glowcart/optimizer-cli/internal/model"
)

var (
	bulkShop      string
	bulkType      string
	bulkProducts  string
	bulkFile      string
	bulkFromAudit bool
	bulkWorkers   int
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Apply one optimization type across many products",
	Long:  "Runs the apply sequence for a batch of products under a bounded worker pool. Product IDs come from --products, --file, or --from-audit; the whole batch is rejected up front when the balance cannot cover it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		typ, err := model.ParseType(bulkType)
		if err != nil {
			return err
		}

		env, err := initEngine(ctx, "optimize")
		if err != nil {
			return err
		}
		defer env.Close()

		ids, err := resolveBulkProducts(ctx, env, typ)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			zap.L().Info("no products to optimize")
			return nil
		}

		zap.L().Info("starting bulk apply",
			zap.String("shop", bulkShop),
			zap.String("type", bulkType),
			zap.Int("products", len(ids)),
		)

		result, err := env.Engine.ApplyBulk(ctx, engine.BulkRequest{
			Shop:       bulkShop,
			Type:       typ,
			ProductIDs: ids,
			Workers:    bulkWorkers,
		})

		env.Tracker.LogSummary()
		if result != nil {
			if pErr := printJSON(result); pErr != nil {
				return pErr
			}
		}
		return err
	},
}

// resolveBulkProducts picks the product ID source. Exactly one of
// --products, --file, and --from-audit must be set.
func resolveBulkProducts(ctx context.Context, env *engineEnv, typ model.OptimizationType) ([]string, error) {
	set := 0
	for _, on := range []bool{bulkProducts != "", bulkFile != "", bulkFromAudit} {
		if on {
			set++
		}
	}
	if set != 1 {
		return nil, eris.New("exactly one of --products, --file, or --from-audit is required")
	}

	switch {
	case bulkProducts != "":
		return splitProductList(bulkProducts), nil
	case bulkFile != "":
		return readProductFile(bulkFile)
	default:
		return auditWorkList(ctx, env, typ)
	}
}

// splitProductList parses a comma-separated ID list, dropping empties.
func splitProductList(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// readProductFile reads product IDs from a file, one per line. Blank lines
// and #-comments are skipped.
func readProductFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read product file %s", path)
	}

	var ids []string
	for _, line := range strings.Split(string(data), "\n") {
		id := strings.TrimSpace(line)
		if id == "" || strings.HasPrefix(id, "#") {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// auditWorkList audits the catalog and returns the products the rule flags
// that have no prior record for this type.
func auditWorkList(ctx context.Context, env *engineEnv, typ model.OptimizationType) ([]string, error) {
	audit, err := env.Engine.Audit(ctx, bulkShop, typ)
	if err != nil {
		return nil, eris.Wrap(err, "audit for work list")
	}

	var ids []string
	for _, entry := range audit.Entries {
		if entry.NeedsByRule && !entry.HasRecord {
			ids = append(ids, entry.ProductID)
		}
	}

	zap.L().Info("audit work list built",
		zap.Int("total", audit.Total),
		zap.Int("selected", len(ids)),
	)
	return ids, nil
}

func init() {
	bulkCmd.Flags().StringVar(&bulkShop, "shop", "", "shop domain (required)")
	bulkCmd.Flags().StringVar(&bulkType, "type", "", "optimization type: title, description, pricing, or keywords (required)")
	bulkCmd.Flags().StringVar(&bulkProducts, "products", "", "comma-separated product IDs")
	bulkCmd.Flags().StringVar(&bulkFile, "file", "", "file with one product ID per line")
	bulkCmd.Flags().BoolVar(&bulkFromAudit, "from-audit", false, "audit the catalog and optimize every flagged product without a record")
	bulkCmd.Flags().IntVar(&bulkWorkers, "workers", 0, "concurrent workers (default from config, max 8)")
	_ = bulkCmd.MarkFlagRequired("shop")
	_ = bulkCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(bulkCmd)
}
