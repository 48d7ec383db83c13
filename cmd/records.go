package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/glowcart/optimizer-cli/internal/model"
	"github.com/glowcart/optimizer-cli/internal/report"
	"github.com/glowcart/optimizer-cli/internal/store"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect applied optimization records",
}

var (
	recordsShop   string
	recordsType   string
	recordsLimit  int
	recordsOffset int
	recordsOut    string
)

// recordsFilter builds the list filter from the shared flags.
func recordsFilter() (store.RecordFilter, error) {
	filter := store.RecordFilter{Limit: recordsLimit, Offset: recordsOffset}
	if recordsType != "" {
		typ, err := model.ParseType(recordsType)
		if err != nil {
			return store.RecordFilter{}, err
		}
		filter.Type = typ
	}
	return filter, nil
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List records for a shop, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		filter, err := recordsFilter()
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := st.ListRecords(ctx, recordsShop, filter)
		if err != nil {
			return err
		}

		return printJSON(map[string]any{"records": records})
	},
}

var recordsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export records for a shop to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		filter, err := recordsFilter()
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := st.ListRecords(ctx, recordsShop, filter)
		if err != nil {
			return err
		}

		if err := report.WriteRecords(recordsOut, records); err != nil {
			return err
		}

		zap.L().Info("records exported",
			zap.String("shop", recordsShop),
			zap.Int("records", len(records)),
			zap.String("path", recordsOut),
		)
		return nil
	},
}

func init() {
	recordsCmd.PersistentFlags().StringVar(&recordsShop, "shop", "", "shop domain (required)")
	recordsCmd.PersistentFlags().StringVar(&recordsType, "type", "", "filter by optimization type")
	recordsCmd.PersistentFlags().IntVar(&recordsLimit, "limit", 0, "max records (0 = all)")
	recordsCmd.PersistentFlags().IntVar(&recordsOffset, "offset", 0, "records to skip")
	_ = recordsCmd.MarkPersistentFlagRequired("shop")

	recordsExportCmd.Flags().StringVar(&recordsOut, "out", "records.xlsx", "output workbook path")

	recordsCmd.AddCommand(recordsListCmd, recordsExportCmd)
	rootCmd.AddCommand(recordsCmd)
}
