package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Manage a shop's credit account",
}

var (
	creditsShop    string
	topupAmount    int64
	topupMemo      string
	historyLimit   int
	reconcileFixID string
)

var creditsBalanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the current balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		balance, err := st.GetBalance(ctx, creditsShop)
		if err != nil {
			return err
		}

		return printJSON(map[string]any{"shop_domain": creditsShop, "balance": balance})
	},
}

var creditsTopupCmd = &cobra.Command{
	Use:   "topup",
	Short: "Add credits to a shop's account",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if topupAmount <= 0 {
			return eris.New("amount must be positive")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		txn, err := st.Credit(ctx, creditsShop, topupAmount, "topup", topupMemo)
		if err != nil {
			return err
		}

		balance, err := st.GetBalance(ctx, creditsShop)
		if err != nil {
			return err
		}

		zap.L().Info("credits added",
			zap.String("shop", creditsShop),
			zap.Int64("amount", topupAmount),
			zap.Int64("balance", balance),
		)

		return printJSON(map[string]any{"transaction": txn, "balance": balance})
	},
}

var creditsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent ledger entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		txns, err := st.Transactions(ctx, creditsShop, historyLimit)
		if err != nil {
			return err
		}

		return printJSON(map[string]any{"transactions": txns})
	},
}

var creditsReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare the balance against the ledger and list billing misses",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if reconcileFixID != "" {
			if err := st.ResolveReconciliation(ctx, reconcileFixID); err != nil {
				return err
			}
			zap.L().Info("reconciliation entry resolved", zap.String("id", reconcileFixID))
		}

		report, err := st.Reconcile(ctx, creditsShop)
		if err != nil {
			return err
		}

		pending, err := st.ListReconciliations(ctx, creditsShop, true)
		if err != nil {
			return err
		}

		if !report.Consistent {
			zap.L().Warn("ledger does not match balance",
				zap.String("shop", creditsShop),
				zap.Int64("balance", report.Balance),
				zap.Int64("ledger_sum", report.LedgerSum),
			)
		}

		return printJSON(map[string]any{"report": report, "unbilled": pending})
	},
}

func init() {
	creditsCmd.PersistentFlags().StringVar(&creditsShop, "shop", "", "shop domain (required)")
	_ = creditsCmd.MarkPersistentFlagRequired("shop")

	creditsTopupCmd.Flags().Int64Var(&topupAmount, "amount", 0, "credits to add (required)")
	creditsTopupCmd.Flags().StringVar(&topupMemo, "memo", "", "free-form note stored with the transaction")
	_ = creditsTopupCmd.MarkFlagRequired("amount")

	creditsHistoryCmd.Flags().IntVar(&historyLimit, "limit", 50, "max entries to show")

	creditsReconcileCmd.Flags().StringVar(&reconcileFixID, "resolve", "", "mark this reconciliation entry as handled first")

	creditsCmd.AddCommand(creditsBalanceCmd, creditsTopupCmd, creditsHistoryCmd, creditsReconcileCmd)
	rootCmd.AddCommand(creditsCmd)
}
