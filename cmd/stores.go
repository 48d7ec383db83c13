package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/glowcart/optimizer-cli/internal/model"
)

var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "Manage connected shops",
}

var (
	connectShop       string
	connectToken      string
	connectScopes     string
	connectAPIVersion string
)

var storesConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Register a shop's access token and scopes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		conn := model.StoreConnection{
			ShopDomain:  connectShop,
			AccessToken: connectToken,
			Scopes:      connectScopes,
			APIVersion:  connectAPIVersion,
		}
		if err := st.UpsertStore(ctx, conn); err != nil {
			return err
		}
		if err := st.EnsureAccount(ctx, connectShop); err != nil {
			return err
		}

		zap.L().Info("store connected",
			zap.String("shop", connectShop),
			zap.String("scopes", connectScopes),
			zap.Bool("can_write", conn.HasScope(model.ScopeWriteProducts)),
		)
		return nil
	},
}

var storesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connected shops",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		stores, err := st.ListStores(ctx)
		if err != nil {
			return err
		}

		return printJSON(map[string]any{"stores": stores})
	},
}

func init() {
	storesConnectCmd.Flags().StringVar(&connectShop, "shop", "", "shop domain (required)")
	storesConnectCmd.Flags().StringVar(&connectToken, "token", "", "Admin API access token (required)")
	storesConnectCmd.Flags().StringVar(&connectScopes, "scopes", "read_products,write_products", "comma-separated granted scopes")
	storesConnectCmd.Flags().StringVar(&connectAPIVersion, "api-version", "", "pin an Admin API version for this shop")
	_ = storesConnectCmd.MarkFlagRequired("shop")
	_ = storesConnectCmd.MarkFlagRequired("token")

	storesCmd.AddCommand(storesConnectCmd, storesListCmd)
	rootCmd.AddCommand(storesCmd)
}
