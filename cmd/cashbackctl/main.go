package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"cashback-service/internal/app"
	"cashback-service/internal/config"
	"cashback-service/internal/database"
	"cashback-service/internal/logging"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "cashbackctl",
		Short:   "Operator commands for the cashback NFT service",
		Version: Version,
	}

	rootCmd.AddCommand(rolesCmd())
	rootCmd.AddCommand(grantMinterRoleCmd())
	rootCmd.AddCommand(contractInfoCmd())
	rootCmd.AddCommand(retryMintCmd())
	rootCmd.AddCommand(walletNFTsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup builds the services. Chain-only commands skip the database.
func setup(ctx context.Context, withDB bool) (*app.App, error) {
	config.LoadEnv()
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, "text")

	var db *gorm.DB
	if withDB {
		database.Connect(cfg)
		db = database.DB
	}

	a, err := app.New(cfg, db, nil)
	if err != nil {
		return nil, err
	}
	a.InitChain(ctx)
	return a, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func rolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "Show which contract roles the signer holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			roles, err := a.Contract.MyRoles(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(roles)
		},
	}
}

func grantMinterRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant-minter-role [address]",
		Short: "Grant MINTER_ROLE to an address (signer needs DEFAULT_ADMIN_ROLE)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.NFT.GrantMinterRole(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("grant failed: %s", res.Error)
			}
			return printJSON(res)
		},
	}
}

func contractInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contract-info",
		Short: "Show NFT contract name, supply, owner and supported interfaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			return printJSON(a.Contract.Info(cmd.Context()))
		},
	}
}

func retryMintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry-mint [transactionId]",
		Short: "Mint the NFT for a transaction left in pending_contract_update",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			all, _ := cmd.Flags().GetBool("all")
			if all {
				n, err := a.MintRetry.SchedulePending(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("Retried %d pending mints\n", n)
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("transaction id required unless --all is set")
			}

			res, err := a.MintRetry.RetryMint(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}

	cmd.Flags().Bool("all", false, "Retry every pending mint, oldest first")

	return cmd
}

func walletNFTsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet-nfts [address]",
		Short: "List the NFTs a wallet owns, enriched with transaction data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chainOnly, _ := cmd.Flags().GetBool("chain-only")

			a, err := setup(cmd.Context(), !chainOnly)
			if err != nil {
				return err
			}
			defer a.Close()

			if chainOnly {
				resp, err := a.Ownership.ContractWalletNFTs(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(resp)
			}
			resp, err := a.Ownership.WalletNFTs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}

	cmd.Flags().Bool("chain-only", false, "Read ownership from the contract without the database")

	return cmd
}
