package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kyungseok/payment-risk-go/services/payment/api/paymentv1"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/config"
	"github.com/kyungseok/payment-risk-go/services/payment/internal/repository"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "paymentctl",
		Short:        "Operate the payment risk service",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("addr", "localhost:9002", "payment-service gRPC address")
	rootCmd.PersistentFlags().Duration("timeout", 5*time.Second, "request timeout")

	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(getCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Submit a payment for a risk decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, _ := cmd.Flags().GetString("key")
			if key == "" {
				key = uuid.New().String()
			}
			payer, _ := cmd.Flags().GetString("payer")
			payee, _ := cmd.Flags().GetString("payee")
			amount, _ := cmd.Flags().GetString("amount")
			currency, _ := cmd.Flags().GetString("currency")
			description, _ := cmd.Flags().GetString("description")

			return withClient(cmd, func(ctx context.Context, client paymentv1.PaymentServiceClient) error {
				resp, err := client.ProcessPayment(ctx, &paymentv1.ProcessPaymentRequest{
					IdempotencyKey: key,
					PayerID:        payer,
					PayeeID:        payee,
					Amount:         amount,
					Currency:       currency,
					Description:    description,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd, resp)
			})
		},
	}

	cmd.Flags().StringP("key", "k", "", "Idempotency key (generated when empty)")
	cmd.Flags().String("payer", "", "Payer ID")
	cmd.Flags().String("payee", "", "Payee ID")
	cmd.Flags().StringP("amount", "a", "", "Amount, e.g. 125.50")
	cmd.Flags().StringP("currency", "c", "USD", "Currency code")
	cmd.Flags().StringP("description", "d", "", "Description")
	_ = cmd.MarkFlagRequired("payer")
	_ = cmd.MarkFlagRequired("payee")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [transaction-id]",
		Short: "Look up an approved payment by transaction ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client paymentv1.PaymentServiceClient) error {
				resp, err := client.GetPayment(ctx, &paymentv1.GetPaymentRequest{TransactionID: args[0]})
				if err != nil {
					return err
				}
				return printJSON(cmd, resp)
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Run database migrations against DB_DSN",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dsn, _ := cmd.Flags().GetString("dsn"); dsn != "" {
				cfg.DBDSN = dsn
			}

			db, err := sql.Open("postgres", cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			if err := repository.Migrate(cmd.Context(), db, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: done\n", args[0])
			return nil
		},
	}

	cmd.Flags().String("dsn", "", "Postgres DSN (defaults to DB_DSN)")

	return cmd
}

func withClient(cmd *cobra.Command, fn func(ctx context.Context, client paymentv1.PaymentServiceClient) error) error {
	addr, _ := cmd.Flags().GetString("addr")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	return fn(ctx, paymentv1.NewPaymentServiceClient(conn))
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
