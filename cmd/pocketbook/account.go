package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pocketbook/internal/cli"
	"pocketbook/internal/core"
)

var flagInitialBalance string

var initAccountCmd = &cobra.Command{
	Use:   "init-account",
	Short: "Create the account with an opening balance",
	Args:  cobra.NoArgs,
	RunE:  withApp(runInitAccount),
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the account balance and totals",
	Args:  cobra.NoArgs,
	RunE:  runBalance,
}

func init() {
	initAccountCmd.Flags().StringVar(&flagInitialBalance, "balance", "0", "Opening balance")
	watchFlag(balanceCmd)
	rootCmd.AddCommand(initAccountCmd, balanceCmd)
}

func runInitAccount(ctx context.Context, a *app, _ []string) error {
	initial, err := core.ParseBalance(flagInitialBalance)
	if err != nil {
		return err
	}
	acc, err := a.ledger().CreateAccount(ctx, a.session, initial)
	if err != nil {
		return err
	}
	fmt.Printf("Account %s ready, balance %s\n", acc.ID, acc.TotalBalance)
	return nil
}

func runBalance(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app, _ []string) error {
		stream, err := a.ledger().ReadAccountSnapshot(ctx, a.session)
		if err != nil {
			return err
		}
		return show(ctx, stream, printSnapshot)
	})(cmd, args)
}

func printSnapshot(s core.AccountSnapshot) {
	fmt.Println()
	fmt.Println(cli.RenderTitle("ACCOUNT " + s.AccountID))
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"", "Amount"},
		Rows: [][]string{
			{"Balance", s.TotalBalance.String()},
			{"Income", s.Income.String()},
			{"Expense", s.Expense.String()},
		},
	}))
	fmt.Println(cli.Muted(fmt.Sprintf("  version %d", s.Version)))
}
