package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pocketbook/internal/cli"
	"pocketbook/internal/core"
)

var flagLimit int

var incomeCmd = &cobra.Command{
	Use:   "income AMOUNT [DESCRIPTION...]",
	Short: "Record an income entry",
	Args:  cobra.MinimumNArgs(1),
	RunE:  withApp(runRecord(core.Income)),
}

var expenseCmd = &cobra.Command{
	Use:   "expense AMOUNT [DESCRIPTION...]",
	Short: "Record an expense entry",
	Args:  cobra.MinimumNArgs(1),
	RunE:  withApp(runRecord(core.Expense)),
}

var transactionsCmd = &cobra.Command{
	Use:     "transactions",
	Aliases: []string{"tx"},
	Short:   "List transactions, newest first",
	Args:    cobra.NoArgs,
	RunE:    withApp(runTransactions),
}

func init() {
	transactionsCmd.Flags().IntVarP(&flagLimit, "limit", "l", 20, "Rows to show (0 for all)")
	watchFlag(transactionsCmd)
	rootCmd.AddCommand(incomeCmd, expenseCmd, transactionsCmd)
}

func runRecord(typ core.EntryType) func(context.Context, *app, []string) error {
	return func(ctx context.Context, a *app, args []string) error {
		desc := strings.Join(args[1:], " ")
		l := a.ledger()
		record := l.RecordExpense
		if typ == core.Income {
			record = l.RecordIncome
		}
		tx, err := record(ctx, a.session, args[0], desc)
		if err != nil {
			return err
		}
		fmt.Printf("Recorded %s %s (%s) as %s\n", tx.Type, tx.Amount, tx.Description, tx.ID)
		return nil
	}
}

func runTransactions(ctx context.Context, a *app, _ []string) error {
	stream, err := a.ledger().ListTransactions(ctx, a.session)
	if err != nil {
		return err
	}
	return show(ctx, stream, func(txs []core.Transaction) {
		if flagLimit > 0 && len(txs) > flagLimit {
			txs = txs[:flagLimit]
		}
		rows := make([][]string, 0, len(txs))
		for _, tx := range txs {
			amount := tx.Amount.String()
			if tx.Type == core.Expense {
				amount = "-" + amount
			}
			rows = append(rows, []string{
				formatInstant(tx.Timestamp),
				string(tx.Type),
				tx.Description,
				amount,
			})
		}
		fmt.Println()
		if len(rows) == 0 {
			fmt.Println("  No transactions yet.")
			return
		}
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "TRANSACTIONS",
			Headers: []string{"When", "Type", "Description", "Amount"},
			Rows:    rows,
		}))
	})
}
