package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pocketbook/internal/budget"
	"pocketbook/internal/cli"
	"pocketbook/internal/core"
)

var (
	flagBudgetType  string
	flagBudgetLimit string
	flagNoLimit     bool
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Scheduled payments per category against the monthly limit",
	Args:  cobra.NoArgs,
	RunE:  withApp(runBudget),
}

func init() {
	budgetCmd.Flags().StringVarP(&flagBudgetType, "type", "t", string(core.Expense), "income or expense")
	budgetCmd.Flags().StringVar(&flagBudgetLimit, "limit", budget.DefaultLimit.String(), "Budget limit for expenses")
	budgetCmd.Flags().BoolVar(&flagNoLimit, "no-limit", false, "Show totals without a limit")
	watchFlag(budgetCmd)
	rootCmd.AddCommand(budgetCmd)
}

func runBudget(ctx context.Context, a *app, _ []string) error {
	typ, err := core.ParseEntryType(flagBudgetType)
	if err != nil {
		return err
	}
	tracker := budget.NewTracker()
	if err := tracker.SetFilter(typ); err != nil {
		return err
	}
	if !flagNoLimit {
		if err := tracker.SetLimit(flagBudgetLimit); err != nil {
			return err
		}
	}

	stream, err := a.calendar().ListPayments(ctx, a.session)
	if err != nil {
		return err
	}
	if !flagWatch {
		payments, err := firstValue(ctx, stream)
		if err != nil {
			return err
		}
		tracker.Replace(payments)
		printBudget(tracker.View())
		return nil
	}

	// Drain the signals raised by the setup above.
	select {
	case <-tracker.Changed():
	default:
	}
	done := make(chan error, 1)
	go func() { done <- tracker.Follow(ctx, stream) }()
	for {
		select {
		case <-tracker.Changed():
			printBudget(tracker.View())
		case err := <-done:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func printBudget(v budget.View) {
	rows := make([][]string, 0, len(v.Summary.Buckets)+1)
	for _, b := range v.Summary.Buckets {
		rows = append(rows, []string{cli.Swatch(b.Color, b.Category), b.Total.String()})
	}
	rows = append(rows, []string{"Total", v.Summary.GrandTotal.String()})

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("BUDGET  %s", v.Summary.Type)))
	fmt.Print(cli.RenderTable(cli.Table{Headers: []string{"Category", "Amount"}, Rows: rows}))
	if v.Summary.Type == core.Expense {
		fmt.Println("  " + cli.RenderStatus(v.Status))
	}
}
