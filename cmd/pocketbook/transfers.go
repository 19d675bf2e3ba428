package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pocketbook/internal/cli"
	"pocketbook/internal/core"
	"pocketbook/internal/ledger"
)

var (
	flagRecipient string
	flagAsset     string
	flagInvestOn  string
)

var transferCmd = &cobra.Command{
	Use:   "transfer AMOUNT [DESCRIPTION...]",
	Short: "Record an outbound transfer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  withApp(runTransfer),
}

var investCmd = &cobra.Command{
	Use:   "invest AMOUNT [DESCRIPTION...]",
	Short: "Record an investment purchase",
	Args:  cobra.MinimumNArgs(1),
	RunE:  withApp(runInvest),
}

var transfersCmd = &cobra.Command{
	Use:   "transfers",
	Short: "List transfers",
	Args:  cobra.NoArgs,
	RunE:  withApp(runTransfers),
}

var investmentsCmd = &cobra.Command{
	Use:   "investments",
	Short: "List investments",
	Args:  cobra.NoArgs,
	RunE:  withApp(runInvestments),
}

func init() {
	transferCmd.Flags().StringVar(&flagRecipient, "to", "", "Recipient of the transfer")
	_ = transferCmd.MarkFlagRequired("to")
	investCmd.Flags().StringVar(&flagAsset, "asset", "", "Asset bought")
	investCmd.Flags().StringVar(&flagInvestOn, "date", "", "Purchase date, YYYY-MM-DD (defaults to now)")
	_ = investCmd.MarkFlagRequired("asset")
	watchFlag(transfersCmd)
	watchFlag(investmentsCmd)
	rootCmd.AddCommand(transferCmd, investCmd, transfersCmd, investmentsCmd)
}

func runTransfer(ctx context.Context, a *app, args []string) error {
	t, err := a.ledger().RecordTransfer(ctx, a.session, ledger.TransferInput{
		Recipient:   flagRecipient,
		Amount:      args[0],
		Description: strings.Join(args[1:], " "),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Recorded transfer of %s to %s as %s\n", t.Amount, t.Recipient, t.ID)
	return nil
}

func runInvest(ctx context.Context, a *app, args []string) error {
	in := ledger.InvestmentInput{
		Asset:       flagAsset,
		Amount:      args[0],
		Description: strings.Join(args[1:], " "),
	}
	if flagInvestOn != "" {
		d, err := time.ParseInLocation(core.DateLayout, strings.TrimSpace(flagInvestOn), time.Local)
		if err != nil {
			return &core.ValidationError{Field: "date", Err: core.ErrInvalidDate}
		}
		in.Date = d
	}
	inv, err := a.ledger().RecordInvestment(ctx, a.session, in)
	if err != nil {
		return err
	}
	fmt.Printf("Recorded investment of %s in %s as %s\n", inv.Amount, inv.Asset, inv.ID)
	return nil
}

func runTransfers(ctx context.Context, a *app, _ []string) error {
	stream, err := a.ledger().ListTransfers(ctx, a.session)
	if err != nil {
		return err
	}
	return show(ctx, stream, func(ts []core.Transfer) {
		rows := make([][]string, 0, len(ts))
		for _, t := range ts {
			rows = append(rows, []string{formatInstant(t.Timestamp), t.Recipient, t.Description, t.Amount.String()})
		}
		printList("TRANSFERS", []string{"When", "Recipient", "Description", "Amount"}, rows)
	})
}

func runInvestments(ctx context.Context, a *app, _ []string) error {
	stream, err := a.ledger().ListInvestments(ctx, a.session)
	if err != nil {
		return err
	}
	return show(ctx, stream, func(is []core.Investment) {
		rows := make([][]string, 0, len(is))
		for _, inv := range is {
			rows = append(rows, []string{formatInstant(inv.Date), inv.Asset, inv.Description, inv.Amount.String()})
		}
		printList("INVESTMENTS", []string{"When", "Asset", "Description", "Amount"}, rows)
	})
}

func printList(title string, headers []string, rows [][]string) {
	fmt.Println()
	if len(rows) == 0 {
		fmt.Printf("  No %s yet.\n", strings.ToLower(title))
		return
	}
	fmt.Print(cli.RenderTable(cli.Table{Title: title, Headers: headers, Rows: rows}))
}

func formatInstant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}
