package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"pocketbook/internal/calendar"
	"pocketbook/internal/cli"
	"pocketbook/internal/core"
)

var (
	flagPayDate     string
	flagPayType     string
	flagPayCategory string
	flagAsOf        string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule AMOUNT DESCRIPTION...",
	Short: "Schedule a payment on the calendar",
	Args:  cobra.MinimumNArgs(2),
	RunE:  withApp(runSchedule),
}

var upcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "List scheduled payments from today on",
	Args:  cobra.NoArgs,
	RunE:  withApp(runUpcoming),
}

var marksCmd = &cobra.Command{
	Use:   "marks",
	Short: "Show calendar dates that carry payments",
	Args:  cobra.NoArgs,
	RunE:  withApp(runMarks),
}

func init() {
	scheduleCmd.Flags().StringVar(&flagPayDate, "date", "", "Payment date, YYYY-MM-DD")
	scheduleCmd.Flags().StringVarP(&flagPayType, "type", "t", string(core.Expense), "income or expense")
	scheduleCmd.Flags().StringVarP(&flagPayCategory, "category", "c", "", "Payment category")
	_ = scheduleCmd.MarkFlagRequired("date")
	_ = scheduleCmd.MarkFlagRequired("category")
	upcomingCmd.Flags().StringVar(&flagAsOf, "as-of", "", "Cut-off date, YYYY-MM-DD (defaults to today)")
	watchFlag(upcomingCmd)
	rootCmd.AddCommand(scheduleCmd, upcomingCmd, marksCmd)
}

func runSchedule(ctx context.Context, a *app, args []string) error {
	p, err := a.calendar().AddPayment(ctx, a.session, calendar.PaymentInput{
		Date:        flagPayDate,
		Amount:      args[0],
		Description: strings.Join(args[1:], " "),
		Type:        flagPayType,
		Category:    flagPayCategory,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Scheduled %s %s on %s (%s) as %s\n", p.Type, p.Amount, p.Date, p.Category, p.ID)
	return nil
}

func runUpcoming(ctx context.Context, a *app, _ []string) error {
	asOf := ""
	if flagAsOf != "" {
		d, err := core.ParseDate(flagAsOf)
		if err != nil {
			return &core.ValidationError{Field: "as-of", Err: err}
		}
		asOf = d
	}
	stream, err := a.calendar().Watch(ctx, a.session)
	if err != nil {
		return err
	}
	return show(ctx, stream, func(v calendar.View) {
		upcoming := v.Upcoming
		if asOf != "" {
			upcoming = calendar.DerivedUpcoming(v.Payments, asOf)
		}
		rows := make([][]string, 0, len(upcoming))
		for _, p := range upcoming {
			rows = append(rows, []string{
				cli.Swatch(calendar.MarkColor(p.Type), p.Date),
				p.Category,
				p.Description,
				p.Amount.String(),
			})
		}
		printList("UPCOMING PAYMENTS", []string{"Date", "Category", "Description", "Amount"}, rows)
	})
}

func runMarks(ctx context.Context, a *app, _ []string) error {
	stream, err := a.calendar().Watch(ctx, a.session)
	if err != nil {
		return err
	}
	v, err := firstValue(ctx, stream)
	if err != nil {
		return err
	}
	dates := make([]string, 0, len(v.Marks))
	for d := range v.Marks {
		dates = append(dates, d)
	}
	slices.Sort(dates)
	fmt.Println()
	if len(dates) == 0 {
		fmt.Println("  No scheduled payments.")
		return nil
	}
	for _, d := range dates {
		fmt.Println("  " + cli.Swatch(v.Marks[d], d))
	}
	return nil
}
