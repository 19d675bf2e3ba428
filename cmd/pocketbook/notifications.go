package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pocketbook/internal/cli"
	"pocketbook/internal/log"
	"pocketbook/internal/notify"
)

var flagMarkAllRead bool

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notes"},
	Short:   "Show the merged payment, transfer and investment feed",
	Args:    cobra.NoArgs,
	RunE:    withApp(runNotifications),
}

func init() {
	notificationsCmd.Flags().BoolVar(&flagMarkAllRead, "mark-all-read", false, "Mark every shown notification as read")
	watchFlag(notificationsCmd)
	rootCmd.AddCommand(notificationsCmd)
}

func runNotifications(ctx context.Context, a *app, _ []string) error {
	feed := notify.NewFeed()
	m := notify.NewMerger(a.backend.Store, a.session, feed,
		notify.WithLogger(a.logger.WithComponent(log.ComponentNotify)),
		notify.WithLocation(time.Local))

	if !flagWatch {
		if err := m.Catchup(ctx); err != nil {
			return err
		}
		printNotifications(feed.Notifications())
		if flagMarkAllRead {
			fmt.Printf("  Marked %d notifications as read\n", feed.MarkAllRead())
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	shown := 0
	for {
		select {
		case <-feed.Changed():
			notes := feed.Notifications()
			if len(notes) > shown {
				printNotifications(notes[shown:])
				shown = len(notes)
			}
			if flagMarkAllRead {
				feed.MarkAllRead()
			}
		case err := <-done:
			return err
		}
	}
}

func printNotifications(notes []notify.Notification) {
	rows := make([][]string, 0, len(notes))
	for _, n := range notes {
		state := "new"
		if n.IsRead {
			state = cli.Muted("read")
		}
		rows = append(rows, []string{n.Timestamp, n.Title, n.Description, state})
	}
	printList("NOTIFICATIONS", []string{"When", "Title", "Description", ""}, rows)
}
