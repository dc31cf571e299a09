package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/insiderlens/internal/common"
	"github.com/ternarybob/insiderlens/internal/models"
)

var (
	subscribeStatus string
	notificationsN  int
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe EMAIL",
	Short: "Register a notification subscriber",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(args[0])
		if !strings.Contains(email, "@") {
			return fmt.Errorf("invalid email %q", email)
		}

		application, err := openStorage()
		if err != nil {
			return err
		}
		defer application.Close()

		subscriber := &models.Subscriber{
			ID:                 common.NewSubscriberID(),
			Email:              email,
			SubscriptionStatus: subscribeStatus,
			CreatedAt:          time.Now(),
		}
		if err := application.StorageManager.SubscriberStorage().SaveSubscriber(cmd.Context(), subscriber); err != nil {
			return err
		}
		fmt.Printf("subscribed %s as %s (eligible: %v)\n", email, subscriber.ID, subscriber.Eligible())
		return nil
	},
}

var subscribersCmd = &cobra.Command{
	Use:   "subscribers",
	Short: "List notification subscribers",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openStorage()
		if err != nil {
			return err
		}
		defer application.Close()

		subscribers, err := application.StorageManager.SubscriberStorage().ListSubscribers(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tSTATUS\tELIGIBLE")
		for _, s := range subscribers {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", s.ID, s.Email, s.SubscriptionStatus, s.Eligible())
		}
		return w.Flush()
	},
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications SUBSCRIBER_ID",
	Short: "List a subscriber's notifications",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openStorage()
		if err != nil {
			return err
		}
		defer application.Close()

		list, err := application.StorageManager.NotificationStorage().ListNotifications(cmd.Context(), args[0], notificationsN)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CREATED\tTICKER\tTYPE\tSCORE\tMESSAGE")
		for _, n := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", n.CreatedAt.Local().Format(time.DateTime), n.Ticker, n.Type, n.Score, n.Message)
		}
		return w.Flush()
	},
}

func init() {
	subscribeCmd.Flags().StringVar(&subscribeStatus, "status", models.SubscriptionActive, "Subscription status")
	notificationsCmd.Flags().IntVarP(&notificationsN, "limit", "n", 20, "Maximum notifications to list")
}
