package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-pix/app/poller"
	"github.com/vibast-solutions/ms-go-pix/app/types"
)

var (
	watchServiceURL string
	watchInterval   time.Duration
	watchTimeout    time.Duration
)

// watchCmd drives the confirmation loop from the command line, the same loop
// a checkout frontend runs while the shopper scans the QR code.
var watchCmd = &cobra.Command{
	Use:   "watch <payment-id>",
	Short: "Poll a payment until it reaches a terminal status",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		paymentID := args[0]

		deadline := time.Now().Add(watchTimeout)
		if expiresAt := fetchExpiry(watchServiceURL, paymentID); !expiresAt.IsZero() && expiresAt.Before(deadline) {
			deadline = expiresAt
		}

		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		defer cancel()

		p := poller.New(poller.Config{
			BaseURL:  watchServiceURL,
			Interval: watchInterval,
		})

		status, err := p.Wait(ctx, paymentID)
		if err != nil {
			logrus.WithError(err).WithField("payment_id", paymentID).Fatal("polling ended without a terminal status")
		}
		logrus.WithFields(logrus.Fields{
			"payment_id": paymentID,
			"status":     status,
		}).Info("payment settled")
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchServiceURL, "url", "http://localhost:8080", "Base URL of the PIX service")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 3*time.Second, "Delay between status requests")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 30*time.Minute, "Give up after this long")
}

// fetchExpiry reads the payment's QR expiry so the poll stops when the code
// can no longer be paid. Best effort: any failure falls back to --timeout.
func fetchExpiry(baseURL, paymentID string) time.Time {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL + "/api/pix/" + paymentID)
	if err != nil {
		return time.Time{}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return time.Time{}
	}

	var payload types.PaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return time.Time{}
	}
	expiresAt, err := time.Parse(time.RFC3339, payload.ExpiresAt)
	if err != nil {
		return time.Time{}
	}
	return expiresAt
}
