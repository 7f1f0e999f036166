package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/grooming-booking/internal/bookings"
)

func newSyncSweepCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-sweep",
		Short: "Re-run ERP sync for recent failed bookings once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := e.app(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			// A tick channel that never fires keeps the sweeper from owning a ticker.
			sweeper, err := app.NewSweeper(make(chan time.Time), func() {})
			if err != nil {
				return err
			}
			n, err := sweeper.SweepOnce(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "re-enqueued %d failed bookings\n", n)
			return err
		},
	}
}

func newBookingCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "booking",
		Short: "Inspect stored bookings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <booking-number>",
		Short: "Print one booking as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := e.app(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			b, err := app.Store.GetByNumber(cmd.Context(), args[0])
			if errors.Is(err, bookings.ErrBookingNotFound) {
				return fmt.Errorf("booking %s not found", args[0])
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(b)
		},
	})
	return cmd
}
