package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newBookingCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "booking",
		Short: "Inspect and cancel bookings",
	}
	cmd.AddCommand(newBookingGetCmd(opts))
	cmd.AddCommand(newBookingCancelCmd(opts))
	return cmd
}

func newBookingGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get CODE",
		Short: "Print a booking as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeApp, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp()

			b, err := app.Bookings.GetBooking(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			loc := app.Config.Business.Location()
			out, err := json.MarshalIndent(map[string]interface{}{
				"code":       b.Code,
				"status":     b.Status,
				"eventId":    b.EventID,
				"type":       b.Type,
				"pkgKey":     b.PkgKey,
				"pkgMinutes": b.PkgMinutes,
				"address":    b.Address,
				"start":      b.Start.In(loc).Format(time.RFC3339),
				"end":        b.End().In(loc).Format(time.RFC3339),
				"client":     map[string]string{"name": b.ClientName, "email": b.ClientEmail},
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newBookingCancelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel CODE",
		Short: "Cancel a booking and remove its calendar event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeApp, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp()

			if err := app.Bookings.CancelBooking(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s\n", args[0])
			return nil
		},
	}
}
