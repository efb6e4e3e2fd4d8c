package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Remove bookings whose calendar write never completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeApp, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp()

			report, err := app.Bookings.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d events_deleted=%d rows_deleted=%d failed=%d\n",
				report.Scanned, report.EventsDeleted, report.RowsDeleted, report.Failed)
			if report.Failed > 0 {
				return fmt.Errorf("%d bookings could not be reconciled", report.Failed)
			}
			return nil
		},
	}
}
