package main

import (
	"fmt"
	"time"

	"github.com/Domenick1991/fieldbooking/internal/service/booking"
	"github.com/spf13/cobra"
)

func newAvailabilityCmd(opts *rootOptions) *cobra.Command {
	var (
		date    string
		minutes int
		address string
	)

	c := &cobra.Command{
		Use:   "availability",
		Short: "List bookable slots for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeApp, err := opts.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp()

			result, err := app.Bookings.Availability(cmd.Context(), booking.AvailabilityInput{
				DateISO:    date,
				PkgMinutes: minutes,
				Address:    address,
			})
			if err != nil {
				return err
			}
			if len(result.Slots) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no slots on %s\n", result.DateISO)
				return nil
			}
			loc := app.Config.Business.Location()
			for _, s := range result.Slots {
				fmt.Fprintf(cmd.OutOrStdout(), "%s - %s  %.1f mi\n",
					s.Start.In(loc).Format(time.RFC3339), s.End.In(loc).Format("15:04"), s.MilesFromBase)
			}
			return nil
		},
	}

	c.Flags().StringVar(&date, "date", "", "day to query (YYYY-MM-DD)")
	c.Flags().IntVar(&minutes, "minutes", 60, "session length in minutes")
	c.Flags().StringVar(&address, "address", "", "job address")
	_ = c.MarkFlagRequired("date")
	return c
}
