package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Domenick1991/fieldbooking/internal/token"
	"github.com/spf13/cobra"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "One-tap reschedule tokens",
	}
	cmd.AddCommand(newTokenIssueCmd(opts))
	return cmd
}

func newTokenIssueCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "issue CODE",
		Short: "Issue a one-tap reschedule link for a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			raw, err := token.NewService(cfg.OneTap.Secret, cfg.OneTap.TTL()).Issue(args[0], token.ActionOneTapReschedule)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			if cfg.HTTP.PublicBaseURL != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s/api/one-tap-reschedule?token=%s\n",
					strings.TrimRight(cfg.HTTP.PublicBaseURL, "/"), url.QueryEscape(raw))
			}
			return nil
		},
	}
}
