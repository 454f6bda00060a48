package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dayroster/internal/core"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the sync run ledger",
	}

	var (
		limit  int
		page   int
		asJSON bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			runs, err := app.Service.ListRuns(cmd.Context(), page, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), runs)
			}
			return printRuns(cmd, runs)
		},
	}
	list.Flags().IntVar(&limit, "limit", core.DefaultRunPageSize, "Runs per page")
	list.Flags().IntVar(&page, "page", 1, "Page number")
	list.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one run with its change list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			run, err := app.Service.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), run)
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func printRuns(cmd *cobra.Command, page *core.RunPage) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSOURCE\tBY\tSTATUS\tINS\tUPD\tDIS\tREACT\tSKIP")
	for _, r := range page.Runs {
		s := r.Summary
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Source, r.TriggeredBy, r.Status,
			s.Inserted, s.Updated, s.Discharged, s.Reactivated, s.Skipped)
	}
	fmt.Fprintf(tw, "page %d of %d (%d runs)\n", page.Page, page.TotalPages, page.Total)
	return tw.Flush()
}
