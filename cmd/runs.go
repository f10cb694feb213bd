package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent crawl runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		logs, err := st.ListCrawlLogs(ctx, limit)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			fmt.Fprintln(os.Stderr, "No crawl runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tTYPE\tLOCATION\tSTATUS\tFOUND\tADDED\tUPDATED\tERRORS")
		for _, cl := range logs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
				cl.StartedAt.Format(time.RFC3339),
				cl.JobType,
				cl.Location,
				cl.Status,
				cl.Found, cl.Added, cl.Updated,
				len(cl.Errors),
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		verbose, _ := cmd.Flags().GetBool("errors")
		if verbose {
			for _, cl := range logs {
				if len(cl.Errors) == 0 {
					continue
				}
				fmt.Fprintf(os.Stdout, "\n%s (%s):\n  %s\n",
					cl.Location, cl.ID, strings.Join(cl.Errors, "\n  "))
			}
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().Int("limit", 20, "number of runs to show")
	runsCmd.Flags().Bool("errors", false, "print per-run error details")
	rootCmd.AddCommand(runsCmd)
}
