package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/leafline/dispensary-cli/internal/ranking"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Compute composite scores and cohort ranks",
}

var rankCalculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Recompute all composite scores and rewrite ranks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		calc := ranking.NewCalculator(st, cfg.Ranking)
		res, err := calc.CalculateAll(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "scored %d  failed %d  scopes %d\n", res.Scored, res.Failed, res.Scopes)
		return nil
	},
}

var rankTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the highest-scored dispensaries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dispensaries, err := st.TopRankedDispensaries(ctx, limit)
		if err != nil {
			return err
		}
		if len(dispensaries) == 0 {
			fmt.Fprintln(os.Stderr, "No ranked dispensaries.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCITY\tRATING\tREVIEWS\tCOMPLETENESS")
		for _, d := range dispensaries {
			fmt.Fprintf(w, "%s\t%s\t%.1f\t%d\t%d\n",
				d.Name, d.City, d.GoogleRating, d.GoogleReviewCount, d.CompletenessScore)
		}
		return w.Flush()
	},
}

func init() {
	rankTopCmd.Flags().Int("limit", 20, "number of dispensaries to show")

	rankCmd.AddCommand(rankCalculateCmd, rankTopCmd)
	rootCmd.AddCommand(rankCmd)
}
