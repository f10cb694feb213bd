package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/leafline/dispensary-cli/internal/geo"
	"github.com/leafline/dispensary-cli/internal/model"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Acquire dispensaries from Google Places",
	Long:  "Crawl a county, a state, or every state: search, validate, enrich with details and listing mentions, and upsert into the store.",
}

var crawlCountyCmd = &cobra.Command{
	Use:   "county",
	Short: "Crawl a single county",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		countyName, _ := cmd.Flags().GetString("county")
		stateAbbr, _ := cmd.Flags().GetString("state")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		abbr := geo.CanonicalStateAbbr(stateAbbr)
		state, err := st.GetStateByAbbr(ctx, abbr)
		if err != nil {
			return err
		}
		if state == nil {
			return eris.Errorf("state %q not found; run geo seed first", stateAbbr)
		}

		counties, err := st.ListCountiesByState(ctx, state.ID)
		if err != nil {
			return err
		}
		var county *model.County
		want := geo.CanonicalCountyName(countyName)
		for i := range counties {
			if counties[i].Name == want {
				county = &counties[i]
				break
			}
		}
		if county == nil {
			return eris.Errorf("county %q not found in %s", countyName, abbr)
		}

		stats, err := newCrawler(st).CrawlCounty(ctx, *county)
		if err != nil {
			return err
		}
		printStats(stats)
		return nil
	},
}

var crawlStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Crawl every county in a state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		stateAbbr, _ := cmd.Flags().GetString("state")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		state, err := st.GetStateByAbbr(ctx, geo.CanonicalStateAbbr(stateAbbr))
		if err != nil {
			return err
		}
		if state == nil {
			return eris.Errorf("state %q not found; run geo seed first", stateAbbr)
		}

		stats, err := newCrawler(st).CrawlState(ctx, *state)
		if err != nil {
			return err
		}
		printStats(stats)
		return nil
	},
}

var crawlAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Crawl every state in the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := newCrawler(st).CrawlAll(ctx)
		if err != nil {
			return err
		}
		printStats(stats)
		return nil
	},
}

func printStats(stats model.CrawlStats) {
	fmt.Fprintf(os.Stdout, "found %d  added %d  updated %d  skipped %d  failed %d\n",
		stats.Found, stats.Added, stats.Updated, stats.Skipped, stats.Failed)
}

func init() {
	crawlCountyCmd.Flags().String("county", "", "county name (required)")
	crawlCountyCmd.Flags().String("state", "", "two-letter state abbreviation (required)")
	_ = crawlCountyCmd.MarkFlagRequired("county")
	_ = crawlCountyCmd.MarkFlagRequired("state")

	crawlStateCmd.Flags().String("state", "", "two-letter state abbreviation (required)")
	_ = crawlStateCmd.MarkFlagRequired("state")

	crawlCmd.AddCommand(crawlCountyCmd, crawlStateCmd, crawlAllCmd)
	rootCmd.AddCommand(crawlCmd)
}
