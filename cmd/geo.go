package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leafline/dispensary-cli/internal/geo"
)

var geoCmd = &cobra.Command{
	Use:   "geo",
	Short: "Manage reference geography and county assignments",
}

var geoSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load states and counties from a YAML seed file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		file, _ := cmd.Flags().GetString("file")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := geo.LoadSeed(ctx, st, file)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "seeded %d states, %d counties\n", res.States, res.Counties)
		return nil
	},
}

var geoImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import states and counties from a spreadsheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		file, _ := cmd.Flags().GetString("file")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := geo.ImportCountiesXLSX(ctx, st, file)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "imported %d states, %d counties (%d rows skipped)\n",
			res.States, res.Counties, res.Skipped)
		return nil
	},
}

var geoBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Assign counties to dispensaries stored without one",
	Long:  "Resolves coordinates to counties using TIGER boundary polygons when --shapefile-dir is given, otherwise by reverse geocoding through the Places API.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		shapefileDir, _ := cmd.Flags().GetString("shapefile-dir")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var locator geo.CountyLocator
		if shapefileDir != "" {
			shpPath, err := geo.DownloadCountyShapefile(ctx, shapefileDir)
			if err != nil {
				return err
			}
			index, err := geo.LoadBoundaries(shpPath)
			if err != nil {
				return err
			}
			locator = index
		} else {
			locator = geo.NewGeocodeLocator(newPlacesClient())
		}

		res, err := geo.BackfillCounties(ctx, st, locator)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "examined %d  assigned %d  unmatched %d  failed %d\n",
			res.Examined, res.Assigned, res.Unmatched, res.Failed)
		return nil
	},
}

func init() {
	geoSeedCmd.Flags().String("file", "geography.yaml", "YAML seed file")
	geoImportCmd.Flags().String("file", "", "spreadsheet path (required)")
	_ = geoImportCmd.MarkFlagRequired("file")
	geoBackfillCmd.Flags().String("shapefile-dir", "", "directory for the TIGER county shapefile; empty uses reverse geocoding")

	geoCmd.AddCommand(geoSeedCmd, geoImportCmd, geoBackfillCmd)
	rootCmd.AddCommand(geoCmd)
}
