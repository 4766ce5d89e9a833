package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/zoning-cli/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import <parcels.shp>",
	Short: "Import parcel boundaries from a shapefile",
	Long: `Reads polygons and attributes from an ESRI shapefile and upserts them into
the parcel store. Zoning values are matched case-insensitively against the
configured vocabulary; unknown values are imported as unzoned.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		f := cmd.Flags()
		idCol, _ := f.GetString("id-field")
		nameCol, _ := f.GetString("name-field")
		addrCol, _ := f.GetString("address-field")
		zoningCol, _ := f.GetString("zoning-field")
		dryRun, _ := f.GetBool("dry-run")

		reader := importer.NewReader(importer.Mapping{
			ID:             idCol,
			Name:           nameCol,
			MailingAddress: addrCol,
			ZoningType:     zoningCol,
		}, vocabulary())

		var rep importer.Report
		if dryRun {
			_, rep, err = reader.Read(args[0])
		} else {
			rep, err = importer.Import(ctx, st, reader, args[0])
		}
		if err != nil {
			return eris.Wrap(err, "import")
		}

		if !dryRun && cfg.Redis.Enabled {
			if c, closeCache, cerr := initCache(ctx); cerr == nil {
				_ = c.Invalidate(ctx)
				closeCache()
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	},
}

func init() {
	def := importer.DefaultMapping()
	importCmd.Flags().String("id-field", def.ID, "DBF column holding the parcel id")
	importCmd.Flags().String("name-field", def.Name, "DBF column holding the owner name")
	importCmd.Flags().String("address-field", def.MailingAddress, "DBF column holding the mailing address")
	importCmd.Flags().String("zoning-field", def.ZoningType, "DBF column holding the zoning type")
	importCmd.Flags().Bool("dry-run", false, "parse and report without writing")
	rootCmd.AddCommand(importCmd)
}
