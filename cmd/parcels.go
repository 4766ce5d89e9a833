package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/export"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/zoning"
)

var parcelsCmd = &cobra.Command{
	Use:   "parcels",
	Short: "List, re-zone and summarize parcels",
	Long:  "Commands operate on the local store, or on a running zoning API with --api.",
}

// -- parcels list --

var parcelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List parcels with their effective zoning",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		remote, _ := cmd.Flags().GetString("api")
		zoningFilter, _ := cmd.Flags().GetString("zoning")

		b, closeBackend, err := openBackend(ctx, remote)
		if err != nil {
			return err
		}
		defer closeBackend()

		parcels, err := b.GetAllParcels(ctx)
		if err != nil {
			return eris.Wrap(err, "parcels list")
		}
		parcels = filterByZoning(parcels, zoningFilter)
		if len(parcels) == 0 {
			fmt.Fprintln(os.Stderr, "No parcels found.")
			return nil
		}

		formatParcelList(os.Stdout, parcels)
		return nil
	},
}

// -- parcels zone --

var parcelsZoneCmd = &cobra.Command{
	Use:   "zone <zoning-type>",
	Short: "Set the zoning type of parcels",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		remote, _ := cmd.Flags().GetString("api")

		ids, err := idsFromFlags(cmd)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return eris.New("parcels zone: no parcel ids given (--ids or --from-xlsx)")
		}

		b, closeBackend, err := openBackend(ctx, remote)
		if err != nil {
			return err
		}
		defer closeBackend()

		if err := b.UpdateZoning(ctx, ids, args[0]); err != nil {
			return eris.Wrap(err, "parcels zone")
		}

		zap.L().Info("zoning updated", zap.Int("parcels", len(ids)), zap.String("zoning_type", args[0]))
		fmt.Fprintf(os.Stdout, "Successfully updated %d parcels to %s\n", len(ids), args[0])
		return nil
	},
}

// -- parcels stats --

var parcelsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize parcels by zoning type",
	Long: `Summarizes the given parcels, or all parcels when no ids are given. With
--simulate the summary covers all parcels as if the given ids were re-zoned.
With --xlsx the report is also written to a workbook.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		remote, _ := cmd.Flags().GetString("api")
		simulate, _ := cmd.Flags().GetString("simulate")
		xlsxPath, _ := cmd.Flags().GetString("xlsx")

		ids, err := idsFromFlags(cmd)
		if err != nil {
			return err
		}

		b, closeBackend, err := openBackend(ctx, remote)
		if err != nil {
			return err
		}
		defer closeBackend()

		parcels, err := b.GetAllParcels(ctx)
		if err != nil {
			return eris.Wrap(err, "parcels stats")
		}
		if len(ids) == 0 {
			ids = make([]model.ParcelID, len(parcels))
			for i, p := range parcels {
				ids[i] = p.ID
			}
		}

		var summary model.StatsSummary
		if simulate != "" {
			summary, err = b.SimulateZoningUpdate(ctx, ids, simulate)
		} else {
			summary, err = b.GetStats(ctx, ids)
		}
		if err != nil {
			return eris.Wrap(err, "parcels stats")
		}

		order, err := b.GetZoningVocabulary(ctx)
		if err != nil {
			return eris.Wrap(err, "parcels stats")
		}

		formatStats(os.Stdout, summary)

		if xlsxPath == "" {
			return nil
		}
		if err := export.Save(xlsxPath, export.Workbook{
			Summary: summary,
			Parcels: selectParcels(parcels, ids),
			Order:   order,
		}); err != nil {
			return err
		}
		zap.L().Info("stats exported", zap.String("path", xlsxPath))
		return nil
	},
}

func idsFromFlags(cmd *cobra.Command) ([]model.ParcelID, error) {
	raw, _ := cmd.Flags().GetString("ids")
	ids, err := parseIDList(raw)
	if err != nil {
		return nil, err
	}
	path, _ := cmd.Flags().GetString("from-xlsx")
	if path == "" {
		return ids, nil
	}
	fromFile, err := export.ReadParcelIDs(path, export.IDOptions{SheetName: export.ParcelsSheet, SkipRows: 1})
	if err != nil {
		return nil, err
	}
	return append(ids, fromFile...), nil
}

func filterByZoning(parcels []model.Parcel, zt string) []model.Parcel {
	if zt == "" {
		return parcels
	}
	var out []model.Parcel
	for _, p := range parcels {
		switch {
		case zt == model.UnzonedLabel && !p.HasZoning():
			out = append(out, p)
		case p.Zoning() == zt:
			out = append(out, p)
		}
	}
	return out
}

func selectParcels(parcels []model.Parcel, ids []model.ParcelID) []model.Parcel {
	want := make(map[model.ParcelID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.Parcel
	for _, p := range parcels {
		if want[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

func formatParcelList(w io.Writer, parcels []model.Parcel) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tZONING\tAREA\tNAME\tMAILING ADDRESS")
	for _, p := range parcels {
		zt := p.Zoning()
		if zt == "" {
			zt = model.UnzonedLabel
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, zt, zoning.FormatArea(p.Area), p.Name, p.MailingAddress)
	}
	_ = tw.Flush()
}

func formatStats(w io.Writer, s model.StatsSummary) {
	types := make([]string, 0, len(s.CountByZoningType))
	for t := range s.CountByZoningType {
		types = append(types, t)
	}
	sort.Strings(types)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ZONING\tPARCELS\tAREA\tSHARE")
	for _, t := range types {
		area := s.AreaByZoningType[t]
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", t, s.CountByZoningType[t], zoning.FormatArea(area), zoning.Percentage(area, s.TotalArea))
	}
	fmt.Fprintf(tw, "TOTAL\t%d\t%s\t\n", s.TotalCount, zoning.FormatArea(s.TotalArea))
	_ = tw.Flush()
}

func init() {
	parcelsCmd.PersistentFlags().String("api", "", "zoning API base URL (default: local store)")

	parcelsListCmd.Flags().String("zoning", "", "only list parcels with this zoning type (Unzoned for none)")

	for _, c := range []*cobra.Command{parcelsZoneCmd, parcelsStatsCmd} {
		c.Flags().String("ids", "", "comma-separated parcel ids")
		c.Flags().String("from-xlsx", "", "read parcel ids from the Parcels sheet of an exported workbook")
	}
	parcelsStatsCmd.Flags().String("simulate", "", "simulate re-zoning the ids to this type")
	parcelsStatsCmd.Flags().String("xlsx", "", "write the report to this xlsx file")

	parcelsCmd.AddCommand(parcelsListCmd, parcelsZoneCmd, parcelsStatsCmd)
	rootCmd.AddCommand(parcelsCmd)
}
