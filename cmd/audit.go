package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/zoning-cli/internal/store"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent zoning changes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		remote, _ := cmd.Flags().GetString("api")
		limit, _ := cmd.Flags().GetInt("limit")

		b, closeBackend, err := openBackend(ctx, remote)
		if err != nil {
			return err
		}
		defer closeBackend()

		entries, err := b.AuditLog(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "audit")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No zoning changes recorded.")
			return nil
		}

		formatAudit(os.Stdout, entries)
		return nil
	},
}

func formatAudit(w io.Writer, entries []store.AuditEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tZONING\tPARCELS\tDESCRIPTION")
	for _, e := range entries {
		ids := make([]string, len(e.ParcelIDs))
		for i, id := range e.ParcelIDs {
			ids[i] = id.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04"),
			e.ZoningType,
			truncate(strings.Join(ids, ","), 40),
			e.Description,
		)
	}
	_ = tw.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	auditCmd.Flags().String("api", "", "zoning API base URL (default: local store)")
	auditCmd.Flags().Int("limit", 20, "maximum entries to show")
	rootCmd.AddCommand(auditCmd)
}
