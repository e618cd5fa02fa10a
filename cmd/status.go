package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/glampguide/funnel-cli/internal/model"
	"github.com/glampguide/funnel-cli/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show funnel stage counts",
	Long:  "Displays how many leads sit at each stage of the funnel, plus the resolution reason breakdown.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("status"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.StageCounts(ctx)
		if err != nil {
			return eris.Wrap(err, "stage counts")
		}

		formatStageCounts(os.Stdout, counts)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// formatStageCounts writes a tabular representation of funnel stages to out.
func formatStageCounts(out io.Writer, c *store.StageCounts) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STAGE\tLEADS")
	_, _ = fmt.Fprintln(w, "-----\t-----")
	_, _ = fmt.Fprintf(w, "total\t%d\n", c.Total)
	_, _ = fmt.Fprintf(w, "pending validation\t%d\n", c.PendingValidation)
	_, _ = fmt.Fprintf(w, "valid\t%d\n", c.Valid)
	_, _ = fmt.Fprintf(w, "invalid\t%d\n", c.Invalid)
	_, _ = fmt.Fprintf(w, "pending resolution\t%d\n", c.PendingResolution)
	_, _ = fmt.Fprintf(w, "resolved\t%d\n", c.Resolved)

	if len(c.ByReason) > 0 {
		_, _ = fmt.Fprintln(w, "\nREASON\tLEADS")
		_, _ = fmt.Fprintln(w, "------\t-----")
		reasons := make([]string, 0, len(c.ByReason))
		for r := range c.ByReason {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", r, c.ByReason[model.Reason(r)])
		}
	}
	_ = w.Flush()
}
