package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvload/internal/store/pgstore"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history [KEY]",
		Short: "Show recent runs, of one file loader or of all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return withCode(exitUsage, errors.New("--limit must be at least 1"))
			}

			var key string
			if len(args) == 1 {
				key = args[0]
			}

			ctx := cmd.Context()
			pool, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			runs, err := pgstore.NewHistory(pool).Recent(ctx, key, limit)
			if err != nil {
				return withCode(exitDB, err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if runs == nil {
					runs = []pgstore.Run{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tKEY\tFILE\tSTATUS\tLINES\tCREATED\tUPDATED\tDURATION\tERROR")
			for _, run := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					run.StartedAt.Local().Format(time.DateTime), run.Key, run.File, run.Status,
					run.Lines, run.Created, run.Updated, run.Duration.Round(time.Millisecond), run.ErrorCode)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", pgstore.DefaultHistoryLimit, "number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
