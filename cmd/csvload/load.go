package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvload/internal/core"
	"github.com/JonMunkholm/csvload/internal/schema"
	"github.com/JonMunkholm/csvload/internal/store"
	"github.com/JonMunkholm/csvload/internal/store/memstore"
	"github.com/JonMunkholm/csvload/internal/store/pgstore"
)

type loadOptions struct {
	schemaFile string
	key        string
	apply      bool
	asJSON     bool
	carry      bool
	carrySet   bool
}

// loadReport is the --json output of the load command.
type loadReport struct {
	DryRun  bool              `json:"dryRun"`
	Results []core.Result     `json:"results"`
	Error   *core.UserMessage `json:"error,omitempty"`
}

func newLoadCmd(a *app) *cobra.Command {
	var opts loadOptions

	cmd := &cobra.Command{
		Use:   "load [flags] FILE...",
		Short: "Run a file loader over one or more CSV files",
		Long: "Run a file loader over one or more CSV files, in order.\n\n" +
			"Without --apply the records are written to memory and discarded, so the\n" +
			"files are checked without touching the database. The run stops at the\n" +
			"first failing line; lines before it stay written.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.carrySet = cmd.Flags().Changed("carry")
			return a.runLoad(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.schemaFile, "schema", "", "YAML schema file declaring the loader")
	cmd.Flags().StringVar(&opts.key, "key", "", "loader key (default: the key declared by --schema)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Apply changes to DB (default is dry-run)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&opts.carry, "carry", false, "keep bindings published on one line visible to the next")
	return cmd
}

func (a *app) runLoad(ctx context.Context, stdout, stderr io.Writer, opts loadOptions, paths []string) error {
	var extra []schema.Document
	if opts.schemaFile != "" {
		doc, err := schema.LoadFile(opts.schemaFile)
		if err != nil {
			return withCode(exitUsage, err)
		}
		extra = append(extra, doc)
		if opts.key == "" {
			opts.key = doc.Key
		}
	}
	if opts.key == "" {
		return withCode(exitUsage, errors.New("--key or --schema is required"))
	}

	var (
		factory store.Factory
		history *pgstore.History
	)
	if opts.apply {
		pool, err := a.connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		history = pgstore.NewHistory(pool)
		if err := history.EnsureSchema(ctx); err != nil {
			return withCode(exitDB, err)
		}
		factory = store.Postgres(pool)
	} else {
		factory = store.Memory(memstore.New())
	}

	reg, err := a.registry(factory, extra...)
	if err != nil {
		return err
	}
	f, err := reg.Lookup(opts.key)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("%w (known: %s)", err, strings.Join(reg.Keys(), ", ")))
	}

	run := *f
	if opts.carrySet {
		run.CarryBindings = opts.carry
	}

	report := loadReport{DryRun: !opts.apply, Results: make([]core.Result, 0, len(paths))}
	var runErr error
	for _, path := range paths {
		res, err := run.Run(ctx, path, nil)
		if history != nil {
			if err := history.Record(context.WithoutCancel(ctx), res, err); err != nil {
				slog.Warn("record run history failed", "run_id", res.RunID, "error", err)
			}
		}
		report.Results = append(report.Results, res)
		if err != nil {
			msg := core.MapError(err)
			report.Error = &msg
			runErr = fmt.Errorf("%s: %w", path, err)
			break
		}
	}

	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printResults(stdout, report.Results)
		if runErr != nil {
			fmt.Fprintln(stderr, core.FormatUserError(runErr))
		}
		if report.DryRun && runErr == nil {
			fmt.Fprintln(stdout, "dry run: nothing was written (use --apply)")
		}
	}
	return runErr
}

// printResults writes one summary line per run, followed by the per-loader
// counts.
func printResults(w io.Writer, results []core.Result) {
	for _, res := range results {
		fmt.Fprintf(w, "%s  %s: %d lines, %d created, %d updated in %s\n",
			res.Key, res.File, res.Lines, res.Created, res.Updated, res.Duration.Round(time.Millisecond))

		names := lo.Keys(res.PerLoader)
		sort.Strings(names)
		for _, name := range names {
			c := res.PerLoader[name]
			fmt.Fprintf(w, "  %-20s %d created, %d updated\n", name, c.Created, c.Updated)
		}
	}
}
