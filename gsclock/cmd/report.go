package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sarchlab/gsclock/datarecording"
)

type reportOptions struct {
	from         uint64
	to           uint64
	kind         string
	limit        int
	boundaries   bool
	degradations bool
	steps        bool
}

var reportOpts reportOptions

var reportCmd = &cobra.Command{
	Use:   "report <recording.sqlite3>",
	Short: "Summarize a run recorded with run --record.",
	Long: `Report prints step, boundary and degradation counts of a SQLite ` +
		`recording. The list flags print the matching rows as well.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printReport(cmd, args[0], reportOpts)
	},
}

func init() {
	f := reportCmd.Flags()
	f.Uint64Var(&reportOpts.from, "from", 0, "first tick to list")
	f.Uint64Var(&reportOpts.to, "to", 0, "last tick to list, 0 for no limit")
	f.StringVar(&reportOpts.kind, "kind", "",
		"only list boundaries or degradations of this kind")
	f.IntVar(&reportOpts.limit, "limit", 0, "rows per list, 0 for no limit")
	f.BoolVar(&reportOpts.boundaries, "boundaries", false, "list boundaries")
	f.BoolVar(&reportOpts.degradations, "degradations", false,
		"list degradation events")
	f.BoolVar(&reportOpts.steps, "steps", false, "list step summaries")

	rootCmd.AddCommand(reportCmd)
}

func printReport(cmd *cobra.Command, file string, opts reportOptions) error {
	if _, err := os.Stat(file); err != nil {
		return err
	}

	r, err := datarecording.OpenReader(file)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	s, err := r.Summary(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "steps %d ticks %d last tick %d\n",
		s.Steps, s.Ticks, s.LastTick)
	printCounts(out, "boundary", s.Boundaries)
	printCounts(out, "degradation", s.Degradations)

	filter := datarecording.Filter{
		FromTick: opts.from,
		ToTick:   opts.to,
		Kind:     opts.kind,
		Limit:    opts.limit,
	}

	if opts.boundaries {
		bs, err := r.Boundaries(ctx, filter)
		if err != nil {
			return err
		}

		for _, b := range bs {
			fmt.Fprintf(out, "tick %d %s %d %s handlers %d\n",
				b.Tick, b.Kind, b.Period, b.Date, b.Handlers)
		}
	}

	if opts.degradations {
		ds, err := r.Degradations(ctx, filter)
		if err != nil {
			return err
		}

		for _, d := range ds {
			fmt.Fprintf(out, "tick %d %s %s\n", d.Tick, d.Kind, d.Detail)
		}
	}

	if opts.steps {
		ss, err := r.Steps(ctx, filter)
		if err != nil {
			return err
		}

		for _, st := range ss {
			fmt.Fprintf(out, "step %d ticks %d-%d cap %t drained %d deferred %d\n",
				st.Step, st.FirstTick, st.LastTick, st.CapHit,
				st.Drained, st.Deferred)
		}
	}

	return nil
}

func printCounts(out io.Writer, label string, counts map[string]int) {
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}

	sort.Strings(kinds)

	for _, k := range kinds {
		fmt.Fprintf(out, "%s %s %d\n", label, k, counts[k])
	}
}
