package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"budgetblocks/internal/core"
	"budgetblocks/internal/ledger"
	"budgetblocks/internal/log"
)

var (
	frequency string
	anchor    string
	day1      int
	day2      int
	before    int
	after     int
	dryRun    bool
)

var bandsCmd = &cobra.Command{
	Use:   "bands",
	Short: "Manage budget bands",
}

var bandsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate bands from a pay schedule",
	Long: `Save a pay schedule and merge the bands of its window around today into
the ledger. Bands whose exact dates already exist are skipped; overlaps are
reported but left alone.

Frequencies: monthly, semi-monthly, bi-weekly, weekly.

Example:
  budgetctl bands generate --frequency semi-monthly --day1 1 --day2 15
  budgetctl bands generate --frequency bi-weekly --anchor 2026-01-02 --dry-run`,
	Args: cobra.NoArgs,
	Run:  runBandsGenerate,
}

func init() {
	f := bandsGenerateCmd.Flags()
	f.StringVar(&frequency, "frequency", "", "pay frequency")
	f.StringVar(&anchor, "anchor", "", "anchor payday for weekly schedules (YYYY-MM-DD)")
	f.IntVar(&day1, "day1", 0, "first semi-monthly payday")
	f.IntVar(&day2, "day2", 0, "second semi-monthly payday (0 = last day of month)")
	f.IntVar(&before, "before", 0, "periods before the current one")
	f.IntVar(&after, "after", 0, "periods after the current one")
	f.BoolVar(&dryRun, "dry-run", false, "show the bands without saving")
	_ = bandsGenerateCmd.MarkFlagRequired("frequency")

	bandsCmd.AddCommand(bandsGenerateCmd)
}

func scheduleFromFlags() (core.PaySchedule, error) {
	s := core.PaySchedule{
		Frequency: core.Frequency(frequency),
		Day1:      day1,
		Day2:      day2,
		Before:    before,
		After:     after,
	}
	if anchor != "" {
		d, err := core.ParseDate(anchor)
		if err != nil {
			return s, fmt.Errorf("anchor: %w", err)
		}
		s.Anchor = d
	}
	return s, s.Validate()
}

func runBandsGenerate(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	schedule, err := scheduleFromFlags()
	exitOnError(err, "invalid pay schedule")

	store, b, closeDB := openLedger(ctx)
	defer closeDB()

	if dryRun {
		var preview []core.Band
		store.View(func(st *ledger.State) { preview, err = st.PreviewBands(schedule) })
		exitOnError(err, "failed to preview bands")
		fmt.Fprintf(cmd.OutOrStdout(), "Would add %d band(s):\n", len(preview))
		printBands(cmd.OutOrStdout(), preview)
		return
	}

	var added []core.Band
	_, err = store.Update(ctx, log.OpGenerate, func(st *ledger.State) (err error) {
		schedule.ID = matchingSchedule(st.Schedules(), schedule)
		added, err = st.GenerateBands(schedule)
		return err
	})
	exitOnError(err, "failed to generate bands")
	exitOnError(save(ctx, store, b), "failed to save ledger")

	fmt.Fprintf(cmd.OutOrStdout(), "Added %d band(s):\n", len(added))
	printBands(cmd.OutOrStdout(), added)
	var overlaps int
	store.View(func(st *ledger.State) { overlaps = len(st.Overlaps()) })
	if overlaps > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Warning: %d overlapping band pair(s) to review\n", overlaps)
	}
}

func printBands(w io.Writer, bands []core.Band) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tSTART\tEND")
	for _, b := range bands {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Title, b.Start, b.End)
	}
	tw.Flush()
}

// matchingSchedule returns the id of a stored schedule with the same
// parameters, so repeated runs do not pile up duplicates.
func matchingSchedule(stored []core.PaySchedule, s core.PaySchedule) string {
	for _, p := range stored {
		if p.Frequency == s.Frequency && p.Anchor.Equal(s.Anchor.Time) &&
			p.Day1 == s.Day1 && p.Day2 == s.Day2 &&
			p.Before == s.Before && p.After == s.After {
			return p.ID
		}
	}
	return ""
}
