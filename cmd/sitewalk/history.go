package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/sitewalk/internal/config"
	"github.com/nao1215/sitewalk/internal/crawler"
	"github.com/nao1215/sitewalk/internal/database"
	"github.com/nao1215/sitewalk/internal/model"
	"github.com/nao1215/sitewalk/internal/report"
	"github.com/spf13/cobra"
)

// historyTimeLayout is how run times are shown in listings.
const historyTimeLayout = "2006-01-02 15:04:05"

// defaultHistoryLimit is the number of runs listed unless --limit is given.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [seed-url]",
		Short: "Show stored runs and compare them",
		Long: `History shows the runs stored by 'sitewalk crawl'.

Without flags it lists the latest runs, optionally only those of one seed.
A single run can be printed with all its page records, and the two latest
runs of a seed can be compared to see which pages appeared, disappeared,
started failing or changed.

Examples:
  # List the latest runs of every seed
  sitewalk history

  # List the seeds with stored runs
  sitewalk history --seeds

  # List the runs of one seed
  sitewalk history https://shop.example.com

  # Print one run
  sitewalk history --run-id 0b6f7c1e-...

  # Compare the latest two runs of a seed as Markdown
  sitewalk history --compare --markdown https://shop.example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("seeds", "S", false,
		"List the seeds that have stored runs")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 = all)")
	cmd.Flags().StringP("run-id", "i", "",
		"Print the run with this ID")
	cmd.Flags().Bool("compare", false,
		"Compare the latest two runs of the seed")
	cmd.Flags().String("delete", "",
		"Delete the run with this ID")

	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")

	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")
	cmd.MarkFlagsMutuallyExclusive("run-id", "compare", "seeds", "delete")

	return cmd
}

// historyOptions holds the parsed history flags.
type historyOptions struct {
	seed     string
	seeds    bool
	limit    int
	runID    string
	compare  bool
	deleteID string
	json     bool
	markdown bool
	dbDir    string
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	// Validate before opening the database so a bad call never creates it.
	if opts.compare && opts.seed == "" {
		return errors.New("a seed URL is required with --compare")
	}

	db, err := database.Open(opts.dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	return runHistory(cmd.Context(), cmd.OutOrStdout(), db, opts)
}

// parseHistoryOptions reads the history flags. A seed argument is
// normalized the same way crawl normalizes it before storing runs.
func parseHistoryOptions(cmd *cobra.Command, args []string) (historyOptions, error) {
	var opts historyOptions
	var err error
	flags := cmd.Flags()

	if opts.seeds, err = flags.GetBool("seeds"); err != nil {
		return opts, err
	}
	if opts.limit, err = flags.GetInt("limit"); err != nil {
		return opts, err
	}
	if opts.runID, err = flags.GetString("run-id"); err != nil {
		return opts, err
	}
	if opts.compare, err = flags.GetBool("compare"); err != nil {
		return opts, err
	}
	if opts.deleteID, err = flags.GetString("delete"); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return opts, err
	}

	if len(args) > 0 {
		opts.seed, err = crawler.NormalizeSeed(args[0])
		if err != nil {
			return opts, fmt.Errorf("invalid seed URL: %w", err)
		}
	}
	return opts, nil
}

// runHistory dispatches to the requested view.
func runHistory(ctx context.Context, out io.Writer, db *database.HistoryDB, opts historyOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case opts.seeds:
		return listSeeds(ctx, out, db)
	case opts.deleteID != "":
		if err := db.DeleteRun(ctx, opts.deleteID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted run %s\n", opts.deleteID)
		return nil
	case opts.runID != "":
		return showRun(ctx, out, db, opts)
	case opts.compare:
		return compareLatest(ctx, out, db, opts)
	default:
		return listHistory(ctx, out, db, opts)
	}
}

// listSeeds prints every seed with stored runs.
func listSeeds(ctx context.Context, out io.Writer, db *database.HistoryDB) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return err
	}

	if len(seeds) == 0 {
		fmt.Fprintln(out, "No runs found in the history database.")
		fmt.Fprintln(out, "\nUse 'sitewalk crawl <seed-url>' to walk a site.")
		return nil
	}

	fmt.Fprintf(out, "Seeds with stored runs (%d):\n\n", len(seeds))
	for _, seed := range seeds {
		fmt.Fprintf(out, "  • %s\n", seed)
	}
	fmt.Fprintln(out, "\nUse 'sitewalk history <seed-url>' to see the runs of a seed.")
	return nil
}

// listHistory prints the latest runs, of one seed when opts.seed is set.
func listHistory(ctx context.Context, out io.Writer, db *database.HistoryDB, opts historyOptions) error {
	runs, err := db.ListRuns(ctx, opts.seed, opts.limit)
	if err != nil {
		return err
	}

	if opts.json {
		return writeJSON(out, runs)
	}

	if len(runs) == 0 {
		if opts.seed != "" {
			fmt.Fprintf(out, "No runs found for %s\n", opts.seed)
		} else {
			fmt.Fprintln(out, "No runs found in the history database.")
		}
		fmt.Fprintln(out, "\nUse 'sitewalk crawl <seed-url>' to walk a site.")
		return nil
	}

	if opts.markdown {
		return writeHistoryMarkdown(out, runs)
	}

	fmt.Fprintf(out, "Stored runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-5s  %-5s  %-5s  %s\n", "ID", "Started", "Pages", "OK", "Fail", "Seed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))
	for _, meta := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %-5d  %-5d  %-5d  %s%s\n",
			meta.ID,
			meta.StartedAt.Local().Format(historyTimeLayout),
			meta.Pages,
			meta.Successes,
			meta.Failures,
			meta.Seed,
			runNote(meta),
		)
	}

	fmt.Fprintln(out, "\nUse 'sitewalk history --run-id <id>' to print a run.")
	fmt.Fprintln(out, "Use 'sitewalk history --compare <seed-url>' to compare the latest two runs.")
	return nil
}

// runNote marks runs that ended early or with an error.
func runNote(meta database.RunMetadata) string {
	switch {
	case meta.Error != "":
		return " (error)"
	case meta.TimedOut:
		return " (partial)"
	default:
		return ""
	}
}

// writeHistoryMarkdown prints the run list as a Markdown table.
func writeHistoryMarkdown(out io.Writer, runs []database.RunMetadata) error {
	rows := make([][]string, 0, len(runs))
	for _, meta := range runs {
		rows = append(rows, []string{
			"`" + meta.ID + "`",
			meta.StartedAt.Local().Format(historyTimeLayout),
			meta.Seed,
			strconv.Itoa(meta.Pages),
			strconv.Itoa(meta.Successes),
			strconv.Itoa(meta.Failures) + runNote(meta),
		})
	}

	md := markdown.NewMarkdown(out)
	md.H1("Sitewalk History")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Started", "Seed", "Pages", "Successes", "Failures"},
		Rows:   rows,
	})
	return md.Build()
}

// showRun prints one stored run with every page record.
func showRun(ctx context.Context, out io.Writer, db *database.HistoryDB, opts historyOptions) error {
	run, err := db.GetRun(ctx, opts.runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", opts.runID)
	}

	var w report.Writer
	switch {
	case opts.json:
		w = report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case opts.markdown:
		w = report.NewMarkdownWriter(out, getVersion())
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(true))
	}
	_, err = w.Write(run)
	return err
}

// compareLatest diffs the two latest runs of opts.seed.
func compareLatest(ctx context.Context, out io.Writer, db *database.HistoryDB, opts historyOptions) error {
	runs, err := db.LatestRuns(ctx, opts.seed, 2)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return fmt.Errorf("no runs found for %s", opts.seed)
	}
	if len(runs) < 2 {
		return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	}

	newer, older := runs[0], runs[1]
	diff := model.Compare(older, newer)

	switch {
	case opts.json:
		return writeJSON(out, diff)
	case opts.markdown:
		return writeDiffMarkdown(out, diff, older, newer)
	default:
		writeDiffText(out, diff, older, newer)
		return nil
	}
}

// writeJSON writes v as indented JSON.
func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// changeLabels are the section titles of each change kind, in display order.
var changeLabels = []struct {
	kind  model.ChangeKind
	title string
	mark  string
}{
	{model.ChangeNew, "New Pages", "+"},
	{model.ChangeGone, "Vanished Pages", "-"},
	{model.ChangeOutcome, "Outcome Changes", "!"},
	{model.ChangeContent, "Content Changes", "~"},
	{model.ChangeForm, "Form and Button Changes", "~"},
}

// changeDetail describes what differs for one change.
func changeDetail(c model.Change) string {
	switch c.Kind {
	case model.ChangeOutcome:
		detail := c.Before.Outcome.String() + " -> " + c.After.Outcome.String()
		if c.After.Error != "" {
			detail += " (" + c.After.Error + ")"
		}
		return detail
	case model.ChangeForm:
		return fmt.Sprintf("form %s -> %s, clicked %s -> %s",
			yesNo(c.Before.HasForm), yesNo(c.After.HasForm),
			yesNo(c.Before.ClickedButton), yesNo(c.After.ClickedButton))
	case model.ChangeNew:
		return c.After.Outcome.String()
	default:
		return ""
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// writeDiffText prints the comparison for a terminal.
func writeDiffText(out io.Writer, diff *model.RunDiff, older, newer *model.Run) {
	fmt.Fprintf(out, "Run Comparison: %s\n", diff.Seed)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nPrevious run: %s  %s  (%d pages)\n", older.StartedAt.Local().Format(historyTimeLayout), older.ID, len(older.Records))
	fmt.Fprintf(out, "Current run:  %s  %s  (%d pages)\n", newer.StartedAt.Local().Format(historyTimeLayout), newer.ID, len(newer.Records))

	if !diff.HasChanges() {
		fmt.Fprintf(out, "\nNo changes (%d pages unchanged)\n", diff.Unchanged)
		return
	}

	for _, l := range changeLabels {
		n := diff.Count(l.kind)
		if n == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s (%d):\n", l.title, n)
		for _, c := range diff.Changes {
			if c.Kind != l.kind {
				continue
			}
			if detail := changeDetail(c); detail != "" {
				fmt.Fprintf(out, "  [%s] %s  %s\n", l.mark, c.URL, detail)
			} else {
				fmt.Fprintf(out, "  [%s] %s\n", l.mark, c.URL)
			}
		}
	}

	fmt.Fprintf(out, "\nUnchanged: %d pages\n", diff.Unchanged)
}

// writeDiffMarkdown prints the comparison as Markdown.
func writeDiffMarkdown(out io.Writer, diff *model.RunDiff, older, newer *model.Run) error {
	md := markdown.NewMarkdown(out)
	md.H1("Run Comparison: " + diff.Seed)
	md.PlainText("")

	summary := [][]string{
		{"Started", older.StartedAt.Local().Format(historyTimeLayout), newer.StartedAt.Local().Format(historyTimeLayout)},
		{"Run ID", "`" + older.ID + "`", "`" + newer.ID + "`"},
		{"Pages", strconv.Itoa(len(older.Records)), strconv.Itoa(len(newer.Records))},
		{"Failures", strconv.Itoa(older.Failures()), strconv.Itoa(newer.Failures())},
	}
	md.Table(markdown.TableSet{
		Header: []string{"", "Previous", "Current"},
		Rows:   summary,
	})
	md.PlainText("")

	if !diff.HasChanges() {
		md.PlainText(fmt.Sprintf("No changes (%d pages unchanged).", diff.Unchanged))
		return md.Build()
	}

	for _, l := range changeLabels {
		n := diff.Count(l.kind)
		if n == 0 {
			continue
		}
		md.H2(fmt.Sprintf("%s (%d)", l.title, n))
		md.PlainText("")
		items := make([]string, 0, n)
		for _, c := range diff.Changes {
			if c.Kind != l.kind {
				continue
			}
			item := "`" + c.URL + "`"
			if detail := changeDetail(c); detail != "" {
				item += ": " + detail
			}
			items = append(items, item)
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	md.HorizontalRule()
	md.PlainText(fmt.Sprintf("*%d pages unchanged*", diff.Unchanged))
	return md.Build()
}
