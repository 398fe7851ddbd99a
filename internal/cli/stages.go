package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/wikiedits/internal/latexdiff"
	"github.com/ppiankov/wikiedits/internal/model"
	"github.com/ppiankov/wikiedits/internal/pipeline"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge raw revision files into one chain file",
	Long: `Merge reads every raw revision file of the domain, drops category and
list pages and revisions whose cleaned text did not change, groups the
rest into per-document chains ordered by timestamp, removes duplicates
and writes data/<domain>/merged/raw_<domain>.json.`,
	Args: cobra.NoArgs,
	RunE: runMerge,
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Run latexdiff over every chain entry",
	Long: `Diff wraps both sides of every chain entry in a minimal LaTeX article and
runs latexdiff on the pair. Output goes to
data/extracted_revisions/latexdiff_<domain>/<doc>_diff_v<n>v<n+1>.tex.`,
	Args: cobra.NoArgs,
	RunE: runDiff,
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Extract edit records from latexdiff files",
	Long: `Parse reads every .tex file of the diff directory, keeps files whose first
changed sentence holds exactly one edit and writes the records as a JSON
array to data/extracted_revisions/<domain>_revisions.json.`,
	Args: cobra.NoArgs,
	RunE: runParse,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run merge, diff and parse",
	Long: `Run executes the offline stages in order on already crawled data.

Example:
  wikiedits crawl --domain wikinews --main-category all
  wikiedits run --domain wikinews --main-category all`,
	Args: cobra.NoArgs,
	RunE: runAll,
}

func init() {
	rootCmd.AddCommand(mergeCmd, diffCmd, parseCmd, runCmd)

	for _, c := range []*cobra.Command{diffCmd, runCmd} {
		c.Flags().Int("diff-workers", 0, "concurrent latexdiff processes")
		c.Flags().String("latexdiff", "", "latexdiff binary")
	}
	for _, c := range []*cobra.Command{parseCmd, runCmd} {
		c.Flags().Int("parse-workers", 0, "concurrent diff parsers")
	}
}

// bindStageFlags binds the flags of the running command only, since several commands share flag names
func bindStageFlags(cmd *cobra.Command) {
	if f := cmd.Flags().Lookup("diff-workers"); f != nil {
		_ = viper.BindPFlag("diff.workers", f)
	}
	if f := cmd.Flags().Lookup("latexdiff"); f != nil {
		_ = viper.BindPFlag("diff.binary", f)
	}
	if f := cmd.Flags().Lookup("parse-workers"); f != nil {
		_ = viper.BindPFlag("parse.workers", f)
	}
}

func stageSetup(cmd *cobra.Command) (model.Config, *pipeline.Pipeline, error) {
	bindStageFlags(cmd)
	cfg, _, err := setup()
	if err != nil {
		return cfg, nil, err
	}
	return cfg, pipeline.NewPipeline(cfg), nil
}

func runMerge(cmd *cobra.Command, args []string) error {
	_, p, err := stageSetup(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	res, err := p.Merge(ctx)
	if err != nil {
		return err
	}
	printMerge(res)
	return nil
}

func runDiff(cmd *cobra.Command, args []string) error {
	cfg, p, err := stageSetup(cmd)
	if err != nil {
		return err
	}
	if err := latexdiff.NewGenerator(cfg).Check(); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	stats, err := p.Diff(ctx, nil)
	printDiff(cfg, stats)
	return err
}

func runParse(cmd *cobra.Command, args []string) error {
	_, p, err := stageSetup(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	res, err := p.Parse(ctx)
	if err != nil {
		return err
	}
	printParse(res)
	return nil
}

func runAll(cmd *cobra.Command, args []string) error {
	cfg, p, err := stageSetup(cmd)
	if err != nil {
		return err
	}
	if err := latexdiff.NewGenerator(cfg).Check(); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	res, err := p.Run(ctx)
	if res.Merge.Path != "" {
		printMerge(res.Merge)
	}
	if res.Diff.Entries > 0 {
		printDiff(cfg, res.Diff)
	}
	if err != nil {
		return err
	}
	printParse(res.Parse)
	return nil
}

func printMerge(res pipeline.MergeResult) {
	s := res.Stats
	fmt.Printf("✓ Merged %d records from %d files into %d documents (%d entries)\n", s.Records, s.Files, s.Documents, s.Entries)
	if verbose {
		fmt.Printf("  Dropped: %d list pages, %d unchanged, %d duplicates, %d shadowed documents\n",
			s.ListPages, s.Unchanged, s.Duplicates, s.ShadowedDocs)
	}
	fmt.Printf("  Output: %s\n", res.Path)
}

func printDiff(cfg model.Config, s latexdiff.Stats) {
	fmt.Printf("✓ Generated %d of %d diffs (%d failed)\n", s.Written, s.Entries, s.Failed)
	fmt.Printf("  Output: %s\n", cfg.DiffDir())
}

func printParse(res pipeline.ParseResult) {
	fmt.Println(res.Summary.String())
	if verbose {
		s := res.Summary
		fmt.Printf("  Skipped: %d no abstract, %d malformed, %d no sentence, %d multi-edit, %d degenerate, %d bad name, %d invalid, %d unreadable\n",
			s.NoAbstract, s.Malformed, s.NoSentence, s.MultiEdit, s.Degenerate, s.BadName, s.Invalid, s.Unreadable)
		for _, sig := range res.Stats.Signals {
			fmt.Printf("  [%s] %s\n", sig.Severity, sig.Description)
		}
	}
	if res.Path != "" {
		fmt.Printf("✓ Wrote %d records: %s\n", len(res.Records), res.Path)
	} else {
		fmt.Println("No records written")
	}
}
