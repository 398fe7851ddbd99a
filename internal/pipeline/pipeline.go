package pipeline

import (
	"context"
	"fmt"

	"github.com/ppiankov/wikiedits/internal/chain"
	"github.com/ppiankov/wikiedits/internal/latexdiff"
	"github.com/ppiankov/wikiedits/internal/logger"
	"github.com/ppiankov/wikiedits/internal/model"
	"github.com/ppiankov/wikiedits/internal/score"
)

// Differ produces latexdiff files for chain entries
type Differ interface {
	GenerateAll(ctx context.Context, entries []model.ChainEntry) (latexdiff.Stats, error)
}

// Pipeline orchestrates the offline stages: merge, diff and parse
type Pipeline struct {
	merger *chain.Merger
	differ Differ
	parser *Parser
	scorer *score.Scorer
	config model.Config
	log    *logger.Logger
}

// NewPipeline creates a pipeline with the given configuration
func NewPipeline(cfg model.Config) *Pipeline {
	return &Pipeline{
		merger: chain.NewMerger(cfg.Domain),
		differ: latexdiff.NewGenerator(cfg),
		parser: NewParser(cfg.Parse.Workers),
		scorer: score.NewScorer(),
		config: cfg,
		log:    logger.Named("pipeline"),
	}
}

// WithDiffer swaps the diff stage implementation
func (p *Pipeline) WithDiffer(d Differ) *Pipeline {
	p.differ = d
	return p
}

// MergeResult is the outcome of the merge stage
type MergeResult struct {
	Path    string
	Entries []model.ChainEntry
	Stats   chain.MergeStats
}

// ParseResult is the outcome of the parse stage
type ParseResult struct {
	Path    string // empty when nothing was written
	Records []model.EditRecord
	Summary model.ParseSummary
	Stats   model.DatasetStats
}

// RunResult collects the outcome of every stage
type RunResult struct {
	Merge MergeResult
	Diff  latexdiff.Stats
	Parse ParseResult
}

// Merge filters, groups and deduplicates the raw files of the domain and writes the chain file
func (p *Pipeline) Merge(ctx context.Context) (MergeResult, error) {
	if err := ctx.Err(); err != nil {
		return MergeResult{}, err
	}
	chains, stats, err := p.merger.MergeDir(p.config.RawRoot())
	if err != nil {
		return MergeResult{}, fmt.Errorf("merge: %w", err)
	}

	entries := chains.Entries()
	stats.Entries = len(entries)
	path := p.config.MergedFile()
	if err := chain.WriteChain(path, entries); err != nil {
		return MergeResult{}, fmt.Errorf("write chain: %w", err)
	}

	p.log.Info().
		Int("files", stats.Files).
		Int("records", stats.Records).
		Int("documents", stats.Documents).
		Int("entries", stats.Entries).
		Int("duplicates", stats.Duplicates).
		Str("path", path).
		Msg("merge finished")
	return MergeResult{Path: path, Entries: entries, Stats: stats}, nil
}

// Diff runs latexdiff over chain entries. With no entries given, the chain file is read.
func (p *Pipeline) Diff(ctx context.Context, entries []model.ChainEntry) (latexdiff.Stats, error) {
	if entries == nil {
		var err error
		entries, err = chain.ReadJSONL[model.ChainEntry](p.config.MergedFile(), p.log)
		if err != nil {
			return latexdiff.Stats{}, fmt.Errorf("read chain: %w", err)
		}
	}
	stats, err := p.differ.GenerateAll(ctx, entries)
	if err != nil {
		return stats, fmt.Errorf("diff: %w", err)
	}
	return stats, nil
}

// Parse extracts edit records from the diff directory and writes the output file
func (p *Pipeline) Parse(ctx context.Context) (ParseResult, error) {
	records, summary, err := p.parser.ParseDir(ctx, p.config.DiffDir())
	if err != nil {
		return ParseResult{Summary: summary}, fmt.Errorf("parse: %w", err)
	}

	res := ParseResult{
		Records: records,
		Summary: summary,
		Stats:   p.scorer.Calculate(records),
	}
	path := p.config.OutputFile()
	written, err := WriteRecords(path, records)
	if err != nil {
		return res, fmt.Errorf("write records: %w", err)
	}
	if written {
		res.Path = path
	} else {
		p.log.Warn().Msg("no edit records to write")
	}
	return res, nil
}

// Run executes merge, diff and parse in order, stopping at the first failing stage
func (p *Pipeline) Run(ctx context.Context) (RunResult, error) {
	var res RunResult
	var err error

	if res.Merge, err = p.Merge(ctx); err != nil {
		return res, err
	}
	if res.Diff, err = p.Diff(ctx, res.Merge.Entries); err != nil {
		return res, err
	}
	if res.Parse, err = p.Parse(ctx); err != nil {
		return res, err
	}
	return res, nil
}
