package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"

	perr "github.com/ppiankov/wikiedits/internal/errors"
	"github.com/ppiankov/wikiedits/internal/extract"
	"github.com/ppiankov/wikiedits/internal/logger"
	"github.com/ppiankov/wikiedits/internal/model"
	"github.com/ppiankov/wikiedits/internal/validate"
	"github.com/ppiankov/wikiedits/internal/worker"
)

// Parser turns a directory of latexdiff files into edit records
type Parser struct {
	extractor *extract.EditExtractor
	workers   int
	log       *logger.Logger
}

// NewParser creates a parser running the given number of workers
func NewParser(workers int) *Parser {
	if workers < 1 {
		workers = 1
	}
	return &Parser{
		extractor: extract.NewEditExtractor(),
		workers:   workers,
		log:       logger.Named("parse"),
	}
}

// ParseFile extracts the edit record of one diff file
func (p *Parser) ParseFile(ctx context.Context, path string) (model.EditRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.EditRecord{}, err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return model.EditRecord{}, perr.Wrapf(err, perr.ErrorCodeIO, "read %s", path)
	}
	rec, err := p.extractor.Extract(filepath.Base(path), string(body))
	if err != nil {
		return model.EditRecord{}, err
	}
	if err := validate.Record(rec); err != nil {
		return model.EditRecord{}, err
	}
	return rec, nil
}

// ParseDir parses every .tex file of dir. Records come back in file-name order.
// A directory without diff files is an error; a file that yields no record is counted and skipped.
func (p *Parser) ParseDir(ctx context.Context, dir string) ([]model.EditRecord, model.ParseSummary, error) {
	var summary model.ParseSummary

	files, err := filepath.Glob(filepath.Join(dir, "*.tex"))
	if err != nil {
		return nil, summary, perr.Wrapf(err, perr.ErrorCodeIO, "list %s", dir)
	}
	if len(files) == 0 {
		return nil, summary, perr.Newf(perr.ErrorCodeNotFound, "no latexdiff files found in %s", dir)
	}
	sort.Strings(files)
	p.log.Info().Int("files", len(files)).Str("dir", dir).Msg("processing diffs")

	var records []model.EditRecord
	for i, r := range worker.Map(ctx, p.workers, files, p.ParseFile) {
		summary.Processed++
		if r.Err != nil {
			summary.Skipped++
			countSkip(&summary, r.Err)
			p.log.Debug().Err(r.Err).Str("file", filepath.Base(files[i])).Msg("skipping diff")
			continue
		}
		summary.Kept++
		records = append(records, r.Value)
	}

	if err := ctx.Err(); err != nil {
		return records, summary, err
	}
	p.log.Info().
		Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Int("kept", summary.Kept).
		Msg(summary.String())
	return records, summary, nil
}

// countSkip attributes a skipped file to its reason
func countSkip(s *model.ParseSummary, err error) {
	switch {
	case errors.Is(err, extract.ErrNoAbstract):
		s.NoAbstract++
	case errors.Is(err, extract.ErrMalformedMarkup):
		s.Malformed++
	case errors.Is(err, extract.ErrNoDiffSentence), errors.Is(err, extract.ErrFilteredSentence):
		s.NoSentence++
	case errors.Is(err, extract.ErrMultiEdit):
		s.MultiEdit++
	case errors.Is(err, extract.ErrDegenerate):
		s.Degenerate++
	case errors.Is(err, extract.ErrBadFileName):
		s.BadName++
	case perr.IsCode(err, perr.ErrorCodeValidation):
		s.Invalid++
	default:
		s.Unreadable++
	}
}

// WriteRecords writes records as an indented JSON array. Nothing is written for an empty set.
func WriteRecords(path string, records []model.EditRecord) (bool, error) {
	if len(records) == 0 {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, perr.Wrapf(err, perr.ErrorCodeIO, "create %s", filepath.Dir(path))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return false, perr.Wrap(err, perr.ErrorCodeJSON, "encode records")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return false, perr.Wrapf(err, perr.ErrorCodeIO, "write %s", path)
	}
	return true, nil
}
