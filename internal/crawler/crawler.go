// Package crawler walks category membership and revision history and appends revision pairs to per-category JSONL files
package crawler

import (
	"context"
	"time"

	"github.com/google/uuid"

	perr "github.com/ppiankov/wikiedits/internal/errors"
	"github.com/ppiankov/wikiedits/internal/logger"
	"github.com/ppiankov/wikiedits/internal/model"
	"github.com/ppiankov/wikiedits/internal/validate"
	"github.com/ppiankov/wikiedits/internal/wiki"
	"github.com/ppiankov/wikiedits/internal/worker"
)

// Source is the subset of the wiki API the crawler needs
type Source interface {
	CategoryMembers(ctx context.Context, q wiki.MembersQuery) (wiki.MembersPage, error)
	Revisions(ctx context.Context, pageID int64, limit int) ([]model.RevisionMeta, error)
	RevisionContent(ctx context.Context, revID int64) (string, error)
}

// Stats summarizes a crawl
type Stats struct {
	Categories int `json:"categories"`
	Batches    int `json:"batches"`
	Pages      int `json:"pages"`
	PageErrors int `json:"page_errors"`
	Revisions  int `json:"revisions"`
	Minor      int `json:"minor"`
	Skipped    int `json:"skipped"`
	Written    int `json:"written"`
	// Truncated counts categories whose paging ended on an error
	Truncated int `json:"truncated"`
}

func (s *Stats) add(o Stats) {
	s.Categories += o.Categories
	s.Batches += o.Batches
	s.Pages += o.Pages
	s.PageErrors += o.PageErrors
	s.Revisions += o.Revisions
	s.Minor += o.Minor
	s.Skipped += o.Skipped
	s.Written += o.Written
	s.Truncated += o.Truncated
}

// Crawler crawls the categories of one domain
type Crawler struct {
	src      Source
	cfg      model.Config
	settings model.DomainSettings
	sinks    *sinks
	log      *logger.Logger
	now      func() time.Time
}

// New creates a crawler for cfg.Domain
func New(src Source, cfg model.Config) (*Crawler, error) {
	settings, ok := model.LookupDomain(cfg.Domain)
	if !ok {
		return nil, perr.Validationf("unknown domain %q", cfg.Domain)
	}
	return &Crawler{
		src:      src,
		cfg:      cfg,
		settings: settings,
		sinks:    newSinks(),
		log:      logger.Named("crawler"),
		now:      time.Now,
	}, nil
}

// Targets builds the crawl targets of the configured categories, all sharing one time window
func (c *Crawler) Targets() ([]model.CategoryTarget, error) {
	cats, err := c.cfg.Categories()
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeValidation, "resolve categories")
	}
	start, end := model.TimeWindow(c.now().UTC(), c.cfg.Crawl.YearsBack)

	out := make([]model.CategoryTarget, 0, len(cats))
	for _, cat := range cats {
		out = append(out, model.CategoryTarget{
			Domain:   c.cfg.Domain,
			Category: cat,
			Start:    start,
			End:      end,
		})
	}
	return out, nil
}

type categoryResult struct {
	target model.CategoryTarget
	stats  Stats
	err    error
}

func (r *categoryResult) GetError() error { return r.err }

// Run crawls every target on a bounded pool. A failing category never cancels its siblings.
func (c *Crawler) Run(ctx context.Context) (Stats, error) {
	targets, err := c.Targets()
	if err != nil {
		return Stats{}, err
	}

	runID := uuid.NewString()
	log := c.log.With().Str("run_id", runID).Str("domain", c.cfg.Domain).Logger()
	log.Info().Int("categories", len(targets)).Int("concurrency", c.cfg.Crawl.Concurrency).Msg("crawl started")
	started := time.Now()

	pool := worker.NewPoolWithContext(ctx, c.cfg.Crawl.Concurrency)
	pool.Start()
	for _, t := range targets {
		t := t
		pool.Submit(worker.Func(func(ctx context.Context) worker.Result {
			stats, err := c.CrawlCategory(ctx, t)
			return &categoryResult{target: t, stats: stats, err: err}
		}))
	}

	var total Stats
	for _, res := range pool.Wait() {
		if err := res.GetError(); err != nil {
			log.Error().Err(err).Msg("category crawl failed")
		}
		if cr, ok := res.(*categoryResult); ok {
			total.add(cr.stats)
		}
	}

	log.Info().
		Int("pages", total.Pages).
		Int("written", total.Written).
		Int("skipped", total.Skipped).
		Int("truncated", total.Truncated).
		Dur("elapsed", time.Since(started)).
		Msg("crawl finished")
	return total, ctx.Err()
}

type pagingState int

const (
	stateStart pagingState = iota
	statePaging
	stateDone
)

// CrawlCategory pages through one category sequentially, fanning out per-page work inside each batch.
// A failed membership query ends the category; what was written so far stays.
func (c *Crawler) CrawlCategory(ctx context.Context, t model.CategoryTarget) (Stats, error) {
	stats := Stats{Categories: 1}
	log := c.log.With().Str("category", t.Category).Logger()

	sink, err := c.sinks.get(c.cfg.RawFile(t.Category))
	if err != nil {
		return stats, err
	}

	state := stateStart
	token := ""
	for state != stateDone {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		q := wiki.MembersQuery{
			Title:           t.Title(),
			SortByTimestamp: c.settings.SortByTimestamp,
			Limit:           c.cfg.Crawl.PageLimit,
		}
		if state == stateStart {
			q.Anchor = t.End
		} else {
			q.Continue = token
		}

		batch, err := c.src.CategoryMembers(ctx, q)
		if err != nil {
			stats.Truncated++
			log.Warn().Err(err).Int("batches", stats.Batches).Msg("membership query failed, ending category")
			return stats, nil
		}
		if len(batch.Pages) == 0 {
			state = stateDone
			continue
		}

		stats.Batches++
		stats.Pages += len(batch.Pages)
		for _, r := range worker.Map(ctx, c.cfg.Crawl.PageWorkers, batch.Pages, func(ctx context.Context, p model.PageStub) (Stats, error) {
			return c.crawlPage(ctx, p, sink)
		}) {
			if r.Err != nil {
				stats.PageErrors++
				log.Warn().Err(r.Err).Int64("pageid", batch.Pages[r.Index].PageID).Msg("page skipped")
			}
			stats.add(r.Value)
		}

		log.Debug().Int("batch", stats.Batches).Int("pages", len(batch.Pages)).Msg("batch done")

		if batch.Continue == "" {
			state = stateDone
		} else {
			token = batch.Continue
			state = statePaging
		}
	}

	log.Info().Int("pages", stats.Pages).Int("written", stats.Written).Msg("category done")
	return stats, nil
}

// crawlPage pairs each kept revision of a page with its parent and appends the pair
func (c *Crawler) crawlPage(ctx context.Context, page model.PageStub, sink *fileSink) (Stats, error) {
	var stats Stats

	revs, err := c.src.Revisions(ctx, page.PageID, c.cfg.Crawl.RevisionLimit)
	if err != nil {
		return stats, err
	}

	for _, meta := range revs {
		stats.Revisions++
		if c.cfg.Crawl.SkipMinor && meta.Minor {
			stats.Minor++
			continue
		}
		if meta.ParentID == 0 {
			stats.Skipped++
			continue
		}

		rec, err := c.fetchPair(ctx, page, meta)
		if err != nil {
			stats.Skipped++
			ev := c.log.Debug()
			if perr.Retryable(err) {
				ev = c.log.Warn()
			}
			ev.Err(err).Int64("revid", meta.RevID).Msg("revision skipped")
			continue
		}

		if err := sink.Append(rec); err != nil {
			stats.Skipped++
			c.log.Error().Err(err).Int64("revid", meta.RevID).Msg("write failed")
			continue
		}
		stats.Written++
	}
	return stats, nil
}

func (c *Crawler) fetchPair(ctx context.Context, page model.PageStub, meta model.RevisionMeta) (model.RevisionRecord, error) {
	cur, err := c.src.RevisionContent(ctx, meta.RevID)
	if err != nil {
		return model.RevisionRecord{}, err
	}
	parent, err := c.src.RevisionContent(ctx, meta.ParentID)
	if err != nil {
		return model.RevisionRecord{}, err
	}

	rec, err := model.NewRevisionRecord(page, meta, cur, parent)
	if err != nil {
		return model.RevisionRecord{}, perr.Wrap(err, perr.ErrorCodeValidation, "build revision")
	}
	if err := validate.Revision(rec); err != nil {
		return model.RevisionRecord{}, err
	}
	return rec, nil
}
