package chain

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	perr "github.com/ppiankov/wikiedits/internal/errors"
	"github.com/ppiankov/wikiedits/internal/extract/adapters"
	"github.com/ppiankov/wikiedits/internal/logger"
	"github.com/ppiankov/wikiedits/internal/model"
)

// Chains holds document chains in first-seen order
type Chains struct {
	Order []string
	Docs  model.DocumentChain
}

func newChains() *Chains {
	return &Chains{Docs: make(model.DocumentChain)}
}

func (c *Chains) append(key string, rev model.ChainRevision) {
	if _, ok := c.Docs[key]; !ok {
		c.Order = append(c.Order, key)
	}
	c.Docs[key] = append(c.Docs[key], rev)
}

// MergeStats counts what the merge kept and dropped
type MergeStats struct {
	Files        int `json:"files"`
	Records      int `json:"records"`
	ListPages    int `json:"list_pages"`
	Unchanged    int `json:"unchanged"`
	Documents    int `json:"documents"`
	ShadowedDocs int `json:"shadowed_docs"`
	Duplicates   int `json:"duplicates"`
	Entries      int `json:"entries"`
}

// Merger filters and groups raw revision files of one domain
type Merger struct {
	domain  string
	adapter adapters.Adapter
	log     *logger.Logger
}

// NewMerger creates a merger cleaning text with the domain's adapter
func NewMerger(domain string) *Merger {
	return &Merger{
		domain:  domain,
		adapter: adapters.NewRegistry().FindAdapter(domain),
		log:     logger.Named("merge"),
	}
}

// SkipTitle reports whether a page is a category or list page
func SkipTitle(title string) bool {
	return strings.Contains(title, "Category:") || strings.Contains(title, "List of ")
}

// GroupFiles cleans and groups the records of files under one main category.
// Records of the same page from different files join one chain.
func (m *Merger) GroupFiles(mainCategory string, files []string, stats *MergeStats) *Chains {
	out := newChains()
	for _, path := range files {
		recs, err := ReadJSONL[model.RevisionRecord](path, m.log)
		if err != nil {
			m.log.Error().Err(err).Str("file", path).Msg("skipping file")
			continue
		}
		stats.Files++

		for _, rec := range recs {
			stats.Records++
			if SkipTitle(rec.Title) {
				stats.ListPages++
				continue
			}
			before := m.adapter.Clean(rec.ParentContent)
			after := m.adapter.Clean(rec.CurContent)
			if before == after {
				stats.Unchanged++
				continue
			}
			out.append(model.DocumentKey(m.domain, rec.PageID), model.ChainRevision{
				RevID:          rec.RevID,
				Category:       mainCategory,
				Timestamp:      rec.Timestamp,
				Title:          rec.Title,
				BeforeRevision: before,
				AfterRevision:  after,
			})
		}
	}
	return out
}

// MergeDir merges every main-category directory under rawRoot, in name order.
// A document already produced by an earlier main category wins; later copies are dropped.
func (m *Merger) MergeDir(rawRoot string) (*Chains, MergeStats, error) {
	var stats MergeStats

	entries, err := os.ReadDir(rawRoot)
	if err != nil {
		return nil, stats, perr.Wrapf(err, perr.ErrorCodeIO, "read %s", rawRoot)
	}

	merged := newChains()
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(rawRoot, e.Name())
		files, err := filepath.Glob(filepath.Join(dir, "*.json"))
		if err != nil {
			return nil, stats, perr.Wrapf(err, perr.ErrorCodeIO, "list %s", dir)
		}
		sort.Strings(files)

		group := m.GroupFiles(e.Name(), files, &stats)
		for _, key := range group.Order {
			if _, ok := merged.Docs[key]; ok {
				stats.ShadowedDocs++
				m.log.Debug().Str("doc_id", key).Str("main_category", e.Name()).Msg("document already merged, dropping later copy")
				continue
			}
			merged.Order = append(merged.Order, key)
			merged.Docs[key] = group.Docs[key]
		}
	}

	for _, key := range merged.Order {
		revs := merged.Docs[key]
		deduped := Deduplicate(revs)
		stats.Duplicates += len(revs) - len(deduped)
		merged.Docs[key] = deduped
	}
	stats.Documents = len(merged.Order)
	return merged, stats, nil
}

// Entries flattens chains into chain-file lines with 1-based version depths
func (c *Chains) Entries() []model.ChainEntry {
	var out []model.ChainEntry
	for _, key := range c.Order {
		for i, rev := range c.Docs[key] {
			out = append(out, model.ChainEntry{
				DocID:          key,
				VersionDepth:   i + 1,
				BeforeRevision: rev.BeforeRevision,
				AfterRevision:  rev.AfterRevision,
			})
		}
	}
	return out
}

// WriteChain writes entries as JSONL, replacing any previous file
func WriteChain(path string, entries []model.ChainEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "create %s", filepath.Dir(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "create %s", path)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			_ = f.Close()
			return perr.Wrap(err, perr.ErrorCodeJSON, "encode chain entry")
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return perr.Wrapf(err, perr.ErrorCodeIO, "write %s", path)
	}
	return f.Close()
}
