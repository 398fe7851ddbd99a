package crawler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	perr "github.com/ppiankov/wikiedits/internal/errors"
	"github.com/ppiankov/wikiedits/internal/logger"
	"github.com/ppiankov/wikiedits/internal/model"
	"github.com/ppiankov/wikiedits/internal/wiki"
)

// fakeSource serves two membership batches per category and two revisions per page
type fakeSource struct {
	mu          sync.Mutex
	queries     []wiki.MembersQuery
	failMembers map[string]bool
	failPage    map[int64]bool
	failContent map[int64]bool
	revCalls    map[int64]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		failMembers: map[string]bool{},
		failPage:    map[int64]bool{},
		failContent: map[int64]bool{},
		revCalls:    map[int64]int{},
	}
}

func (f *fakeSource) CategoryMembers(ctx context.Context, q wiki.MembersQuery) (wiki.MembersPage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if f.failMembers[q.Title] {
		return wiki.MembersPage{}, perr.New(perr.ErrorCodeTooManyRequests, "retry exhausted")
	}
	switch q.Continue {
	case "":
		return wiki.MembersPage{
			Pages:    []model.PageStub{{PageID: 1, Title: "Plato"}, {PageID: 2, Title: "Kant"}},
			Continue: "second",
		}, nil
	case "second":
		return wiki.MembersPage{Pages: []model.PageStub{{PageID: 3, Title: "Hume"}}}, nil
	}
	return wiki.MembersPage{}, nil
}

func (f *fakeSource) Revisions(ctx context.Context, pageID int64, limit int) ([]model.RevisionMeta, error) {
	f.mu.Lock()
	f.revCalls[pageID]++
	f.mu.Unlock()

	if f.failPage[pageID] {
		return nil, perr.New(perr.ErrorCodeTooManyRequests, "retry exhausted")
	}
	base := pageID * 100
	return []model.RevisionMeta{
		{RevID: base + 2, ParentID: base + 1, Timestamp: "2024-01-02T00:00:00Z"},
		{RevID: base + 3, ParentID: base + 2, Minor: true, Timestamp: "2024-01-03T00:00:00Z"},
		{RevID: base + 1, ParentID: 0, Timestamp: "2024-01-01T00:00:00Z"},
	}, nil
}

func (f *fakeSource) RevisionContent(ctx context.Context, revID int64) (string, error) {
	if f.failContent[revID] {
		return "", perr.Unavailablef("content %d", revID)
	}
	return fmt.Sprintf("content of %d", revID), nil
}

func testConfig(t *testing.T) model.Config {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Crawl.Categories = []string{"Ethics", "Logic"}
	cfg.Crawl.PageWorkers = 2
	return cfg
}

func newTestCrawler(t *testing.T, src Source, cfg model.Config) *Crawler {
	t.Helper()
	c, err := New(src, cfg)
	if err != nil {
		t.Fatalf("new crawler: %v", err)
	}
	c.log = logger.Nop()
	c.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func readRecords(t *testing.T, path string) []model.RevisionRecord {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var out []model.RevisionRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		var rec model.RevisionRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		out = append(out, rec)
	}
	return out
}

func TestTargets(t *testing.T) {
	cfg := testConfig(t)
	cfg.Crawl.YearsBack = 2
	c := newTestCrawler(t, newFakeSource(), cfg)

	targets, err := c.Targets()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
	if targets[0].Title() != "Category:Ethics" {
		t.Errorf("unexpected title %q", targets[0].Title())
	}
	if targets[0].Start.Year() != 2022 || targets[0].End.Year() != 2024 {
		t.Errorf("unexpected window %v - %v", targets[0].Start, targets[0].End)
	}
}

func TestCrawlCategory_PagesAndFilters(t *testing.T) {
	src := newFakeSource()
	cfg := testConfig(t)
	c := newTestCrawler(t, src, cfg)

	targets, _ := c.Targets()
	stats, err := c.CrawlCategory(context.Background(), targets[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Batches != 2 || stats.Pages != 3 {
		t.Errorf("expected 2 batches and 3 pages, got %+v", stats)
	}
	// per page: one kept, one minor, one without parent
	if stats.Written != 3 || stats.Minor != 3 || stats.Skipped != 3 {
		t.Errorf("unexpected counts %+v", stats)
	}

	if len(src.queries) != 2 {
		t.Fatalf("expected 2 membership queries, got %d", len(src.queries))
	}
	if src.queries[0].Anchor.IsZero() || src.queries[0].Continue != "" {
		t.Errorf("expected first query anchored without token, got %+v", src.queries[0])
	}
	if src.queries[1].Continue != "second" || !src.queries[1].Anchor.IsZero() {
		t.Errorf("expected second query to carry only the token, got %+v", src.queries[1])
	}
	if !src.queries[0].SortByTimestamp {
		t.Error("expected wikipedia queries to sort by timestamp")
	}

	recs := readRecords(t, cfg.RawFile("Ethics"))
	if len(recs) != 3 {
		t.Fatalf("expected 3 records on disk, got %d", len(recs))
	}
	for _, r := range recs {
		if r.CurContent == "" || r.ParentContent == "" {
			t.Errorf("expected both contents, got %+v", r)
		}
		if r.ParentContent != fmt.Sprintf("content of %d", r.ParentID) {
			t.Errorf("parent content mismatch: %+v", r)
		}
	}
}

func TestCrawlCategory_KeepMinor(t *testing.T) {
	cfg := testConfig(t)
	cfg.Crawl.SkipMinor = false
	c := newTestCrawler(t, newFakeSource(), cfg)

	targets, _ := c.Targets()
	stats, _ := c.CrawlCategory(context.Background(), targets[0])
	if stats.Written != 6 || stats.Minor != 0 {
		t.Errorf("expected minor revisions kept, got %+v", stats)
	}
}

func TestCrawlCategory_ContentFailureSkipsRevision(t *testing.T) {
	src := newFakeSource()
	src.failContent[101] = true // parent of page 1's revision
	c := newTestCrawler(t, src, testConfig(t))

	targets, _ := c.Targets()
	stats, _ := c.CrawlCategory(context.Background(), targets[0])
	if stats.Written != 2 {
		t.Errorf("expected 2 written, got %d", stats.Written)
	}
}

func TestCrawlCategory_RateLimitedPageContinues(t *testing.T) {
	src := newFakeSource()
	src.failPage[2] = true
	c := newTestCrawler(t, src, testConfig(t))

	targets, _ := c.Targets()
	stats, err := c.CrawlCategory(context.Background(), targets[0])
	if err != nil {
		t.Fatalf("expected the category to survive a failed page, got %v", err)
	}
	if stats.PageErrors != 1 {
		t.Errorf("expected 1 page error, got %d", stats.PageErrors)
	}
	if stats.Written != 2 {
		t.Errorf("expected the other pages to be written, got %d", stats.Written)
	}
	if src.revCalls[3] != 1 {
		t.Error("expected the next batch to be crawled")
	}
}

func TestRun_FailedCategoryDoesNotStopSiblings(t *testing.T) {
	src := newFakeSource()
	src.failMembers["Category:Ethics"] = true
	cfg := testConfig(t)
	c := newTestCrawler(t, src, cfg)

	stats, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Categories != 2 || stats.Truncated != 1 {
		t.Errorf("expected 2 categories with 1 truncated, got %+v", stats)
	}
	if got := len(readRecords(t, cfg.RawFile("Logic"))); got != 3 {
		t.Errorf("expected 3 records for Logic, got %d", got)
	}
	if _, err := os.Stat(cfg.RawFile("Ethics")); !os.IsNotExist(err) {
		t.Error("expected no output file for the failed category")
	}
}

func TestRun_UnknownMainCategory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Crawl.Categories = nil
	cfg.MainCategory = "astrology"
	c := newTestCrawler(t, newFakeSource(), cfg)

	if _, err := c.Run(context.Background()); !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestNew_UnknownDomain(t *testing.T) {
	cfg := testConfig(t)
	cfg.Domain = "wiktionary"
	if _, err := New(newFakeSource(), cfg); err == nil {
		t.Error("expected error for unknown domain")
	}
}

func TestSink_ConcurrentAppends(t *testing.T) {
	path := t.TempDir() + "/out.json"
	s := newSinks()
	sink, err := s.get(path)
	if err != nil {
		t.Fatalf("get sink: %v", err)
	}
	if again, _ := s.get(path); again != sink {
		t.Error("expected one sink per path")
	}

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = sink.Append(model.RevisionRecord{RevID: int64(i), ParentID: 1, PageID: 1, Title: "T", CurContent: "a", ParentContent: "b"})
		}(i)
	}
	wg.Wait()

	if got := len(readRecords(t, path)); got != 50 {
		t.Errorf("expected 50 intact lines, got %d", got)
	}
}

func TestCrawler_WithAPIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("generator") == "categorymembers":
			_, _ = w.Write([]byte(`{"query":{"pages":[{"pageid":7,"title":"Socrates"}]}}`))
		case q.Get("pageids") == "7":
			_, _ = w.Write([]byte(`{"query":{"pages":[{"pageid":7,"revisions":[{"revid":71,"parentid":70,"timestamp":"2024-01-01T00:00:00Z"}]}]}}`))
		case q.Get("revids") == "71":
			_, _ = w.Write([]byte(`{"query":{"pages":[{"pageid":7,"revisions":[{"slots":{"main":{"content":"'''Socrates''' was wise."}}}]}]}}`))
		case q.Get("revids") == "70":
			_, _ = w.Write([]byte(`{"query":{"pages":[{"pageid":7,"revisions":[{"slots":{"main":{"content":"Socrates was."}}}]}]}}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Crawl.Categories = []string{"Ethics"}
	client := wiki.NewClient(wiki.Options{APIURL: srv.URL, Logger: logger.Nop()})
	c := newTestCrawler(t, client, cfg)

	stats, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Written != 1 {
		t.Fatalf("expected 1 record, got %+v", stats)
	}
	recs := readRecords(t, cfg.RawFile("Ethics"))
	if recs[0].CurContent != "Socrates was wise." || recs[0].Title != "Socrates" {
		t.Errorf("unexpected record %+v", recs[0])
	}
}
