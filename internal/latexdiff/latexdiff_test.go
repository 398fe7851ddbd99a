package latexdiff

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	perr "github.com/ppiankov/wikiedits/internal/errors"
	"github.com/ppiankov/wikiedits/internal/extract"
	"github.com/ppiankov/wikiedits/internal/logger"
	"github.com/ppiankov/wikiedits/internal/model"
)

func newTestGenerator(t *testing.T, run Runner) (*Generator, string) {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Diff.Workers = 2
	cfg.Diff.Timeout = 5 * time.Second

	g := NewGenerator(cfg)
	g.log = logger.Nop()
	if run != nil {
		g.run = run
	}
	return g, cfg.DiffDir()
}

func TestDocument(t *testing.T) {
	doc := Document("Cafe\u0301 text")
	if !strings.HasPrefix(doc, "\\documentclass{article}\n\\begin{document}\n\\begin{abstract}\n") {
		t.Errorf("unexpected preamble %q", doc)
	}
	if !strings.HasSuffix(doc, "\\end{abstract}\n\\end{document}\n") {
		t.Errorf("unexpected ending %q", doc)
	}
	if !strings.Contains(doc, "Caf\u00e9 text") {
		t.Errorf("expected NFC text, got %q", doc)
	}

	abstract, err := extract.ExtractAbstract(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(abstract) != "Caf\u00e9 text" {
		t.Errorf("unexpected abstract %q", abstract)
	}
}

func TestGenerate_WritesDiffAndRemovesInputs(t *testing.T) {
	var mu sync.Mutex
	var calls [][]string

	g, dir := newTestGenerator(t, func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		mu.Lock()
		calls = append(calls, append([]string{binary}, args...))
		mu.Unlock()

		old, err := os.ReadFile(args[2])
		if err != nil {
			return nil, err
		}
		cur, err := os.ReadFile(args[3])
		if err != nil {
			return nil, err
		}
		return []byte("OLD:" + string(old) + "NEW:" + string(cur)), nil
	})

	path, err := g.Generate(context.Background(), model.ChainEntry{
		DocID:          "wikipedia-7",
		VersionDepth:   2,
		BeforeRevision: "Plato was a philosopher.",
		AfterRevision:  "Plato was a Greek philosopher.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if filepath.Base(path) != "wikipedia-7_diff_v2v3.tex" {
		t.Errorf("unexpected diff name %s", path)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	args := calls[0]
	if args[0] != "latexdiff" || args[1] != "--ignore-warnings" || args[2] != "--math-markup=0" {
		t.Errorf("unexpected command %v", args)
	}
	if filepath.Base(args[3]) != "wikipedia-7v2.tex" || filepath.Base(args[4]) != "wikipedia-7v3.tex" {
		t.Errorf("unexpected input names %v", args[3:])
	}

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read diff: %v", err)
	}
	if !strings.Contains(string(body), "Plato was a Greek philosopher.") {
		t.Errorf("expected newer revision in output, got %q", body)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*.tex"))
	if len(files) != 1 {
		t.Errorf("expected only the diff file to remain, got %v", files)
	}
}

func TestGenerate_CleansText(t *testing.T) {
	var got string
	g, _ := newTestGenerator(t, func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		b, err := os.ReadFile(args[2])
		got = string(b)
		return nil, err
	})

	_, err := g.Generate(context.Background(), model.ChainEntry{
		DocID:          "wikipedia-1",
		VersionDepth:   1,
		BeforeRevision: "Body with http://example.org link.\n See also \nOther pages",
		AfterRevision:  "Body",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got, "Other pages") || strings.Contains(got, "example.org") {
		t.Errorf("expected cleaned text, got %q", got)
	}
	if !strings.Contains(got, "Body with URL link.") {
		t.Errorf("expected URL placeholder, got %q", got)
	}
}

func TestGenerate_RunnerFailure(t *testing.T) {
	g, dir := newTestGenerator(t, func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		return nil, errors.New("exit status 2")
	})

	_, err := g.Generate(context.Background(), model.ChainEntry{DocID: "wikinews-3", VersionDepth: 1, BeforeRevision: "a", AfterRevision: "b"})
	if !perr.IsCode(err, perr.ErrorCodeExternal) {
		t.Errorf("expected external error, got %v", err)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*.tex"))
	if len(files) != 0 {
		t.Errorf("expected no files left, got %v", files)
	}
}

func TestGenerateAll_CountsFailures(t *testing.T) {
	g, dir := newTestGenerator(t, func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		if strings.Contains(args[2], "wikipedia-2v") {
			return nil, errors.New("boom")
		}
		return []byte("diff"), nil
	})

	entries := []model.ChainEntry{
		{DocID: "wikipedia-1", VersionDepth: 1, BeforeRevision: "a", AfterRevision: "b"},
		{DocID: "wikipedia-1", VersionDepth: 2, BeforeRevision: "b", AfterRevision: "c"},
		{DocID: "wikipedia-2", VersionDepth: 1, BeforeRevision: "x", AfterRevision: "y"},
	}
	stats, err := g.GenerateAll(context.Background(), entries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Entries != 3 || stats.Written != 2 || stats.Failed != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	for _, name := range []string{"wikipedia-1_diff_v1v2.tex", "wikipedia-1_diff_v2v3.tex"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

func TestCheck_MissingBinary(t *testing.T) {
	g, _ := newTestGenerator(t, nil)
	g.cfg.Binary = "definitely-not-a-latexdiff-binary"
	if err := g.Check(); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestGenerate_RealLatexdiff(t *testing.T) {
	if _, err := exec.LookPath("latexdiff"); err != nil {
		t.Skip("latexdiff not installed")
	}

	g, _ := newTestGenerator(t, nil)
	path, err := g.Generate(context.Background(), model.ChainEntry{
		DocID:          "wikipedia-9",
		VersionDepth:   1,
		BeforeRevision: "The old value is here.",
		AfterRevision:  "The new value is here.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read diff: %v", err)
	}
	rec, err := extract.NewEditExtractor().Extract(path, string(body))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if rec.EditType != model.EditReplace || rec.AfterRevision != "The new value is here." {
		t.Errorf("unexpected record %+v", rec)
	}
}
