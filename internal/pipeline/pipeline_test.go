package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	perr "github.com/ppiankov/wikiedits/internal/errors"
	"github.com/ppiankov/wikiedits/internal/extract"
	"github.com/ppiankov/wikiedits/internal/latexdiff"
	"github.com/ppiankov/wikiedits/internal/logger"
	"github.com/ppiankov/wikiedits/internal/model"
)

func diffDoc(body string) string {
	return "\\documentclass{article}\n%DIF PREAMBLE\n\\begin{document}\n\\begin{abstract}\n" +
		body + "\n\\end{abstract}\n\\end{document}\n"
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestParser() *Parser {
	p := NewParser(2)
	p.log = logger.Nop()
	return p
}

func TestParseDir_SummaryAndOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "wikipedia-2_diff_v1v2.tex"), diffDoc(`The \DIFdel{old} \DIFadd{new} value.`))
	writeFile(t, filepath.Join(dir, "wikipedia-1_diff_v4v5.tex"), diffDoc(`It rained \DIFadd{heavily} today.`))
	writeFile(t, filepath.Join(dir, "wikipedia-3_diff_v1v2.tex"), diffDoc(`A \DIFdel{b} \DIFadd{c} and \DIFdel{d} \DIFadd{e}.`))
	writeFile(t, filepath.Join(dir, "wikipedia-4_diff_v1v2.tex"), `\begin{document}no abstract\end{document}`)
	writeFile(t, filepath.Join(dir, "wikipedia-5_diff_v1v2.tex"), diffDoc(`The \DIFdel{old value.`))
	writeFile(t, filepath.Join(dir, "wikipedia-6_diff_v1v2.tex"), diffDoc(`Nothing changed.`))
	writeFile(t, filepath.Join(dir, "notes.tex"), diffDoc(`The \DIFadd{new} value.`))
	writeFile(t, filepath.Join(dir, "readme.txt"), "ignored")

	records, summary, err := newTestParser().ParseDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Processed != 7 || summary.Kept != 2 || summary.Skipped != 5 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if summary.MultiEdit != 1 || summary.NoAbstract != 1 || summary.Malformed != 1 || summary.NoSentence != 1 || summary.BadName != 1 {
		t.Errorf("unexpected skip reasons %+v", summary)
	}
	if summary.String() != "Processed 7 diffs. Skipped 5. Kept 2." {
		t.Errorf("unexpected summary line %q", summary.String())
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].DocID != "wikipedia-1" || records[0].RevisionDepth != 4 || records[0].EditType != model.EditAdd {
		t.Errorf("unexpected first record %+v", records[0])
	}
	if records[1].DocID != "wikipedia-2" || records[1].EditType != model.EditReplace {
		t.Errorf("unexpected second record %+v", records[1])
	}
}

func TestParseDir_NoDiffFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "other.json"), "{}")

	_, _, err := newTestParser().ParseDir(context.Background(), dir)
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestWriteRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "wikipedia_revisions.json")

	written, err := WriteRecords(path, nil)
	if err != nil || written {
		t.Fatalf("expected nothing written for empty set, got %v %v", written, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no file, got %v", err)
	}

	after := "a <b> & c"
	recs := []model.EditRecord{{
		DocID: "wikipedia-1", RevisionDepth: 1, BeforeRevision: "a c", AfterRevision: "a <b> & c",
		EditType: model.EditAdd, AfterEdit: &after,
	}}
	written, err = WriteRecords(path, recs)
	if err != nil || !written {
		t.Fatalf("expected file written, got %v %v", written, err)
	}

	body, _ := os.ReadFile(path)
	if !strings.Contains(string(body), "\n  {\n    \"doc_id\": \"wikipedia-1\"") {
		t.Errorf("expected two-space indentation, got %s", body)
	}
	if !strings.Contains(string(body), `"a <b> & c"`) {
		t.Errorf("expected unescaped markup, got %s", body)
	}
	if !strings.Contains(string(body), `"before_edit": null`) {
		t.Errorf("expected null before span, got %s", body)
	}
}

// wholeTextDiffer marks the entire before text deleted and the after text added
type wholeTextDiffer struct {
	dir string
}

func (d wholeTextDiffer) GenerateAll(ctx context.Context, entries []model.ChainEntry) (latexdiff.Stats, error) {
	stats := latexdiff.Stats{Entries: len(entries)}
	for _, e := range entries {
		body := diffDoc(`\DIFdel{` + e.BeforeRevision + `}\DIFadd{` + e.AfterRevision + `}`)
		path := filepath.Join(d.dir, extract.DiffFileName(e.DocID, e.VersionDepth))
		if err := os.MkdirAll(d.dir, 0o755); err != nil {
			return stats, err
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return stats, err
		}
		stats.Written++
	}
	return stats, nil
}

func writeRaw(t *testing.T, path string, recs ...model.RevisionRecord) {
	t.Helper()
	var b strings.Builder
	for _, r := range recs {
		line, err := json.Marshal(r)
		if err != nil {
			t.Fatal(err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	writeFile(t, path, b.String())
}

func TestPipeline_Run(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Parse.Workers = 2

	writeRaw(t, cfg.RawFile("Ancient_philosophy"),
		model.RevisionRecord{
			RevID: 2, ParentID: 1, PageID: 10, Title: "Plato", Timestamp: "2024-02-01T00:00:00Z",
			ParentContent: "Plato was a Greek philosopher.", CurContent: "Plato was an Athenian philosopher.",
		},
		model.RevisionRecord{
			RevID: 1, ParentID: 0, PageID: 10, Title: "Plato", Timestamp: "2024-01-01T00:00:00Z",
			ParentContent: "Plato was a philosopher.", CurContent: "Plato was a Greek philosopher.",
		},
		model.RevisionRecord{
			RevID: 5, ParentID: 4, PageID: 11, Title: "List of philosophers", Timestamp: "2024-01-01T00:00:00Z",
			ParentContent: "Plato", CurContent: "Plato, Kant",
		},
	)

	p := NewPipeline(cfg).WithDiffer(wholeTextDiffer{dir: cfg.DiffDir()})
	p.log = logger.Nop()
	p.parser.log = logger.Nop()

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Merge.Stats.ListPages != 1 || len(res.Merge.Entries) != 2 || res.Merge.Stats.Entries != 2 {
		t.Errorf("unexpected merge result %+v", res.Merge.Stats)
	}
	if res.Merge.Entries[0].BeforeRevision != "Plato was a philosopher." {
		t.Errorf("expected chain sorted by timestamp, got %+v", res.Merge.Entries[0])
	}
	if res.Diff.Written != 2 {
		t.Errorf("expected 2 diffs, got %+v", res.Diff)
	}
	if res.Parse.Summary.Kept != 2 {
		t.Errorf("expected 2 kept, got %+v", res.Parse.Summary)
	}
	if res.Parse.Path != cfg.OutputFile() {
		t.Errorf("expected output at %s, got %q", cfg.OutputFile(), res.Parse.Path)
	}
	if res.Parse.Stats.Kinds[model.EditReplace] != 2 || res.Parse.Stats.Documents != 1 {
		t.Errorf("unexpected dataset stats %+v", res.Parse.Stats)
	}

	body, err := os.ReadFile(cfg.OutputFile())
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var out []model.EditRecord
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(out) != 2 || out[1].RevisionDepth != 2 || out[1].AfterRevision != "Plato was an Athenian philosopher." {
		t.Errorf("unexpected output %+v", out)
	}
}

func TestPipeline_DiffReadsChainFile(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.DataDir = t.TempDir()
	writeFile(t, cfg.MergedFile(), `{"doc_id":"wikipedia-3","version_depth":1,"before_revision":"a","after_revision":"b"}`+"\n")

	p := NewPipeline(cfg).WithDiffer(wholeTextDiffer{dir: cfg.DiffDir()})
	p.log = logger.Nop()

	stats, err := p.Diff(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Written != 1 {
		t.Errorf("expected 1 diff, got %+v", stats)
	}
	if _, err := os.Stat(filepath.Join(cfg.DiffDir(), "wikipedia-3_diff_v1v2.tex")); err != nil {
		t.Errorf("expected diff file: %v", err)
	}
}
