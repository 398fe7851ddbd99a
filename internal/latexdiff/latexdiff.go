package latexdiff

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	perr "github.com/ppiankov/wikiedits/internal/errors"
	"github.com/ppiankov/wikiedits/internal/extract"
	"github.com/ppiankov/wikiedits/internal/extract/adapters"
	"github.com/ppiankov/wikiedits/internal/logger"
	"github.com/ppiankov/wikiedits/internal/model"
	"github.com/ppiankov/wikiedits/internal/worker"
)

// Runner executes the diff binary and returns its stdout
type Runner func(ctx context.Context, binary string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return out, perr.Wrapf(err, perr.ErrorCodeExternal, "%s: %s", binary, strings.TrimSpace(stderr.String()))
	}
	return out, err
}

// Stats counts the outcome of a diff run
type Stats struct {
	Entries int `json:"entries"`
	Written int `json:"written"`
	Failed  int `json:"failed"`
}

// Generator renders chain entries as LaTeX documents and diffs each pair with latexdiff
type Generator struct {
	cfg    model.DiffConfig
	dir    string
	domain string
	run    Runner
	log    *logger.Logger
}

// NewGenerator creates a generator writing into the configured diff directory
func NewGenerator(cfg model.Config) *Generator {
	return &Generator{
		cfg:    cfg.Diff,
		dir:    cfg.DiffDir(),
		domain: cfg.Domain,
		run:    execRunner,
		log:    logger.Named("latexdiff"),
	}
}

// Check fails when the latexdiff binary cannot be found
func (g *Generator) Check() error {
	if _, err := exec.LookPath(g.cfg.Binary); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeNotFound, "%s not found in PATH", g.cfg.Binary)
	}
	return nil
}

// Document wraps revision text in the minimal article with an abstract environment
func Document(text string) string {
	var b strings.Builder
	b.WriteString("\\documentclass{article}\n")
	b.WriteString("\\begin{document}\n")
	b.WriteString("\\begin{abstract}\n")
	b.WriteString(norm.NFC.String(text))
	b.WriteString("\n\\end{abstract}\n")
	b.WriteString("\\end{document}\n")
	return b.String()
}

// Generate writes the diff of one chain entry and returns its path.
// The two input documents are removed whether or not the diff succeeds.
func (g *Generator) Generate(ctx context.Context, entry model.ChainEntry) (string, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeIO, "create %s", g.dir)
	}

	depth := entry.VersionDepth
	oldPath := filepath.Join(g.dir, entry.DocID+"v"+strconv.Itoa(depth)+".tex")
	newPath := filepath.Join(g.dir, entry.DocID+"v"+strconv.Itoa(depth+1)+".tex")
	defer func() {
		_ = os.Remove(oldPath)
		_ = os.Remove(newPath)
	}()

	before := adapters.CleanText(entry.BeforeRevision, g.domain)
	after := adapters.CleanText(entry.AfterRevision, g.domain)
	if err := os.WriteFile(oldPath, []byte(Document(before)), 0o644); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeIO, "write %s", oldPath)
	}
	if err := os.WriteFile(newPath, []byte(Document(after)), 0o644); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeIO, "write %s", newPath)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	out, err := g.run(ctx, g.cfg.Binary, "--ignore-warnings", "--math-markup=0", oldPath, newPath)
	if err != nil {
		if _, ok := perr.As(err); !ok {
			err = perr.Wrapf(err, perr.ErrorCodeExternal, "latexdiff %s v%d", entry.DocID, depth)
		}
		return "", err
	}

	diffPath := filepath.Join(g.dir, extract.DiffFileName(entry.DocID, depth))
	if err := os.WriteFile(diffPath, out, 0o644); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeIO, "write %s", diffPath)
	}
	return diffPath, nil
}

// GenerateAll diffs every entry on a bounded pool. A failing entry is logged and skipped.
func (g *Generator) GenerateAll(ctx context.Context, entries []model.ChainEntry) (Stats, error) {
	stats := Stats{Entries: len(entries)}

	results := worker.Map(ctx, g.cfg.Workers, entries, g.Generate)
	for i, r := range results {
		if r.Err != nil {
			stats.Failed++
			g.log.Warn().Err(r.Err).
				Str("doc_id", entries[i].DocID).
				Int("version_depth", entries[i].VersionDepth).
				Msg("diff failed")
			continue
		}
		stats.Written++
	}

	g.log.Info().
		Int("entries", stats.Entries).
		Int("written", stats.Written).
		Int("failed", stats.Failed).
		Str("dir", g.dir).
		Msg("diff run finished")
	return stats, ctx.Err()
}
