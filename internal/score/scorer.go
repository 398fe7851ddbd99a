package score

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/wikiedits/internal/model"
)

// Scorer computes dataset statistics and diagnostic signals over edit records
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate summarises records. Signals are ordered by severity, most severe first.
func (s *Scorer) Calculate(records []model.EditRecord) model.DatasetStats {
	stats := model.DatasetStats{
		Records: len(records),
		Kinds:   map[model.EditKind]int{model.EditAdd: 0, model.EditDelete: 0, model.EditReplace: 0},
	}
	if len(records) == 0 {
		stats.Signals = []model.Signal{{
			Type:        model.SignalEmptyDataset,
			Severity:    model.SeverityCritical,
			Description: "No edit records extracted",
		}}
		return stats
	}

	docs := make(map[string]bool)
	var beforeWords, afterWords, sentenceWords, beforeN, afterN, noop int
	for _, r := range records {
		docs[r.DocID] = true
		stats.Kinds[r.EditType]++
		if r.RevisionDepth > stats.MaxDepth {
			stats.MaxDepth = r.RevisionDepth
		}
		sentenceWords += wordCount(r.BeforeRevision)
		if r.BeforeEdit != nil {
			beforeWords += wordCount(*r.BeforeEdit)
			beforeN++
		}
		if r.AfterEdit != nil {
			afterWords += wordCount(*r.AfterEdit)
			afterN++
		}
		if r.EditType == model.EditReplace && r.BeforeEdit != nil && r.AfterEdit != nil && *r.BeforeEdit == *r.AfterEdit {
			noop++
		}
	}
	stats.Documents = len(docs)
	stats.MeanBeforeEditWords = mean(beforeWords, beforeN)
	stats.MeanAfterEditWords = mean(afterWords, afterN)
	stats.MeanSentenceWords = mean(sentenceWords, len(records))

	stats.Signals = append(stats.Signals, s.kindBalance(stats))
	stats.Signals = append(stats.Signals, s.spanSize(stats))
	stats.Signals = append(stats.Signals, s.chainDepth(stats))
	if noop > 0 {
		stats.Signals = append(stats.Signals, model.Signal{
			Type:        model.SignalNoOpReplace,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d replacements with identical spans", noop),
			Data:        map[string]any{"count": noop},
		})
	}

	sort.SliceStable(stats.Signals, func(i, j int) bool {
		return severityRank(stats.Signals[i].Severity) > severityRank(stats.Signals[j].Severity)
	})
	return stats
}

// kindBalance warns when a single edit kind makes up more than 80% of the records
func (s *Scorer) kindBalance(stats model.DatasetStats) model.Signal {
	var top model.EditKind
	for _, k := range []model.EditKind{model.EditAdd, model.EditDelete, model.EditReplace} {
		if stats.Kinds[k] > stats.Kinds[top] {
			top = k
		}
	}
	share := float64(stats.Kinds[top]) / float64(stats.Records)

	severity := model.SeverityInfo
	if share > 0.8 && stats.Records >= 10 {
		severity = model.SeverityWarning
	}
	return model.Signal{
		Type:        model.SignalKindBalance,
		Severity:    severity,
		Description: fmt.Sprintf("Most common edit kind %s at %.0f%%", top, share*100),
		Data: map[string]any{
			"A":     stats.Kinds[model.EditAdd],
			"D":     stats.Kinds[model.EditDelete],
			"R":     stats.Kinds[model.EditReplace],
			"share": share,
		},
	}
}

// spanSize warns when edits average more than half of their sentence
func (s *Scorer) spanSize(stats model.DatasetStats) model.Signal {
	span := stats.MeanBeforeEditWords
	if stats.MeanAfterEditWords > span {
		span = stats.MeanAfterEditWords
	}
	ratio := 0.0
	if stats.MeanSentenceWords > 0 {
		ratio = span / stats.MeanSentenceWords
	}

	severity := model.SeverityInfo
	if ratio > 0.5 {
		severity = model.SeverityWarning
	}
	return model.Signal{
		Type:        model.SignalLargeSpans,
		Severity:    severity,
		Description: fmt.Sprintf("Mean span %.1f words in %.1f-word sentences", span, stats.MeanSentenceWords),
		Data: map[string]any{
			"mean_before_edit_words": stats.MeanBeforeEditWords,
			"mean_after_edit_words":  stats.MeanAfterEditWords,
			"ratio":                  ratio,
		},
	}
}

func (s *Scorer) chainDepth(stats model.DatasetStats) model.Signal {
	perDoc := float64(stats.Records) / float64(stats.Documents)
	return model.Signal{
		Type:        model.SignalChainDepth,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("%.1f records per document, deepest revision %d", perDoc, stats.MaxDepth),
		Data: map[string]any{
			"documents": stats.Documents,
			"per_doc":   perDoc,
			"max_depth": stats.MaxDepth,
		},
	}
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func mean(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func severityRank(s model.SignalSeverity) int {
	switch s {
	case model.SeverityCritical:
		return 2
	case model.SeverityWarning:
		return 1
	default:
		return 0
	}
}
