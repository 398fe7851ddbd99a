package model

// DatasetStats summarises a set of edit records
type DatasetStats struct {
	Records   int              `json:"records"`
	Documents int              `json:"documents"`
	Kinds     map[EditKind]int `json:"kinds"`
	MaxDepth  int              `json:"max_depth"`

	MeanBeforeEditWords float64 `json:"mean_before_edit_words"` // over records with a before span
	MeanAfterEditWords  float64 `json:"mean_after_edit_words"`  // over records with an after span
	MeanSentenceWords   float64 `json:"mean_sentence_words"`    // before-revision length

	Signals []Signal `json:"signals"`
}

// Signal is a diagnostic about the dataset with the numbers behind it
type Signal struct {
	Type        SignalType     `json:"type"`
	Severity    SignalSeverity `json:"severity"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// SignalType classifies a diagnostic signal
type SignalType string

const (
	SignalEmptyDataset SignalType = "empty_dataset"
	SignalKindBalance  SignalType = "kind_balance" // One edit kind dominates
	SignalLargeSpans   SignalType = "large_spans"  // Edits rewrite most of the sentence
	SignalChainDepth   SignalType = "chain_depth"  // Revisions per document
	SignalNoOpReplace  SignalType = "noop_replace" // Replace with identical spans
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
