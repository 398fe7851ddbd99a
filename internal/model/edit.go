package model

import "fmt"

// TokenKind tags a DiffToken
type TokenKind uint8

const (
	TokenText TokenKind = iota // Unchanged text
	TokenDel                   // Text present only in the older revision
	TokenAdd                   // Text present only in the newer revision
)

func (k TokenKind) String() string {
	switch k {
	case TokenText:
		return "text"
	case TokenDel:
		return "del"
	case TokenAdd:
		return "add"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// DiffToken is one element of the flat sequence produced from diff markup
type DiffToken struct {
	Kind TokenKind
	Text string
}

// IsMarker reports whether the token carries a delete or add marker
func (t DiffToken) IsMarker() bool {
	return t.Kind == TokenDel || t.Kind == TokenAdd
}

// EditKind is the classification of a single edit
type EditKind string

const (
	EditAdd     EditKind = "A"
	EditDelete  EditKind = "D"
	EditReplace EditKind = "R"
)

// EditAction is one classified edit.
// Delete has Before only, Add has After only, Replace has both.
// Anchor is the byte offset in the before-revision where the edit applies.
type EditAction struct {
	Kind   EditKind
	Before *string
	After  *string
	Anchor int

	// SpaceBefore and SpaceAfter record whitespace at the edges of the added text in the diff
	SpaceBefore bool
	SpaceAfter  bool
}

// NewAdd creates an Add action inserting text at anchor
func NewAdd(after string, anchor int) EditAction {
	return EditAction{Kind: EditAdd, After: &after, Anchor: anchor}
}

// NewDelete creates a Delete action removing text found at anchor
func NewDelete(before string, anchor int) EditAction {
	return EditAction{Kind: EditDelete, Before: &before, Anchor: anchor}
}

// NewReplace creates a Replace action swapping before for after at anchor
func NewReplace(before, after string, anchor int) EditAction {
	return EditAction{Kind: EditReplace, Before: &before, After: &after, Anchor: anchor}
}

// Degenerate reports whether the action has neither a before nor an after span
func (a EditAction) Degenerate() bool {
	return (a.Before == nil || *a.Before == "") && (a.After == nil || *a.After == "")
}

// BeforeText returns the before span or empty
func (a EditAction) BeforeText() string {
	if a.Before == nil {
		return ""
	}
	return *a.Before
}

// AfterText returns the after span or empty
func (a EditAction) AfterText() string {
	if a.After == nil {
		return ""
	}
	return *a.After
}

// EditRecord is the final output unit, immutable once written
type EditRecord struct {
	DocID          string   `json:"doc_id" validate:"required"`
	RevisionDepth  int      `json:"revision_depth" validate:"min=1"`
	BeforeRevision string   `json:"before_revision" validate:"required"`
	AfterRevision  string   `json:"after_revision" validate:"required"`
	EditType       EditKind `json:"edit_type" validate:"oneof=A D R"`
	BeforeEdit     *string  `json:"before_edit"`
	AfterEdit      *string  `json:"after_edit"`
}

// ParseSummary counts the outcome of a parse batch
type ParseSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Kept      int `json:"kept"`

	NoAbstract int `json:"no_abstract"`
	Malformed  int `json:"malformed"`
	NoSentence int `json:"no_sentence"`
	MultiEdit  int `json:"multi_edit"`
	Degenerate int `json:"degenerate"`
	BadName    int `json:"bad_name"`
	Invalid    int `json:"invalid"`
	Unreadable int `json:"unreadable"`
}

// String renders the one-line summary printed at the end of a parse run
func (s ParseSummary) String() string {
	return fmt.Sprintf("Processed %d diffs. Skipped %d. Kept %d.", s.Processed, s.Skipped, s.Kept)
}
