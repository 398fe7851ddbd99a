package extract

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	perr "github.com/ppiankov/wikiedits/internal/errors"
	"github.com/ppiankov/wikiedits/internal/model"
)

var reDiffName = regexp.MustCompile(`^(.+)_diff_v(\d+)v(\d+)\.tex$`)

// ParseDiffFileName recovers the document id and revision depth from {doc}_diff_v{n}v{n+1}.tex
func ParseDiffFileName(path string) (string, int, error) {
	m := reDiffName.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return "", 0, ErrBadFileName
	}
	depth, err := strconv.Atoi(m[2])
	if err != nil || depth < 1 {
		return "", 0, ErrBadFileName
	}
	return m[1], depth, nil
}

// DiffFileName is the inverse of ParseDiffFileName
func DiffFileName(docID string, depth int) string {
	return docID + "_diff_v" + strconv.Itoa(depth) + "v" + strconv.Itoa(depth+1) + ".tex"
}

// FindDiffSentence returns the first sentence holding a marker.
// If that sentence mentions a category or list page, nothing is returned.
func FindDiffSentence(toks []model.DiffToken) (Sentence, error) {
	for _, s := range SplitSentences(toks) {
		if !s.HasMarker() {
			continue
		}
		text := s.Text()
		if strings.Contains(text, "Category:") || strings.Contains(text, "List of") {
			return nil, ErrFilteredSentence
		}
		return s, nil
	}
	return nil, ErrNoDiffSentence
}

// ParseEdits classifies the markers of a sentence and rebuilds the before-revision.
// Replacements (a delete followed by an add with only whitespace between) are taken first,
// then lone deletes, then lone adds. Deleted text stays in the before-revision; added text does not.
func ParseEdits(s Sentence) (string, []model.EditAction) {
	type role uint8
	const (
		keep role = iota
		replaceDel
		replaceGap
		replaceAdd
	)

	roles := make([]role, len(s))
	for i := 0; i < len(s); i++ {
		if s[i].Kind != model.TokenDel {
			continue
		}
		j := i + 1
		for j < len(s) && s[j].Kind == model.TokenText && strings.TrimSpace(s[j].Text) == "" {
			j++
		}
		if j < len(s) && s[j].Kind == model.TokenAdd {
			roles[i] = replaceDel
			for k := i + 1; k < j; k++ {
				roles[k] = replaceGap
			}
			roles[j] = replaceAdd
			i = j
		}
	}

	var raw strings.Builder
	var replaces, deletes, adds []model.EditAction
	for i, t := range s {
		switch {
		case roles[i] == replaceDel:
			j := i + 1
			for roles[j] == replaceGap {
				j++
			}
			r := model.NewReplace(normalizeSpace(t.Text), normalizeSpace(s[j].Text), raw.Len()+leadingSpace(t.Text))
			r.SpaceBefore = startsWithSpace(s[j].Text)
			r.SpaceAfter = endsWithSpace(s[j].Text)
			replaces = append(replaces, r)
			raw.WriteString(t.Text)
		case roles[i] == replaceGap, roles[i] == replaceAdd:
		case t.Kind == model.TokenDel:
			deletes = append(deletes, model.NewDelete(normalizeSpace(t.Text), raw.Len()+leadingSpace(t.Text)))
			raw.WriteString(t.Text)
		case t.Kind == model.TokenAdd:
			a := model.NewAdd(normalizeSpace(t.Text), raw.Len())
			a.SpaceBefore = startsWithSpace(t.Text) || (i > 0 && endsWithSpace(s[i-1].Text))
			a.SpaceAfter = endsWithSpace(t.Text) || (i+1 < len(s) && startsWithSpace(s[i+1].Text))
			adds = append(adds, a)
		default:
			raw.WriteString(t.Text)
		}
	}

	actions := append(append(replaces, deletes...), adds...)
	anchors := make([]int, len(actions))
	for i, a := range actions {
		anchors[i] = a.Anchor
	}
	before, mapped := normalizeWithOffsets(raw.String(), anchors)
	for i := range actions {
		actions[i].Anchor = mapped[i]
	}
	return before, actions
}

// BuildAfterRevision applies actions to the before-revision in order.
// Deleted and replaced spans are searched from their anchor; added text is inserted at its anchor.
func BuildAfterRevision(before string, actions []model.EditAction) string {
	var b strings.Builder
	cursor := 0

	for _, a := range actions {
		anchor := clamp(a.Anchor, 0, len(before))
		if anchor < cursor {
			anchor = cursor
		}

		switch a.Kind {
		case model.EditReplace, model.EditDelete:
			span := a.BeforeText()
			pos := strings.Index(before[anchor:], span)
			if pos >= 0 {
				pos += anchor
			} else if pos = strings.Index(before[cursor:], span); pos >= 0 {
				pos += cursor
			}
			if pos >= 0 {
				b.WriteString(before[cursor:pos])
				cursor = pos + len(span)
			}
			if a.Kind == model.EditReplace {
				b.WriteString(padded(a, &b, before[cursor:]))
			}

		case model.EditAdd:
			b.WriteString(before[cursor:anchor])
			cursor = anchor
			b.WriteString(padded(a, &b, before[cursor:]))
		}
	}
	b.WriteString(before[cursor:])
	return normalizeSpace(b.String())
}

// padded separates inserted text from its neighbours where the diff had whitespace
func padded(a model.EditAction, written *strings.Builder, rest string) string {
	text := a.AfterText()
	if text == "" {
		return ""
	}
	if a.SpaceBefore && written.Len() > 0 && !endsWithSpace(written.String()) {
		text = " " + text
	}
	if a.SpaceAfter && rest != "" && !startsWithSpace(rest) {
		text += " "
	}
	return text
}

// EditExtractor turns one latexdiff document into an edit record
type EditExtractor struct{}

// NewEditExtractor creates a new edit extractor
func NewEditExtractor() *EditExtractor {
	return &EditExtractor{}
}

// Extract runs the whole chain for one diff file. The returned error says why the file was skipped.
func (e *EditExtractor) Extract(name, doc string) (model.EditRecord, error) {
	docID, depth, err := ParseDiffFileName(name)
	if err != nil {
		return model.EditRecord{}, err
	}

	abstract, err := ExtractAbstract(doc)
	if err != nil {
		return model.EditRecord{}, err
	}

	toks, err := ParseCommands(Canonicalize(abstract))
	if err != nil {
		return model.EditRecord{}, err
	}

	sentence, err := FindDiffSentence(toks)
	if err != nil {
		return model.EditRecord{}, err
	}

	before, actions := ParseEdits(sentence)
	if len(actions) > 1 {
		return model.EditRecord{}, perr.Wrapf(ErrMultiEdit, perr.ErrorCodeValidation, "%d edits", len(actions))
	}
	if len(actions) == 0 || actions[0].Degenerate() {
		return model.EditRecord{}, ErrDegenerate
	}
	after := BuildAfterRevision(before, actions)
	if before == "" || after == "" {
		return model.EditRecord{}, ErrDegenerate
	}

	a := actions[0]
	return model.EditRecord{
		DocID:          docID,
		RevisionDepth:  depth,
		BeforeRevision: before,
		AfterRevision:  after,
		EditType:       a.Kind,
		BeforeEdit:     a.Before,
		AfterEdit:      a.After,
	}, nil
}

// normalizeSpace collapses whitespace runs to single spaces and trims the ends
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeWithOffsets normalizes like normalizeSpace and maps byte offsets of s into the result.
// An offset inside a collapsed run maps to the start of the following word.
func normalizeWithOffsets(s string, offsets []int) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	mapped := make([]int, len(offsets))
	for i := range mapped {
		mapped[i] = -1
	}

	pending := false
	mark := func(at int) {
		for i, o := range offsets {
			if o == at && mapped[i] < 0 {
				mapped[i] = b.Len()
				if pending && b.Len() > 0 {
					mapped[i]++
				}
			}
		}
	}

	for i, r := range s {
		mark(i)
		if unicode.IsSpace(r) {
			pending = true
			continue
		}
		if pending && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pending = false
		b.WriteRune(r)
	}

	out := b.String()
	for i := range mapped {
		if mapped[i] < 0 || mapped[i] > len(out) {
			mapped[i] = len(out)
		}
	}
	return out, mapped
}

func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeftFunc(s, unicode.IsSpace))
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return s != "" && unicode.IsSpace(r)
}

func endsWithSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return s != "" && unicode.IsSpace(r)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
