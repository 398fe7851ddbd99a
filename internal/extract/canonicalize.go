package extract

import (
	"regexp"
	"strings"

	"github.com/ppiankov/wikiedits/internal/extract/adapters"
	"github.com/ppiankov/wikiedits/internal/model"
)

// ParagraphCommand replaces blank lines in canonical markup
const ParagraphCommand = `\PAR`

var (
	reAbstract = regexp.MustCompile(`(?s)\\begin\{abstract\}(.+)\\end\{abstract\}`)

	reDIFCommentLine = regexp.MustCompile(`(?m)^[ \t]*%DIF[^\n]*\n?`)
	reDIFComment     = regexp.MustCompile(`([^\\])%DIF[^\n]*`)
	reMath           = regexp.MustCompile(`\bMATH\b`)
	// braces stop the match so a link inside a marker keeps the marker balanced
	reBracedURL     = regexp.MustCompile(`[^\s{}]*https?:[^\s{}]*`)
	reInnermost     = regexp.MustCompile(`\{[^{}]*\}`)
	reEmptyDelBlock = regexp.MustCompile(`\\DIFdelbegin(?:FL)?\s*\\DIFdelend(?:FL)?`)
	reEmptyAddBlock = regexp.MustCompile(`\\DIFaddbegin(?:FL)?\s*\\DIFaddend(?:FL)?`)
	reBlockMarker   = regexp.MustCompile(`\\DIF(?:del|add)(?:begin|end)(?:FL)?`)
	reBlankLine     = regexp.MustCompile(`\n\s*\n`)
)

// ExtractAbstract returns the body of the abstract environment
func ExtractAbstract(doc string) (string, error) {
	m := reAbstract.FindStringSubmatch(doc)
	if m == nil {
		return "", ErrNoAbstract
	}
	return m[1], nil
}

// Canonicalize rewrites latexdiff output into inline \DIFdel / \DIFadd markers and \PAR paragraph commands.
// Applying it to its own output changes nothing.
func Canonicalize(s string) string {
	s = reDIFCommentLine.ReplaceAllString(s, "")
	s = reDIFComment.ReplaceAllString(s, "$1")

	s = strings.ReplaceAll(s, `\$`, "")
	s = strings.ReplaceAll(s, "$", "")
	s = reMath.ReplaceAllString(s, "")
	s = adapters.FixURLScheme(s)
	s = adapters.StripAnchors(s)
	s = reBracedURL.ReplaceAllString(s, model.URLPlaceholder)

	s = reInnermost.ReplaceAllStringFunc(s, func(group string) string {
		return strings.ReplaceAll(group, "\n", " ")
	})

	s = reEmptyDelBlock.ReplaceAllString(s, "")
	s = reEmptyAddBlock.ReplaceAllString(s, "")
	s = reBlockMarker.ReplaceAllString(s, " ")

	s = reBlankLine.ReplaceAllString(s, "\n"+ParagraphCommand+"\n")
	return strings.TrimSpace(s)
}
