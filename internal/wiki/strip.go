package wiki

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	reComment     = regexp.MustCompile(`(?s)<!--.*?-->`)
	reInvisible   = regexp.MustCompile(`(?is)<(math|gallery|timeline|score|graph|imagemap|templatedata)[^>]*>.*?</(math|gallery|timeline|score|graph|imagemap|templatedata)>`)
	reSelfClosing = regexp.MustCompile(`(?i)<ref[^>]*/>`)
	reTag         = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	reHeading     = regexp.MustCompile(`(?m)^(={1,6})(.+?)={1,6}[ \t]*$`)
	reWikiLink    = regexp.MustCompile(`\[\[([^\[\]|]*)(?:\|([^\[\]]*))?\]\]`)
	reExtLinkText = regexp.MustCompile(`\[(?:https?:)?//[^\s\]]+\s+([^\]]*)\]`)
	reExtLinkBare = regexp.MustCompile(`\[(?:https?:)?//[^\s\]]+\]`)
	reBoldItalic  = regexp.MustCompile(`'{2,5}`)
	reBlankLines  = regexp.MustCompile(`\n{3,}`)
)

// StripMarkup reduces wikitext to readable text.
// Templates and tables are dropped, links keep their visible text, headings keep their title
// on their own line, and HTML entities are decoded.
// Image options such as "thumb|right|200px|" survive, as does the "Category:" prefix of category links;
// downstream cleaning and filtering rely on both.
func StripMarkup(text string) string {
	text = reComment.ReplaceAllString(text, "")
	text = reInvisible.ReplaceAllString(text, "")
	text = stripBalanced(text, "{{", "}}")
	text = stripBalanced(text, "{|", "|}")
	text = reSelfClosing.ReplaceAllString(text, "")
	text = reTag.ReplaceAllString(text, "")
	text = reHeading.ReplaceAllString(text, "$2")

	// nested links inside file captions resolve from the inside out
	for i := 0; i < 3 && strings.Contains(text, "[["); i++ {
		next := reWikiLink.ReplaceAllStringFunc(text, linkText)
		if next == text {
			break
		}
		text = next
	}

	text = reExtLinkText.ReplaceAllString(text, "$1")
	text = reExtLinkBare.ReplaceAllString(text, "")
	text = reBoldItalic.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = reBlankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// linkText returns what a [[target|text]] link displays
func linkText(link string) string {
	m := reWikiLink.FindStringSubmatch(link)
	if m == nil {
		return link
	}
	if m[2] != "" {
		return m[2]
	}
	return m[1]
}

// stripBalanced removes open...close spans, honoring nesting
func stripBalanced(text, open, close string) string {
	if !strings.Contains(text, open) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	depth := 0
	for i := 0; i < len(text); {
		switch {
		case strings.HasPrefix(text[i:], open):
			depth++
			i += len(open)
		case depth > 0 && strings.HasPrefix(text[i:], close):
			depth--
			i += len(close)
		default:
			if depth == 0 {
				b.WriteByte(text[i])
			}
			i++
		}
	}
	return b.String()
}
