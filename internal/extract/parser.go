package extract

import (
	"strings"

	perr "github.com/ppiankov/wikiedits/internal/errors"
	"github.com/ppiankov/wikiedits/internal/model"
)

const maxGroupDepth = 256

// ParseCommands linearizes canonical markup into text, delete and add tokens.
// Text is classified by the nearest enclosing \DIFdel or \DIFadd. Other commands vanish
// but the content of their brace arguments is kept in place.
func ParseCommands(s string) ([]model.DiffToken, error) {
	p := &cmdParser{src: s}
	if err := p.sequence(model.TokenText, 0, false); err != nil {
		return nil, err
	}
	return p.toks, nil
}

type cmdParser struct {
	src  string
	pos  int
	toks []model.DiffToken
	// split stops the next marker text from merging into the previous marker token
	split bool
}

func (p *cmdParser) malformed(format string, a ...any) error {
	return perr.Wrapf(ErrMalformedMarkup, perr.ErrorCodeMalformed, format, a...)
}

func (p *cmdParser) emit(kind model.TokenKind, text string) {
	if text == "" {
		return
	}
	if n := len(p.toks); n > 0 && p.toks[n-1].Kind == kind && (kind == model.TokenText || !p.split) {
		p.toks[n-1].Text += text
		return
	}
	p.toks = append(p.toks, model.DiffToken{Kind: kind, Text: text})
	p.split = false
}

// sequence consumes input until end of input, or until the closing brace when inGroup is set
func (p *cmdParser) sequence(kind model.TokenKind, depth int, inGroup bool) error {
	if depth > maxGroupDepth {
		return p.malformed("groups nested deeper than %d at offset %d", maxGroupDepth, p.pos)
	}

	for p.pos < len(p.src) {
		switch c := p.src[p.pos]; c {
		case '}':
			if !inGroup {
				return p.malformed("unexpected '}' at offset %d", p.pos)
			}
			p.pos++
			return nil
		case '{':
			p.pos++
			if err := p.sequence(kind, depth+1, true); err != nil {
				return err
			}
		case '\\':
			if err := p.command(kind, depth); err != nil {
				return err
			}
		default:
			end := strings.IndexAny(p.src[p.pos:], `{}\`)
			if end < 0 {
				end = len(p.src) - p.pos
			}
			p.emit(kind, p.src[p.pos:p.pos+end])
			p.pos += end
		}
	}

	if inGroup {
		return p.malformed("unterminated group at end of input")
	}
	return nil
}

func (p *cmdParser) command(kind model.TokenKind, depth int) error {
	p.pos++ // backslash
	if p.pos >= len(p.src) {
		return nil
	}

	if !isLetter(p.src[p.pos]) {
		c := p.src[p.pos]
		p.pos++
		if c == '\\' {
			p.emit(kind, " ")
		} else {
			p.emit(kind, string(c))
		}
		return nil
	}

	start := p.pos
	for p.pos < len(p.src) && isLetter(p.src[p.pos]) {
		p.pos++
	}
	name := p.src[start:p.pos]
	if p.pos < len(p.src) && p.src[p.pos] == '*' {
		p.pos++
	}
	p.skipOptional()

	switch name {
	case "DIFdel", "DIFdelFL":
		return p.marker(model.TokenDel, depth)
	case "DIFadd", "DIFaddFL":
		return p.marker(model.TokenAdd, depth)
	case "PAR":
		p.emit(model.TokenText, "\n\n")
		return nil
	case "begin", "end":
		if p.peek('{') {
			return p.discardGroup(depth)
		}
		return nil
	}

	if !p.peek('{') {
		p.emit(kind, " ")
		return nil
	}
	for p.peek('{') {
		p.pos++
		if err := p.sequence(kind, depth+1, true); err != nil {
			return err
		}
	}
	return nil
}

// marker parses the argument of \DIFdel or \DIFadd as one token of the given kind.
// An empty argument still yields an empty token so the edit is counted.
func (p *cmdParser) marker(kind model.TokenKind, depth int) error {
	if !p.peek('{') {
		return p.malformed("marker without argument at offset %d", p.pos)
	}
	p.pos++

	p.split = true
	before := len(p.toks)
	if err := p.sequence(kind, depth+1, true); err != nil {
		return err
	}
	if len(p.toks) == before {
		p.toks = append(p.toks, model.DiffToken{Kind: kind})
	}
	p.split = true
	return nil
}

func (p *cmdParser) discardGroup(depth int) error {
	saved := p.toks
	p.toks = nil
	p.pos++
	err := p.sequence(model.TokenText, depth+1, true)
	p.toks = saved
	return err
}

// skipOptional skips a [...] argument when it closes
func (p *cmdParser) skipOptional() {
	if !p.peek('[') {
		return
	}
	if end := strings.IndexByte(p.src[p.pos:], ']'); end >= 0 {
		p.pos += end + 1
	}
}

func (p *cmdParser) peek(c byte) bool {
	return p.pos < len(p.src) && p.src[p.pos] == c
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
