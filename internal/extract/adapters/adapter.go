package adapters

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/wikiedits/internal/model"
)

// Adapter defines the interface for domain-specific text cleaners
type Adapter interface {
	// Name returns the adapter name
	Name() string

	// CanHandle checks if this adapter cleans text of the given domain
	CanHandle(domain string) bool

	// Clean reduces one revision's text to the prose that is diffed
	Clean(text string) string
}

// Registry manages domain adapters
type Registry struct {
	adapters []Adapter
	generic  Adapter
}

// NewRegistry creates a new adapter registry
func NewRegistry() *Registry {
	registry := &Registry{
		adapters: make([]Adapter, 0),
	}

	// Register built-in adapters
	registry.Register(NewWikipediaAdapter())
	registry.Register(NewWikinewsAdapter())

	// Set generic adapter as fallback
	registry.generic = NewGenericAdapter()

	return registry
}

// Register registers a new adapter
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// FindAdapter finds the adapter for the given domain
func (r *Registry) FindAdapter(domain string) Adapter {
	for _, adapter := range r.adapters {
		if adapter.CanHandle(domain) {
			return adapter
		}
	}
	return r.generic
}

// CleanText cleans text with the adapter registered for domain
func CleanText(text, domain string) string {
	return defaultRegistry.FindAdapter(domain).Clean(text)
}

var defaultRegistry = NewRegistry()

var (
	reRightPx    = regexp.MustCompile(`right\|+[\d.]+px\|`)
	reLeftPx     = regexp.MustCompile(`left\|+[\d.]+px\|`)
	reUpright    = regexp.MustCompile(`upright=+[\d.]\|`)
	reURL        = regexp.MustCompile(`\S*https?:\S*`)
	brokenScheme = strings.NewReplacer("https : //", "https://", "http : //", "https://")
)

// BaseAdapter provides the cleaning steps shared by every domain
type BaseAdapter struct {
	// Delimiter marks where prose ends; empty keeps the whole text
	Delimiter string
}

// Clean cuts at the delimiter and scrubs image options, anchors and links
func (b *BaseAdapter) Clean(text string) string {
	text = strings.Trim(b.Cut(text), "[ \n]")
	text = StripImageOptions(text)
	text = FixURLScheme(text)
	text = StripAnchors(text)
	text = ReplaceURLs(text)
	return strings.TrimSpace(strings.Trim(text, "\n"))
}

// Cut returns text up to the first delimiter. Without a delimiter the whole text is kept.
func (b *BaseAdapter) Cut(text string) string {
	if b.Delimiter == "" {
		return text
	}
	if i := strings.Index(text, b.Delimiter); i >= 0 {
		return text[:i]
	}
	return text
}

// StripImageOptions drops image layout options that survive wikitext stripping
func StripImageOptions(text string) string {
	text = strings.ReplaceAll(text, "thumb|", "")
	text = reRightPx.ReplaceAllString(text, "")
	text = reLeftPx.ReplaceAllString(text, "")
	text = reUpright.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "left|", "")
	return strings.ReplaceAll(text, "right|", "")
}

// FixURLScheme rejoins schemes split by tokenization, e.g. "http : //"
func FixURLScheme(text string) string {
	return brokenScheme.Replace(text)
}

// ReplaceURLs replaces every whitespace-delimited run containing a scheme with the URL placeholder
func ReplaceURLs(text string) string {
	return reURL.ReplaceAllString(text, model.URLPlaceholder)
}

// StripAnchors removes <a> start and end tags, keeping the link text and everything else verbatim
func StripAnchors(text string) string {
	if !strings.Contains(text, "<a") && !strings.Contains(text, "</a") {
		return text
	}

	var out bytes.Buffer
	z := html.NewTokenizer(strings.NewReader(text))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				return text
			}
			return out.String()
		}
		switch tt {
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			if name, _ := z.TagName(); string(name) == "a" {
				continue
			}
		}
		out.Write(z.Raw())
	}
}
