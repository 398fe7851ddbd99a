package model

import (
	"sort"
	"time"
)

const (
	DomainWikipedia = "wikipedia"
	DomainWikinews  = "wikinews"

	// MainCategoryAll is the only main category of wikinews
	MainCategoryAll = "all"

	// URLPlaceholder replaces every link in cleaned text
	URLPlaceholder = "URL"
)

// DomainSettings describes how one wiki is crawled and cleaned
type DomainSettings struct {
	Name string
	// APIURL is the MediaWiki action API endpoint
	APIURL string
	// SectionDelimiter marks where article prose ends; everything from it on is cut
	SectionDelimiter string
	// SortByTimestamp adds gcmsort=timestamp&gcmdir=desc to membership queries
	SortByTimestamp bool
}

var domains = map[string]DomainSettings{
	DomainWikipedia: {
		Name:             DomainWikipedia,
		APIURL:           "https://en.wikipedia.org/w/api.php",
		SectionDelimiter: "\n See also",
		SortByTimestamp:  true,
	},
	DomainWikinews: {
		Name:             DomainWikinews,
		APIURL:           "https://en.wikinews.org/w/api.php",
		SectionDelimiter: "Sources",
	},
}

// LookupDomain returns the settings of a known domain
func LookupDomain(name string) (DomainSettings, bool) {
	d, ok := domains[name]
	return d, ok
}

// Domains lists the known domain names
func Domains() []string {
	out := make([]string, 0, len(domains))
	for k := range domains {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// WikinewsCategories are crawled for every wikinews run
var WikinewsCategories = []string{"Published", "Original_reporting"}

// WikipediaCategories maps a main category to the wikipedia categories crawled for it
var WikipediaCategories = map[string][]string{
	"philosophy": {"Philosophy", "Ethics", "Epistemology", "Logic", "Metaphysics", "Philosophy_of_mind"},
	"history":    {"History", "Military_history", "History_of_science", "Ancient_history", "Modern_history"},
	"science":    {"Physics", "Chemistry", "Biology", "Astronomy", "Earth_sciences"},
	"technology": {"Technology", "Computing", "Engineering", "Software", "Electronics"},
	"society":    {"Society", "Politics", "Economics", "Law", "Education"},
	"arts":       {"Arts", "Literature", "Music", "Visual_arts", "Film"},
	"geography":  {"Geography", "Countries", "Cities", "Rivers", "Mountains"},
	"health":     {"Health", "Medicine", "Diseases_and_disorders", "Nutrition", "Public_health"},
}

// WikipediaMainCategories lists the valid main categories in a stable order
func WikipediaMainCategories() []string {
	out := make([]string, 0, len(WikipediaCategories))
	for k := range WikipediaCategories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CategoriesFor resolves the categories crawled for a domain and main category
func CategoriesFor(domain, mainCategory string) ([]string, bool) {
	switch domain {
	case DomainWikinews:
		return WikinewsCategories, true
	case DomainWikipedia:
		cats, ok := WikipediaCategories[mainCategory]
		return cats, ok
	default:
		return nil, false
	}
}

// TimeWindow returns [now - yearsBack years, now]
func TimeWindow(now time.Time, yearsBack int) (time.Time, time.Time) {
	return now.AddDate(-yearsBack, 0, 0), now
}
