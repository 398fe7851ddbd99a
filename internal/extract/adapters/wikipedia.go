package adapters

import (
	"github.com/ppiankov/wikiedits/internal/model"
)

// WikipediaAdapter cleans encyclopedia articles. Prose ends at the "See also" heading.
type WikipediaAdapter struct {
	BaseAdapter
}

// NewWikipediaAdapter creates a new Wikipedia adapter
func NewWikipediaAdapter() *WikipediaAdapter {
	settings, _ := model.LookupDomain(model.DomainWikipedia)
	return &WikipediaAdapter{BaseAdapter{Delimiter: settings.SectionDelimiter}}
}

// Name returns the adapter name
func (a *WikipediaAdapter) Name() string {
	return model.DomainWikipedia
}

// CanHandle checks if the domain is wikipedia
func (a *WikipediaAdapter) CanHandle(domain string) bool {
	return domain == model.DomainWikipedia
}

// WikinewsAdapter cleans news articles. Prose ends at the sources list.
type WikinewsAdapter struct {
	BaseAdapter
}

// NewWikinewsAdapter creates a new Wikinews adapter
func NewWikinewsAdapter() *WikinewsAdapter {
	settings, _ := model.LookupDomain(model.DomainWikinews)
	return &WikinewsAdapter{BaseAdapter{Delimiter: settings.SectionDelimiter}}
}

// Name returns the adapter name
func (a *WikinewsAdapter) Name() string {
	return model.DomainWikinews
}

// CanHandle checks if the domain is wikinews
func (a *WikinewsAdapter) CanHandle(domain string) bool {
	return domain == model.DomainWikinews
}
