package adapters

// GenericAdapter is the fallback for domains without a section delimiter; it keeps the whole text
type GenericAdapter struct {
	BaseAdapter
}

// NewGenericAdapter creates a new generic adapter
func NewGenericAdapter() *GenericAdapter {
	return &GenericAdapter{}
}

// Name returns the adapter name
func (a *GenericAdapter) Name() string {
	return "generic"
}

// CanHandle accepts any domain
func (a *GenericAdapter) CanHandle(domain string) bool {
	return true
}
