package engine

import (
	"github.com/bnema/adblock-dashboard/internal/converter"
	"github.com/bnema/adblock-dashboard/internal/models"
	"github.com/bnema/adblock-dashboard/internal/parser"
)

// Adapter exposes the engine as the stateless capability set the dashboard
// coordinator consumes. It holds no engine of its own; every call operates on
// the handle passed in.
type Adapter struct {
	MaxRules int
}

// NewAdapter returns an adapter with the given rule limit
func NewAdapter(maxRules int) Adapter {
	return Adapter{MaxRules: maxRules}
}

// NewEngine returns the empty default engine
func (Adapter) NewEngine() *Engine {
	return New()
}

// ParseFilter parses a single filter line
func (Adapter) ParseFilter(text string) (models.Filter, error) {
	return parser.ParseFilter(text)
}

// ConvertToContentBlocking converts a parsed filter to WebKit rules
func (Adapter) ConvertToContentBlocking(f models.Filter) (models.CbEquivalent, error) {
	return converter.ToContentBlocking(f)
}

// BuildFilterSet parses list text and returns its metadata alongside
func (Adapter) BuildFilterSet(listText string) (*FilterSet, models.ListMetadata, error) {
	set, err := NewFilterSet(listText)
	if err != nil {
		return nil, models.ListMetadata{}, err
	}
	return set, set.Metadata, nil
}

// CompileEngine compiles a filter set within the adapter's rule limit
func (a Adapter) CompileEngine(set *FilterSet) (*Engine, error) {
	return FromFilterSet(set, a.MaxRules)
}

// ApplyResources installs resources on the engine in place
func (Adapter) ApplyResources(e *Engine, resources []models.Resource) {
	e.UseResources(resources)
}

// MatchNetworkRequest builds a request and checks it against the engine
func (Adapter) MatchNetworkRequest(e *Engine, url, sourceURL, requestType string) (BlockerResult, error) {
	req, err := NewRequest(url, sourceURL, requestType)
	if err != nil {
		return BlockerResult{}, err
	}
	return e.CheckNetworkRequest(req), nil
}

// CosmeticResourcesFor returns page resources for url
func (Adapter) CosmeticResourcesFor(e *Engine, url string) CosmeticResources {
	return e.URLCosmeticResources(url)
}

// SerializeEngine encodes the engine
func (Adapter) SerializeEngine(e *Engine, format Format) ([]byte, error) {
	return e.Serialize(format)
}
