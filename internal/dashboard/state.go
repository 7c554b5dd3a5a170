package dashboard

import (
	"errors"

	"github.com/bnema/adblock-dashboard/internal/engine"
	"github.com/bnema/adblock-dashboard/internal/models"
	"github.com/bnema/adblock-dashboard/internal/parser"
)

// ErrRebuildPending stands in for the network result while the filter list
// has changed and the engine has not been rebuilt yet
var ErrRebuildPending = errors.New("filter list changed, waiting for engine rebuild")

// FilterResult is the parse outcome of the single-filter input. Exactly one
// of Filter and Err is meaningful.
type FilterResult struct {
	Filter models.Filter
	Err    error
}

// CbResult is the content blocking conversion outcome
type CbResult struct {
	Equivalent models.CbEquivalent
	Err        error
}

// NetworkResult is the engine decision for the network query, or the reason
// the query could not be built
type NetworkResult struct {
	Blocker engine.BlockerResult
	Err     error
}

// NetworkQuery holds the three network query inputs
type NetworkQuery struct {
	URL         string
	SourceURL   string
	RequestType string
}

// IsEmpty reports whether all three inputs are empty
func (q NetworkQuery) IsEmpty() bool {
	return q.URL == "" && q.SourceURL == "" && q.RequestType == ""
}

// State is the application state. Store owns the only mutable copy; every
// other component reads snapshots returned by Store.State.
type State struct {
	FilterText      string
	ParsedFilter    FilterResult
	ContentBlocking *CbResult

	FilterListText string
	RebuildPending bool
	RebuildError   error
	ListMetadata   models.ListMetadata
	ListStats      parser.Stats
	EngineStats    engine.Stats

	Resources      []models.Resource
	ResourcesError error

	Network       NetworkQuery
	NetworkResult *NetworkResult

	CosmeticURL    string
	CosmeticResult *engine.CosmeticResources

	ExportFormat engine.Format

	engine *engine.Engine
}
