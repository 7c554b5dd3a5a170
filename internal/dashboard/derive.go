package dashboard

import (
	"github.com/bnema/adblock-dashboard/internal/engine"
)

// The functions below recompute derived fields. They read their inputs and
// the engine, and return fresh values; they never touch State themselves.

// deriveFilter parses the single-filter input and, when that succeeds,
// converts the result, so both fields always come from the same text
func deriveFilter(a Adapter, text string) (FilterResult, *CbResult) {
	f, err := a.ParseFilter(text)
	if err != nil {
		return FilterResult{Err: err}, nil
	}
	eq, cbErr := a.ConvertToContentBlocking(f)
	return FilterResult{Filter: f}, &CbResult{Equivalent: eq, Err: cbErr}
}

// deriveNetwork is nil exactly when all three inputs are empty
func deriveNetwork(a Adapter, e *engine.Engine, q NetworkQuery) *NetworkResult {
	if q.IsEmpty() {
		return nil
	}
	res, err := a.MatchNetworkRequest(e, q.URL, q.SourceURL, q.RequestType)
	if err != nil {
		return &NetworkResult{Err: err}
	}
	return &NetworkResult{Blocker: res}
}

// deriveCosmetic always yields a result, even for an empty URL
func deriveCosmetic(a Adapter, e *engine.Engine, url string) *engine.CosmeticResources {
	res := a.CosmeticResourcesFor(e, url)
	return &res
}
