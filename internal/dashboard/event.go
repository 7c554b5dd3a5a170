package dashboard

import "github.com/bnema/adblock-dashboard/internal/engine"

// Event is one discrete user or timer input. The set is closed: only the
// types in this file implement it.
type Event interface {
	// Kind names the event for logs and metrics
	Kind() string
	sealed()
}

// FilterTextChanged carries the new single-filter input
type FilterTextChanged struct{ Text string }

// FilterListTextChanged carries the new filter list text
type FilterListTextChanged struct{ Text string }

// DebounceElapsed is posted by the rebuild timer. Generation identifies the
// timer that fired; only the current pending generation triggers a rebuild.
type DebounceElapsed struct{ Generation uint64 }

// NetworkURLChanged carries the request URL of the network query
type NetworkURLChanged struct{ Text string }

// NetworkSourceChanged carries the source URL of the network query
type NetworkSourceChanged struct{ Text string }

// NetworkTypeChanged carries the request type of the network query
type NetworkTypeChanged struct{ Text string }

// CosmeticURLChanged carries the page URL of the cosmetic query
type CosmeticURLChanged struct{ Text string }

// ResourcesLoaded carries the raw text of a resources.json file
type ResourcesLoaded struct{ JSON string }

// ExportRequested asks for the compiled engine to be serialized and saved
type ExportRequested struct{}

// ExportFormatChanged switches the persisted export format
type ExportFormatChanged struct{ Format engine.Format }

func (FilterTextChanged) Kind() string     { return "filter_text_changed" }
func (FilterListTextChanged) Kind() string { return "filter_list_text_changed" }
func (DebounceElapsed) Kind() string       { return "debounce_elapsed" }
func (NetworkURLChanged) Kind() string     { return "network_url_changed" }
func (NetworkSourceChanged) Kind() string  { return "network_source_changed" }
func (NetworkTypeChanged) Kind() string    { return "network_type_changed" }
func (CosmeticURLChanged) Kind() string    { return "cosmetic_url_changed" }
func (ResourcesLoaded) Kind() string       { return "resources_loaded" }
func (ExportRequested) Kind() string       { return "export_requested" }
func (ExportFormatChanged) Kind() string   { return "export_format_changed" }

func (FilterTextChanged) sealed()     {}
func (FilterListTextChanged) sealed() {}
func (DebounceElapsed) sealed()       {}
func (NetworkURLChanged) sealed()     {}
func (NetworkSourceChanged) sealed()  {}
func (NetworkTypeChanged) sealed()    {}
func (CosmeticURLChanged) sealed()    {}
func (ResourcesLoaded) sealed()       {}
func (ExportRequested) sealed()       {}
func (ExportFormatChanged) sealed()   {}
