package models

import "strings"

// FilterType represents the type of filter parsed
type FilterType int

const (
	FilterTypeComment FilterType = iota
	FilterTypeNetwork
	FilterTypeException
	FilterTypeCosmetic
	FilterTypeCosmeticException
	FilterTypeScriptlet
	FilterTypeUnsupported // HTML filters, procedural
)

// String returns a short human readable name for the filter type
func (t FilterType) String() string {
	switch t {
	case FilterTypeComment:
		return "comment"
	case FilterTypeNetwork:
		return "network"
	case FilterTypeException:
		return "network-exception"
	case FilterTypeCosmetic:
		return "cosmetic"
	case FilterTypeCosmeticException:
		return "cosmetic-exception"
	case FilterTypeScriptlet:
		return "scriptlet"
	default:
		return "unsupported"
	}
}

// Filter represents a parsed ABP/uBlock filter
type Filter struct {
	Type     FilterType
	Raw      string        // Original filter line
	Pattern  string        // URL pattern for network filters
	Selector string        // CSS selector for cosmetic filters
	Domains  []string      // Domains this filter applies to (cosmetic, ~ prefixed = excluded)
	Options  FilterOptions // Network filter options
	Script   *Scriptlet    // set for FilterTypeScriptlet
}

// IsNetwork reports whether the filter is a network (request) filter
func (f Filter) IsNetwork() bool {
	return f.Type == FilterTypeNetwork || f.Type == FilterTypeException
}

// IsCosmetic reports whether the filter acts on page content
func (f Filter) IsCosmetic() bool {
	return f.Type == FilterTypeCosmetic || f.Type == FilterTypeCosmeticException || f.Type == FilterTypeScriptlet
}

// IsRegex reports whether the network pattern is a /regex/ literal
func (f Filter) IsRegex() bool {
	p := strings.TrimPrefix(strings.TrimSuffix(f.Pattern, "|"), "|")
	return len(p) > 2 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/")
}

// Scriptlet is a ##+js(name, args...) injection
type Scriptlet struct {
	Name string
	Args []string
}

// FilterOptions contains parsed network filter options
type FilterOptions struct {
	ThirdParty     *bool    // nil = any, true = 3p only, false = 1p only
	ResourceTypes  []string // script, image, stylesheet, etc.
	Domains        []string // domain= values (apply to these domains)
	ExcludeDomains []string // ~domain values (exclude these domains)
	MatchCase      bool     // case-sensitive matching
	Important      bool     // override exceptions
	Redirect       string   // redirect= resource name
	BadFilter      bool     // disables the matching filter
}

// IsEmpty returns true if no options are set
func (o FilterOptions) IsEmpty() bool {
	return o.ThirdParty == nil &&
		len(o.ResourceTypes) == 0 &&
		len(o.Domains) == 0 &&
		len(o.ExcludeDomains) == 0 &&
		!o.MatchCase &&
		!o.Important &&
		o.Redirect == "" &&
		!o.BadFilter
}
