package models

import "encoding/json"

// Content blocker action types
const (
	ActionBlock              = "block"
	ActionBlockCookies       = "block-cookies"
	ActionCSSDisplayNone     = "css-display-none"
	ActionIgnorePreviousRule = "ignore-previous-rules"
)

// WebKit resource-type values. Request types from the engine side are mapped
// onto these by parser.MapResourceType.
const (
	ResourceDocument   = "document"
	ResourceImage      = "image"
	ResourceStyleSheet = "style-sheet"
	ResourceScript     = "script"
	ResourceFont       = "font"
	ResourceRaw        = "raw"
	ResourceSVG        = "svg-document"
	ResourceMedia      = "media"
	ResourcePopup      = "popup"
)

const (
	LoadFirstParty = "first-party"
	LoadThirdParty = "third-party"
)

// WebKitRule is one entry of a content-blocker JSON array
type WebKitRule struct {
	Trigger WebKitTrigger `json:"trigger"`
	Action  WebKitAction  `json:"action"`
}

type WebKitTrigger struct {
	URLFilter string `json:"url-filter"`
	// nil leaves WebKit's case-insensitive default
	URLFilterIsCaseSensitive *bool    `json:"url-filter-is-case-sensitive,omitempty"`
	ResourceType             []string `json:"resource-type,omitempty"`
	LoadType                 []string `json:"load-type,omitempty"`
	// if-domain and unless-domain are mutually exclusive in one trigger
	IfDomain     []string `json:"if-domain,omitempty"`
	UnlessDomain []string `json:"unless-domain,omitempty"`
}

type WebKitAction struct {
	Type     string `json:"type"`
	Selector string `json:"selector,omitempty"` // css-display-none only
}

// CbEquivalent is the content blocking form of a single filter.
// Most filters map to one rule; a network filter that targets documents
// together with other resource types is split into two.
type CbEquivalent struct {
	Rules []WebKitRule
}

// IsSplitDocument reports whether the filter had to be split in two rules
func (e CbEquivalent) IsSplitDocument() bool {
	return len(e.Rules) == 2
}

// JSON renders the rules as a content-blocker array, the form Safari loads
func (e CbEquivalent) JSON() ([]byte, error) {
	return json.MarshalIndent(e.Rules, "", "  ")
}
