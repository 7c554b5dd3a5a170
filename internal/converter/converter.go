package converter

import (
	"errors"
	"strings"

	"github.com/bnema/adblock-dashboard/internal/models"
)

// Converter converts parsed filters to WebKit rules
type Converter struct {
	stats Stats
}

// Stats tracks conversion statistics
type Stats struct {
	Converted   int
	Skipped     int
	SkipReasons map[string]int
}

// Skip reason constants
const (
	SkipInvalidRegex      = "invalid-regex"
	SkipCosmeticException = "cosmetic-exception"
	SkipEmptySelector     = "empty-selector"
	SkipScriptlet         = "scriptlet"
	SkipRedirect          = "redirect"
	SkipBadFilter         = "badfilter"
	SkipNotConvertible    = "not-convertible"
)

// CbError explains why a filter has no content blocking equivalent
type CbError struct {
	Reason string
	Issues []WebKitRegexIssue
}

func (e *CbError) Error() string {
	if len(e.Issues) == 0 {
		return "no content blocking equivalent: " + e.Reason
	}
	return "no content blocking equivalent: " + e.Reason + " (" + DescribeIssues(e.Issues) + ")"
}

// New creates a new converter
func New() *Converter {
	return &Converter{
		stats: Stats{
			SkipReasons: make(map[string]int),
		},
	}
}

// skip records a skipped filter with reason
func (c *Converter) skip(reason string) {
	c.stats.Skipped++
	c.stats.SkipReasons[reason]++
}

// Stats returns conversion statistics
func (c *Converter) Stats() Stats {
	return c.stats
}

// Convert transforms parsed filters into WebKit rules
func (c *Converter) Convert(filters []models.Filter) []models.WebKitRule {
	var rules []models.WebKitRule

	for _, f := range filters {
		eq, err := ToContentBlocking(f)
		if err != nil {
			var cbErr *CbError
			if errors.As(err, &cbErr) {
				c.skip(cbErr.Reason)
			}
			continue
		}

		c.stats.Converted++
		rules = append(rules, eq.Rules...)
	}

	return rules
}

// ToContentBlocking converts a single parsed filter to its content blocking form
func ToContentBlocking(f models.Filter) (models.CbEquivalent, error) {
	switch f.Type {
	case models.FilterTypeNetwork:
		return convertNetwork(f, false)
	case models.FilterTypeException:
		return convertNetwork(f, true)
	case models.FilterTypeCosmetic:
		return convertCosmetic(f, false)
	case models.FilterTypeCosmeticException:
		return convertCosmetic(f, true)
	case models.FilterTypeScriptlet:
		return models.CbEquivalent{}, &CbError{Reason: SkipScriptlet}
	}
	return models.CbEquivalent{}, &CbError{Reason: SkipNotConvertible}
}

// convertNetwork converts a network filter to one or two WebKit rules
func convertNetwork(f models.Filter, isException bool) (models.CbEquivalent, error) {
	if f.Options.Redirect != "" {
		return models.CbEquivalent{}, &CbError{Reason: SkipRedirect}
	}
	if f.Options.BadFilter {
		return models.CbEquivalent{}, &CbError{Reason: SkipBadFilter}
	}

	regex := PatternToRegex(f.Pattern)

	// Validate the regex is WebKit-compatible
	if !ValidateRegex(regex) {
		return models.CbEquivalent{}, &CbError{
			Reason: SkipInvalidRegex,
			Issues: CheckWebKitCompatibility(regex),
		}
	}

	rule := models.WebKitRule{
		Trigger: models.WebKitTrigger{
			URLFilter: regex,
		},
		Action: models.WebKitAction{
			Type: models.ActionBlock,
		},
	}

	// Exception rules use ignore-previous-rules
	if isException {
		rule.Action.Type = models.ActionIgnorePreviousRule
	}

	if f.Options.MatchCase {
		t := true
		rule.Trigger.URLFilterIsCaseSensitive = &t
	}

	if f.Options.ThirdParty != nil {
		if *f.Options.ThirdParty {
			rule.Trigger.LoadType = []string{models.LoadThirdParty}
		} else {
			rule.Trigger.LoadType = []string{models.LoadFirstParty}
		}
	}

	if len(f.Options.Domains) > 0 {
		rule.Trigger.IfDomain = normalizeDomains(f.Options.Domains)
	}
	if len(f.Options.ExcludeDomains) > 0 {
		rule.Trigger.UnlessDomain = normalizeDomains(f.Options.ExcludeDomains)
	}

	// WebKit evaluates document loads separately from subresources, so a
	// filter covering both is emitted as two rules
	var others []string
	hasDocument := false
	for _, rt := range f.Options.ResourceTypes {
		if rt == models.ResourceDocument {
			hasDocument = true
			continue
		}
		others = append(others, rt)
	}

	if !hasDocument || len(others) == 0 {
		if len(f.Options.ResourceTypes) > 0 {
			rule.Trigger.ResourceType = f.Options.ResourceTypes
		}
		return models.CbEquivalent{Rules: []models.WebKitRule{rule}}, nil
	}

	doc := cloneRule(rule)
	doc.Trigger.ResourceType = []string{models.ResourceDocument}
	rule.Trigger.ResourceType = others
	return models.CbEquivalent{Rules: []models.WebKitRule{doc, rule}}, nil
}

// convertCosmetic converts a cosmetic filter to a WebKit rule
func convertCosmetic(f models.Filter, isException bool) (models.CbEquivalent, error) {
	if f.Selector == "" {
		return models.CbEquivalent{}, &CbError{Reason: SkipEmptySelector}
	}

	// Exception cosmetic filters - WebKit doesn't have a direct equivalent
	if isException {
		return models.CbEquivalent{}, &CbError{Reason: SkipCosmeticException}
	}

	rule := models.WebKitRule{
		Trigger: models.WebKitTrigger{
			URLFilter: ".*",
		},
		Action: models.WebKitAction{
			Type:     models.ActionCSSDisplayNone,
			Selector: f.Selector,
		},
	}

	// Domain-specific cosmetic filters
	if len(f.Domains) > 0 {
		var include, exclude []string
		for _, d := range f.Domains {
			if strings.HasPrefix(d, "~") {
				exclude = append(exclude, normalizeDomain(d[1:]))
			} else {
				include = append(include, normalizeDomain(d))
			}
		}
		// if-domain and unless-domain are mutually exclusive in WebKit
		if len(include) > 0 && len(exclude) > 0 {
			return models.CbEquivalent{}, &CbError{Reason: SkipNotConvertible}
		}
		if len(include) > 0 {
			rule.Trigger.IfDomain = include
		}
		if len(exclude) > 0 {
			rule.Trigger.UnlessDomain = exclude
		}
	}

	return models.CbEquivalent{Rules: []models.WebKitRule{rule}}, nil
}

func cloneRule(r models.WebKitRule) models.WebKitRule {
	c := r
	c.Trigger.LoadType = append([]string(nil), r.Trigger.LoadType...)
	c.Trigger.IfDomain = append([]string(nil), r.Trigger.IfDomain...)
	c.Trigger.UnlessDomain = append([]string(nil), r.Trigger.UnlessDomain...)
	if len(c.Trigger.LoadType) == 0 {
		c.Trigger.LoadType = nil
	}
	if len(c.Trigger.IfDomain) == 0 {
		c.Trigger.IfDomain = nil
	}
	if len(c.Trigger.UnlessDomain) == 0 {
		c.Trigger.UnlessDomain = nil
	}
	return c
}

// normalizeDomains adds * prefix for wildcard matching
func normalizeDomains(domains []string) []string {
	result := make([]string, len(domains))
	for i, d := range domains {
		result[i] = normalizeDomain(d)
	}
	return result
}

// normalizeDomain ensures domain has proper format for WebKit
func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	// WebKit expects domains with * prefix for subdomains
	if !strings.HasPrefix(d, "*") && !strings.HasPrefix(d, ".") {
		return "*" + d
	}
	return d
}
