// Package engine is the rule-matching engine behind the dashboard: it turns
// a parsed filter list into compiled network and cosmetic rules and answers
// request and page queries against them.
package engine

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/bnema/adblock-dashboard/internal/converter"
	"github.com/bnema/adblock-dashboard/internal/models"
	"github.com/bnema/adblock-dashboard/internal/parser"
)

// DefaultMaxRules mirrors WebKit's per content blocker limit
const DefaultMaxRules = 50000

// ErrTooManyRules is returned when a filter set exceeds the engine's rule limit
var ErrTooManyRules = errors.New("too many rules")

// FilterSet is the parsed, not yet compiled, form of a filter list
type FilterSet struct {
	Filters  []models.Filter
	Metadata models.ListMetadata
	Stats    parser.Stats
}

// NewFilterSet parses list text into a filter set
func NewFilterSet(listText string) (*FilterSet, error) {
	p := parser.New()
	filters, err := p.Parse(strings.NewReader(listText))
	if err != nil {
		return nil, fmt.Errorf("parse filter list: %w", err)
	}
	return &FilterSet{
		Filters:  filters,
		Metadata: p.Metadata(),
		Stats:    p.Stats(),
	}, nil
}

type networkRule struct {
	filter models.Filter
	re     *regexp.Regexp
}

// Engine holds compiled rules. The zero value is not usable; use New.
type Engine struct {
	filters            []models.Filter
	metadata           models.ListMetadata
	contentBlocking    []models.WebKitRule
	conversion         converter.Stats
	blocking           []networkRule
	exceptions         []networkRule
	cosmetic           []models.Filter
	cosmeticExceptions []models.Filter
	scriptlets         []models.Filter

	resources     []models.Resource
	resourceIndex map[string]models.Resource
}

// Stats summarizes what an engine contains
type Stats struct {
	Filters    int
	Blocking   int
	Exceptions int
	Cosmetic   int
	Scriptlets int
	Resources  int

	// ContentBlocking counts the deduplicated rules of the json export.
	// Unconvertible counts active filters without an equivalent, by reason.
	ContentBlocking int
	Unconvertible   map[string]int
}

// New returns an empty engine that matches nothing
func New() *Engine {
	return &Engine{resourceIndex: map[string]models.Resource{}}
}

// FromFilterSet compiles a filter set. maxRules <= 0 means DefaultMaxRules.
// Compilation is all or nothing: on error no engine is returned.
func FromFilterSet(set *FilterSet, maxRules int) (*Engine, error) {
	if maxRules <= 0 {
		maxRules = DefaultMaxRules
	}
	if set == nil {
		return New(), nil
	}
	if len(set.Filters) > maxRules {
		return nil, fmt.Errorf("%w: %d filters exceed the limit of %d", ErrTooManyRules, len(set.Filters), maxRules)
	}

	disabled := badFilterTargets(set.Filters)

	e := New()
	e.filters = set.Filters
	e.metadata = set.Metadata
	var active []models.Filter
	for _, f := range set.Filters {
		if f.Options.BadFilter || disabled[f.Raw] {
			continue
		}
		active = append(active, f)
		switch f.Type {
		case models.FilterTypeNetwork, models.FilterTypeException:
			re, err := compilePattern(f)
			if err != nil {
				return nil, fmt.Errorf("compile %q: %w", f.Raw, err)
			}
			rule := networkRule{filter: f, re: re}
			if f.Type == models.FilterTypeException {
				e.exceptions = append(e.exceptions, rule)
			} else {
				e.blocking = append(e.blocking, rule)
			}
		case models.FilterTypeCosmetic:
			e.cosmetic = append(e.cosmetic, f)
		case models.FilterTypeCosmeticException:
			e.cosmeticExceptions = append(e.cosmeticExceptions, f)
		case models.FilterTypeScriptlet:
			e.scriptlets = append(e.scriptlets, f)
		}
	}

	// the json export must block exactly what the engine blocks
	c := converter.New()
	e.contentBlocking = converter.Deduplicate(c.Convert(active))
	e.conversion = c.Stats()
	return e, nil
}

// badFilterTargets returns the raw lines disabled by $badfilter filters
func badFilterTargets(filters []models.Filter) map[string]bool {
	targets := make(map[string]bool)
	for _, f := range filters {
		if !f.Options.BadFilter {
			continue
		}
		idx := strings.LastIndex(f.Raw, "$")
		if idx == -1 {
			continue
		}
		var kept []string
		for _, opt := range strings.Split(f.Raw[idx+1:], ",") {
			if strings.TrimSpace(opt) != "badfilter" {
				kept = append(kept, opt)
			}
		}
		target := f.Raw[:idx]
		if len(kept) > 0 {
			target += "$" + strings.Join(kept, ",")
		}
		targets[target] = true
	}
	return targets
}

// compilePattern builds the Go regexp used for matching. Patterns ending in
// the ^ separator also match when the URL ends right after the pattern.
func compilePattern(f models.Filter) (*regexp.Regexp, error) {
	expr := converter.PatternToRegex(f.Pattern)
	if !f.IsRegex() && converter.PatternEndsWithSeparator(f.Pattern) {
		expr = "(?:" + expr + ")|(?:" + converter.PatternToRegexEndAnchor(f.Pattern) + ")"
	}
	if !f.Options.MatchCase {
		expr = "(?i)" + expr
	}
	return regexp.Compile(expr)
}

// UseResources replaces the engine's redirect and scriptlet resources
func (e *Engine) UseResources(resources []models.Resource) {
	e.resources = append([]models.Resource(nil), resources...)
	e.resourceIndex = make(map[string]models.Resource, len(resources))
	for _, r := range resources {
		e.resourceIndex[r.Name] = r
		for _, alias := range r.Aliases {
			if _, ok := e.resourceIndex[alias]; !ok {
				e.resourceIndex[alias] = r
			}
		}
	}
}

// Resources returns the resources currently in use
func (e *Engine) Resources() []models.Resource {
	return e.resources
}

// Filters returns the filters the engine was compiled from
func (e *Engine) Filters() []models.Filter {
	return e.filters
}

// Metadata returns the header fields of the list the engine was compiled from
func (e *Engine) Metadata() models.ListMetadata {
	return e.metadata
}

// Stats returns rule counts
func (e *Engine) Stats() Stats {
	return Stats{
		Filters:         len(e.filters),
		Blocking:        len(e.blocking),
		Exceptions:      len(e.exceptions),
		Cosmetic:        len(e.cosmetic) + len(e.cosmeticExceptions),
		Scriptlets:      len(e.scriptlets),
		Resources:       len(e.resources),
		ContentBlocking: len(e.contentBlocking),
		Unconvertible:   e.conversion.SkipReasons,
	}
}

// BlockerResult is the engine's decision for a network request
type BlockerResult struct {
	Matched   bool
	Important bool
	Filter    string // blocking filter that matched, if any
	Exception string // exception filter that overrode it, if any
	Redirect  string // data: URL when a $redirect resource is loaded
}

// CheckNetworkRequest decides whether a request is blocked
func (e *Engine) CheckNetworkRequest(req Request) BlockerResult {
	var blocked *networkRule
	for i := range e.blocking {
		rule := &e.blocking[i]
		if !rule.matches(req) {
			continue
		}
		if rule.filter.Options.Important {
			blocked = rule
			break
		}
		if blocked == nil {
			blocked = rule
		}
	}
	if blocked == nil {
		return BlockerResult{}
	}

	result := BlockerResult{
		Matched:   true,
		Important: blocked.filter.Options.Important,
		Filter:    blocked.filter.Raw,
	}

	if !result.Important {
		for i := range e.exceptions {
			if e.exceptions[i].matches(req) {
				result.Matched = false
				result.Exception = e.exceptions[i].filter.Raw
				return result
			}
		}
	}

	if name := blocked.filter.Options.Redirect; name != "" {
		if r, ok := e.resourceIndex[name]; ok && !r.Kind.Template {
			result.Redirect = "data:" + r.Kind.Mime + ";base64," + r.Content
		}
	}
	return result
}

func (r *networkRule) matches(req Request) bool {
	opts := r.filter.Options

	if opts.ThirdParty != nil && *opts.ThirdParty != req.ThirdParty {
		return false
	}

	if len(opts.ResourceTypes) > 0 && !contains(opts.ResourceTypes, req.ResourceType) {
		return false
	}

	if len(opts.Domains) > 0 && !anyDomainMatches(req.SourceHostname, opts.Domains) {
		return false
	}
	if anyDomainMatches(req.SourceHostname, opts.ExcludeDomains) {
		return false
	}

	return r.re.MatchString(req.URL)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func anyDomainMatches(host string, domains []string) bool {
	for _, d := range domains {
		if matchesDomain(host, d) {
			return true
		}
	}
	return false
}

// CosmeticResources are the page-level resources for a URL
type CosmeticResources struct {
	HideSelectors  []string
	Exceptions     []string
	InjectedScript string
}

// URLCosmeticResources collects hide selectors and scriptlet injections for
// a page. An unparsable URL only receives generic selectors.
func (e *Engine) URLCosmeticResources(pageURL string) CosmeticResources {
	host, _ := hostname(pageURL)

	excepted := make(map[string]bool)
	for _, f := range e.cosmeticExceptions {
		if appliesTo(f.Domains, host) {
			excepted[f.Selector] = true
		}
	}

	seen := make(map[string]bool)
	var res CosmeticResources
	for _, f := range e.cosmetic {
		if !appliesTo(f.Domains, host) || seen[f.Selector] {
			continue
		}
		seen[f.Selector] = true
		if excepted[f.Selector] {
			res.Exceptions = append(res.Exceptions, f.Selector)
			continue
		}
		res.HideSelectors = append(res.HideSelectors, f.Selector)
	}
	sort.Strings(res.HideSelectors)
	sort.Strings(res.Exceptions)

	var scripts []string
	for _, f := range e.scriptlets {
		if !appliesTo(f.Domains, host) {
			continue
		}
		if script, ok := e.renderScriptlet(f.Script); ok {
			scripts = append(scripts, script)
		}
	}
	res.InjectedScript = strings.Join(scripts, "\n")

	return res
}

// appliesTo evaluates a cosmetic domain list (~ prefixed entries exclude).
// A list without includes applies everywhere.
func appliesTo(domains []string, host string) bool {
	included := false
	hasInclude := false
	for _, d := range domains {
		if strings.HasPrefix(d, "~") {
			if matchesDomain(host, d[1:]) {
				return false
			}
			continue
		}
		hasInclude = true
		if matchesDomain(host, d) {
			included = true
		}
	}
	if !hasInclude {
		return true
	}
	return included
}
