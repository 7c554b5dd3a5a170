package parser

import (
	"bufio"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bnema/adblock-dashboard/internal/models"
)

// Parser parses ABP/uBlock filter lists
type Parser struct {
	stats    Stats
	metadata models.ListMetadata
}

// Stats tracks parsing statistics
type Stats struct {
	Total       int
	Network     int
	Exception   int
	Cosmetic    int
	Scriptlet   int
	Comments    int
	Unsupported int
	Invalid     int
	SkipReasons map[string]int // Detailed breakdown of skipped filters
}

// SkipReason constants
const (
	SkipHTMLFilter      = "html-filter (##^)"
	SkipProcedural      = "procedural (:has, :xpath, etc)"
	SkipUnsupportedOpt  = "unsupported-option (csp, removeparam, etc)"
	SkipScriptletExc    = "scriptlet-exception (#@#+js)"
	SkipInvalidNetwork  = "invalid-network-filter"
	SkipInvalidCosmetic = "invalid-cosmetic-filter"
)

// New creates a new parser
func New() *Parser {
	return &Parser{
		stats: Stats{
			SkipReasons: make(map[string]int),
		},
	}
}

// Stats returns parsing statistics
func (p *Parser) Stats() Stats {
	return p.stats
}

// Metadata returns the list header fields seen so far
func (p *Parser) Metadata() models.ListMetadata {
	return p.metadata
}

// Parse reads filter content and returns parsed filters
func (p *Parser) Parse(r io.Reader) ([]models.Filter, error) {
	var filters []models.Filter
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p.stats.Total++

		if isComment(line) {
			p.stats.Comments++
			p.readHeader(line)
			continue
		}

		filter, err := ParseFilter(line)
		if err != nil {
			p.record(err)
			continue
		}

		switch filter.Type {
		case models.FilterTypeNetwork:
			p.stats.Network++
		case models.FilterTypeException:
			p.stats.Exception++
		case models.FilterTypeCosmetic, models.FilterTypeCosmeticException:
			p.stats.Cosmetic++
		case models.FilterTypeScriptlet:
			p.stats.Scriptlet++
		}

		filters = append(filters, filter)
	}

	return filters, scanner.Err()
}

// record counts a rejected line under its skip reason
func (p *Parser) record(err error) {
	var pe *ParseError
	if !errors.As(err, &pe) {
		return
	}
	switch pe.Kind {
	case KindNetwork:
		p.stats.Invalid++
		p.stats.SkipReasons[SkipInvalidNetwork]++
	case KindCosmetic:
		p.stats.Invalid++
		p.stats.SkipReasons[SkipInvalidCosmetic]++
	default:
		p.stats.Unsupported++
		p.stats.SkipReasons[pe.Reason]++
	}
}

var reExpires = regexp.MustCompile(`^(\d+)\s*(days?|hours?)`)

// readHeader extracts "! Key: value" metadata, first occurrence wins
func (p *Parser) readHeader(line string) {
	body, ok := strings.CutPrefix(line, "!")
	if !ok {
		return
	}
	key, value, ok := strings.Cut(body, ":")
	if !ok {
		return
	}
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}

	switch key {
	case "title":
		if p.metadata.Title == "" {
			p.metadata.Title = value
		}
	case "homepage":
		if p.metadata.Homepage == "" {
			p.metadata.Homepage = value
		}
	case "redirect":
		if p.metadata.Redirect == "" {
			p.metadata.Redirect = value
		}
	case "expires":
		if p.metadata.Expires != nil {
			return
		}
		m := reExpires.FindStringSubmatch(strings.ToLower(value))
		if m == nil {
			return
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n == 0 {
			return
		}
		unit := models.ExpiresDays
		if strings.HasPrefix(m[2], "hour") {
			unit = models.ExpiresHours
		}
		p.metadata.Expires = &models.Expires{Value: n, Unit: unit}
	}
}

func isComment(line string) bool {
	return strings.HasPrefix(line, "!") || strings.HasPrefix(line, "[")
}

// ParseFilter parses a single filter line. It never panics; every rejected
// input comes back as a *ParseError.
func ParseFilter(line string) (models.Filter, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return models.Filter{}, &ParseError{Kind: KindEmpty}
	}

	if isComment(line) {
		return models.Filter{}, unsupported("comment")
	}

	// old lists sometimes carry Latin-1 bytes, which no pattern can match
	if !utf8.ValidString(line) {
		if strings.Contains(line, "##") || strings.Contains(line, "#@#") {
			return models.Filter{}, cosmeticError("invalid UTF-8")
		}
		return models.Filter{}, networkError("invalid UTF-8")
	}

	// HTML filtering - unsupported
	if strings.Contains(line, "##^") || strings.Contains(line, "#@#^") {
		return models.Filter{}, unsupported(SkipHTMLFilter)
	}

	if strings.Contains(line, "#@#+js(") {
		return models.Filter{}, unsupported(SkipScriptletExc)
	}

	// Scriptlet injection
	if idx := strings.Index(line, "##+js("); idx != -1 {
		return parseScriptlet(line, idx)
	}

	// Procedural cosmetic filters - unsupported
	if containsProcedural(line) {
		return models.Filter{}, unsupported(SkipProcedural)
	}

	// Cosmetic exception filters
	if idx := strings.Index(line, "#@#"); idx != -1 {
		return parseCosmetic(line, idx, true)
	}

	// Cosmetic filters
	if idx := strings.Index(line, "##"); idx != -1 {
		return parseCosmetic(line, idx, false)
	}

	// Exception rules (whitelist)
	if strings.HasPrefix(line, "@@") {
		return parseNetwork(line, line[2:], true)
	}

	return parseNetwork(line, line, false)
}

// containsProcedural checks for procedural cosmetic filter syntax
func containsProcedural(line string) bool {
	procedural := []string{
		":has(", ":has-text(", ":xpath(", ":matches-css(",
		":matches-attr(", ":min-text-length(",
		":upward(", ":remove(", ":style(",
	}
	for _, p := range procedural {
		if strings.Contains(line, p) {
			return true
		}
	}
	return false
}

// parseCosmetic parses a cosmetic (CSS) filter
func parseCosmetic(line string, sepIdx int, isException bool) (models.Filter, error) {
	separator := "##"
	filterType := models.FilterTypeCosmetic
	if isException {
		separator = "#@#"
		filterType = models.FilterTypeCosmeticException
	}

	domains, err := parseCosmeticDomains(line[:sepIdx])
	if err != nil {
		return models.Filter{}, err
	}

	selector := strings.TrimSpace(line[sepIdx+len(separator):])
	if selector == "" {
		return models.Filter{}, cosmeticError("empty selector")
	}
	if strings.ContainsAny(selector, "{}") {
		return models.Filter{}, cosmeticError("selector %q contains a style block", selector)
	}

	return models.Filter{
		Type:     filterType,
		Raw:      line,
		Selector: selector,
		Domains:  domains,
	}, nil
}

// parseScriptlet parses example.com##+js(name, arg1, arg2)
func parseScriptlet(line string, sepIdx int) (models.Filter, error) {
	domains, err := parseCosmeticDomains(line[:sepIdx])
	if err != nil {
		return models.Filter{}, err
	}

	body := line[sepIdx+len("##+js("):]
	if !strings.HasSuffix(body, ")") {
		return models.Filter{}, cosmeticError("unterminated scriptlet")
	}
	args := splitScriptletArgs(body[:len(body)-1])
	if len(args) == 0 || args[0] == "" {
		return models.Filter{}, cosmeticError("scriptlet without a name")
	}

	name := args[0]
	if !strings.HasSuffix(name, ".js") {
		name += ".js"
	}

	return models.Filter{
		Type:    models.FilterTypeScriptlet,
		Raw:     line,
		Domains: domains,
		Script:  &models.Scriptlet{Name: name, Args: args[1:]},
	}, nil
}

// splitScriptletArgs splits on commas, honouring \, escapes
func splitScriptletArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var args []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s) && s[i+1] == ',':
			cur.WriteByte(',')
			i++
		case s[i] == ',':
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(s[i])
		}
	}
	return append(args, strings.TrimSpace(cur.String()))
}

func parseCosmeticDomains(s string) ([]string, error) {
	domains := parseDomainList(s, ",")
	for _, d := range domains {
		if strings.ContainsAny(strings.TrimPrefix(d, "~"), "/ |") || d == "~" {
			return nil, cosmeticError("invalid domain %q", d)
		}
	}
	return domains, nil
}

// parseNetwork parses a network filter. body is the line without any @@ prefix.
func parseNetwork(raw, body string, isException bool) (models.Filter, error) {
	filterType := models.FilterTypeNetwork
	if isException {
		filterType = models.FilterTypeException
	}

	pattern := body
	var options models.FilterOptions

	// Split pattern and options
	if idx := strings.LastIndex(body, "$"); idx != -1 {
		// Check it's not escaped or part of regex
		if idx == 0 || body[idx-1] != '\\' {
			optPart := body[idx+1:]
			// Skip if it looks like a regex end anchor
			if !strings.HasPrefix(optPart, "/") {
				if hasUnsupportedOptions(optPart) {
					return models.Filter{}, unsupported(SkipUnsupportedOpt)
				}
				pattern = body[:idx]
				var err error
				options, err = parseOptions(optPart)
				if err != nil {
					return models.Filter{}, err
				}
			}
		}
	}

	f := models.Filter{
		Type:    filterType,
		Raw:     raw,
		Pattern: pattern,
		Options: options,
	}

	if f.IsRegex() {
		inner := strings.Trim(strings.Trim(pattern, "|"), "/")
		if _, err := regexp.Compile(inner); err != nil {
			return models.Filter{}, networkError("invalid regex %q", inner)
		}
	}

	if options.Redirect != "" && isException {
		return models.Filter{}, networkError("redirect on exception filter")
	}

	return f, nil
}

// parseDomainList parses a separator delimited domain list
func parseDomainList(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	domains := make([]string, 0, len(parts))
	for _, d := range parts {
		d = strings.TrimSpace(d)
		if d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}

// parseOptions parses network filter options
func parseOptions(s string) (models.FilterOptions, error) {
	var opts models.FilterOptions
	parts := strings.Split(s, ",")

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		switch {
		case part == "third-party" || part == "3p" || part == "~first-party" || part == "~1p":
			t := true
			opts.ThirdParty = &t
		case part == "~third-party" || part == "~3p" || part == "first-party" || part == "1p":
			f := false
			opts.ThirdParty = &f
		case part == "match-case":
			opts.MatchCase = true
		case part == "important":
			opts.Important = true
		case part == "badfilter":
			opts.BadFilter = true
		case strings.HasPrefix(part, "domain="):
			opts.Domains, opts.ExcludeDomains = parseDomainOption(part[len("domain="):])
			if len(opts.Domains) == 0 && len(opts.ExcludeDomains) == 0 {
				return opts, networkError("empty domain= option")
			}
		case strings.HasPrefix(part, "redirect="), strings.HasPrefix(part, "redirect-rule="):
			_, name, _ := strings.Cut(part, "=")
			if name == "" {
				return opts, networkError("empty %s option", part)
			}
			opts.Redirect = name
		default:
			if strings.HasPrefix(part, "~") {
				return opts, networkError("negated resource type %q", part)
			}
			rt := MapResourceType(part)
			if rt == "" {
				return opts, networkError("unknown option %q", part)
			}
			opts.ResourceTypes = appendUnique(opts.ResourceTypes, rt)
		}
	}

	return opts, nil
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// parseDomainOption parses domain=example.com|~excluded.com
func parseDomainOption(s string) (include, exclude []string) {
	for _, d := range parseDomainList(s, "|") {
		if strings.HasPrefix(d, "~") {
			if d = d[1:]; d != "" {
				exclude = append(exclude, d)
			}
		} else {
			include = append(include, d)
		}
	}
	return
}

// MapResourceType maps ABP and webRequest resource types to WebKit types
func MapResourceType(s string) string {
	switch strings.ToLower(s) {
	case "script":
		return models.ResourceScript
	case "image", "img", "imageset":
		return models.ResourceImage
	case "stylesheet", "css":
		return models.ResourceStyleSheet
	case "font":
		return models.ResourceFont
	case "media":
		return models.ResourceMedia
	case "xmlhttprequest", "xhr":
		return models.ResourceRaw
	case "subdocument", "frame", "sub_frame":
		return models.ResourceDocument
	case "object", "object-subrequest", "object_subrequest":
		return models.ResourceRaw
	case "ping", "beacon", "csp_report":
		return models.ResourceRaw
	case "popup":
		return models.ResourcePopup
	case "other":
		return models.ResourceRaw
	case "websocket":
		return models.ResourceRaw
	case "document", "doc", "main_frame":
		return models.ResourceDocument
	}
	return ""
}

// hasUnsupportedOptions checks for options the engine does not implement
func hasUnsupportedOptions(s string) bool {
	unsupported := []string{
		"csp=", "removeparam=", "replace=",
		"header=", "method=", "to=",
		"permissions=", "uritransform=",
		"generichide", "elemhide", "ghide", "ehide",
	}
	for _, u := range unsupported {
		if strings.Contains(s, u) {
			return true
		}
	}
	return false
}
