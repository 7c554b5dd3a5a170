package converter

import (
	"regexp"
	"strings"
)

// Regex fragments from uBlock's make-rulesets.js
const (
	// Separator matches any non-alphanumeric character (WebKit doesn't support disjunctions)
	restrSeparator = `[^%.0-9a-z_-]`
	// Hostname anchor for patterns starting with ||
	restrHostnameAnchor1 = `^[a-z-]+://(?:[^/?#]+\.)?`
	// Hostname anchor for patterns starting with ||.
	restrHostnameAnchor2 = `^[a-z-]+://(?:[^/?#]+)?`
)

const (
	anchorRight    = 0b001
	anchorLeft     = 0b010
	anchorHostname = 0b100
)

var (
	// Characters to escape in regex (except * and ^)
	rePlainChars = regexp.MustCompile(`[.+?${}()|[\]\\]`)
	// Dangling asterisks at start/end
	reDanglingAsterisks = regexp.MustCompile(`^\*+|\*+$`)
	reAsterisks         = regexp.MustCompile(`\*+`)
	reSeparators        = regexp.MustCompile(`\^`)
	// {n,} can be approximated with +
	reNumericQuantifierOpen = regexp.MustCompile(`\{[0-9]+,\}`)
)

// shorthandClasses lists the escapes WebKit rejects with their explicit
// equivalents. Negated forms come first so \W is not half-rewritten by \w.
var shorthandClasses = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\\W`), `[^a-zA-Z0-9_]`},
	{regexp.MustCompile(`\\w`), `[a-zA-Z0-9_]`},
	{regexp.MustCompile(`\\D`), `[^0-9]`},
	{regexp.MustCompile(`\\d`), `[0-9]`},
	{regexp.MustCompile(`\\S`), `[^ \t\n\r\f\v]`},
	{regexp.MustCompile(`\\s`), `[ \t\n\r\f\v]`},
}

// PatternToRegex converts an ABP/uBlock pattern to a WebKit-compatible regex
func PatternToRegex(pattern string) string {
	if pattern == "" || pattern == "*" {
		return ".*"
	}

	s := pattern
	anchor := 0

	if strings.HasPrefix(s, "||") {
		anchor = anchorHostname
		s = s[2:]
	} else if strings.HasPrefix(s, "|") {
		anchor = anchorLeft
		s = s[1:]
	}

	if strings.HasSuffix(s, "|") {
		anchor |= anchorRight
		s = s[:len(s)-1]
	}

	// Already a regex: strip the slashes and expand character classes
	if strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/") && len(s) > 2 {
		return expandCharacterClasses(s[1 : len(s)-1])
	}

	reStr := rePlainChars.ReplaceAllString(s, `\$0`)
	reStr = reSeparators.ReplaceAllString(reStr, restrSeparator)
	reStr = reDanglingAsterisks.ReplaceAllString(reStr, "")
	reStr = reAsterisks.ReplaceAllString(reStr, `.*`)

	switch {
	case anchor&anchorHostname != 0:
		if strings.HasPrefix(reStr, `\.`) {
			reStr = restrHostnameAnchor2 + reStr
		} else {
			reStr = restrHostnameAnchor1 + reStr
		}
	case anchor&anchorLeft != 0:
		reStr = "^" + reStr
	}

	if anchor&anchorRight != 0 {
		reStr += "$"
	}

	return reStr
}

// Patterns for detecting unsupported WebKit regex features
var (
	// {n} or {n,m}
	reNumericQuantifier = regexp.MustCompile(`\{[0-9]+(,[0-9]+)?\}`)
	reNonASCII          = regexp.MustCompile(`[^\x00-\x7F]`)
	reWordBoundary      = regexp.MustCompile(`\\[bB]`)
)

// unsupportedGroups are assertion and group prefixes WebKit rejects
var unsupportedGroups = []struct {
	prefix string
	name   string
}{
	{`(?<!`, "negative lookbehind"},
	{`(?<=`, "positive lookbehind"},
	{`(?=`, "positive lookahead"},
	{`(?!`, "negative lookahead"},
	{`(?P<`, "named group"},
	{`(?<`, "named group"},
	{`\p{`, "unicode property"},
	{`\P{`, "unicode property"},
}

// ValidateRegex checks if a regex is valid for WebKit.
// WebKit has a strict subset of regex features.
func ValidateRegex(pattern string) bool {
	if _, err := regexp.Compile(pattern); err != nil {
		return false
	}

	for _, g := range unsupportedGroups {
		if strings.Contains(pattern, g.prefix) {
			return false
		}
	}

	if containsDisjunction(pattern) ||
		reNumericQuantifier.MatchString(pattern) ||
		reNumericQuantifierOpen.MatchString(pattern) ||
		reNonASCII.MatchString(pattern) ||
		reWordBoundary.MatchString(pattern) {
		return false
	}

	// Shorthand classes should have been expanded by expandCharacterClasses
	for _, sc := range shorthandClasses {
		if sc.re.MatchString(pattern) {
			return false
		}
	}

	return true
}

// containsDisjunction checks if a regex contains | outside of character classes
func containsDisjunction(pattern string) bool {
	inCharClass := false
	escaped := false

	for _, ch := range pattern {
		switch {
		case escaped:
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '[' && !inCharClass:
			inCharClass = true
		case ch == ']' && inCharClass:
			inCharClass = false
		case ch == '|' && !inCharClass:
			return true
		}
	}
	return false
}

// PatternEndsWithSeparator checks if the original pattern ends with ^ separator
func PatternEndsWithSeparator(pattern string) bool {
	s := strings.TrimSuffix(pattern, "|")
	return strings.HasSuffix(s, "^")
}

// PatternToRegexEndAnchor creates a variant regex with $ end anchor instead of
// the trailing separator, so ||host^ also matches a URL that ends at host
func PatternToRegexEndAnchor(pattern string) string {
	s := strings.TrimSuffix(pattern, "|")
	s = strings.TrimSuffix(s, "^")

	regex := PatternToRegex(s)
	if !strings.HasSuffix(regex, "$") {
		regex += "$"
	}
	return regex
}

// expandCharacterClasses replaces shorthand character classes with explicit
// equivalents and approximates {n,} with +
func expandCharacterClasses(pattern string) string {
	for _, sc := range shorthandClasses {
		pattern = sc.re.ReplaceAllString(pattern, sc.replacement)
	}
	return reNumericQuantifierOpen.ReplaceAllString(pattern, `+`)
}
