package converter

// WebKit content blockers accept a strict subset of JavaScript regular
// expressions: ., character classes, non-capturing groups, * + ?, and ^ / $
// only at the pattern edges. Shorthand classes, word boundaries, numeric
// quantifiers, alternation, lookaround, named groups, unicode properties and
// non-ASCII characters are rejected. Safari caps a blocker at 50,000 rules.
//
// See https://webkit.org/blog/3476/content-blockers-first-look/

import (
	"strings"
)

// WebKitRegexIssue describes a problem found in a regex pattern
type WebKitRegexIssue struct {
	Pattern     string
	Issue       string
	Fixable     bool
	Replacement string
}

// CheckWebKitCompatibility analyzes a regex pattern for WebKit compatibility issues
func CheckWebKitCompatibility(pattern string) []WebKitRegexIssue {
	var issues []WebKitRegexIssue
	add := func(issue string, fixable bool, replacement string) {
		issues = append(issues, WebKitRegexIssue{
			Pattern:     pattern,
			Issue:       issue,
			Fixable:     fixable,
			Replacement: replacement,
		})
	}

	for _, sc := range shorthandClasses {
		if sc.re.MatchString(pattern) {
			add("shorthand character class: "+sc.re.String()[1:], true, sc.replacement)
		}
	}
	if reWordBoundary.MatchString(pattern) {
		add("word boundary", false, "")
	}

	// {n,} is fixable, expandCharacterClasses turns it into +
	for _, m := range reNumericQuantifierOpen.FindAllString(pattern, -1) {
		add("numeric quantifier: "+m, true, "+")
	}
	for _, m := range reNumericQuantifier.FindAllString(pattern, -1) {
		add("numeric quantifier: "+m, false, "")
	}

	if containsDisjunction(pattern) {
		add("disjunction (|) outside character class", false, "")
	}

	if reNonASCII.MatchString(pattern) {
		add("non-ASCII characters", false, "")
	}

	for _, g := range unsupportedGroups {
		if strings.Contains(pattern, g.prefix) {
			add(g.name, false, "")
		}
	}

	return issues
}

// DescribeIssues returns a human-readable description of all issues
func DescribeIssues(issues []WebKitRegexIssue) string {
	if len(issues) == 0 {
		return ""
	}
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		parts = append(parts, issue.Issue)
	}
	return strings.Join(parts, ", ")
}
