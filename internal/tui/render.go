package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bnema/adblock-dashboard/internal/dashboard"
	"github.com/bnema/adblock-dashboard/internal/engine"
	"github.com/bnema/adblock-dashboard/internal/models"
	"github.com/bnema/adblock-dashboard/internal/parser"
)

// The Render functions turn derived state into plain text. The check
// command prints them as they are; the dashboard view styles them.

// RenderFilter describes the parsed single filter
func RenderFilter(r dashboard.FilterResult) string {
	if r.Err != nil {
		return "error: " + r.Err.Error()
	}
	f := r.Filter

	var b strings.Builder
	fmt.Fprintf(&b, "type:     %s\n", f.Type)
	switch {
	case f.IsNetwork():
		fmt.Fprintf(&b, "pattern:  %s\n", f.Pattern)
		if !f.Options.IsEmpty() {
			fmt.Fprintf(&b, "options:  %s\n", renderOptions(f.Options))
		}
	case f.Type == models.FilterTypeScriptlet && f.Script != nil:
		fmt.Fprintf(&b, "script:   %s(%s)\n", f.Script.Name, strings.Join(f.Script.Args, ", "))
	default:
		fmt.Fprintf(&b, "selector: %s\n", f.Selector)
	}
	if len(f.Domains) > 0 {
		fmt.Fprintf(&b, "domains:  %s\n", strings.Join(f.Domains, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderOptions(o models.FilterOptions) string {
	var parts []string
	if o.ThirdParty != nil {
		if *o.ThirdParty {
			parts = append(parts, "third-party")
		} else {
			parts = append(parts, "first-party")
		}
	}
	if len(o.ResourceTypes) > 0 {
		parts = append(parts, "types="+strings.Join(o.ResourceTypes, "|"))
	}
	if len(o.Domains) > 0 {
		parts = append(parts, "domains="+strings.Join(o.Domains, "|"))
	}
	if len(o.ExcludeDomains) > 0 {
		parts = append(parts, "not-domains="+strings.Join(o.ExcludeDomains, "|"))
	}
	if o.MatchCase {
		parts = append(parts, "match-case")
	}
	if o.Important {
		parts = append(parts, "important")
	}
	if o.Redirect != "" {
		parts = append(parts, "redirect="+o.Redirect)
	}
	if o.BadFilter {
		parts = append(parts, "badfilter")
	}
	return strings.Join(parts, " ")
}

// RenderContentBlocking shows the WebKit rules as indented JSON
func RenderContentBlocking(r *dashboard.CbResult) string {
	if r == nil {
		return "-"
	}
	if r.Err != nil {
		return "error: " + r.Err.Error()
	}
	data, err := r.Equivalent.JSON()
	if err != nil {
		return "error: " + err.Error()
	}
	if r.Equivalent.IsSplitDocument() {
		return "(split into document and subresource rules)\n" + string(data)
	}
	return string(data)
}

// RenderNetwork describes the engine decision for the network query
func RenderNetwork(r *dashboard.NetworkResult) string {
	if r == nil {
		return "-"
	}
	if r.Err != nil {
		return "error: " + r.Err.Error()
	}
	return RenderBlocker(r.Blocker)
}

// RenderBlocker describes a single engine decision
func RenderBlocker(b engine.BlockerResult) string {
	var lines []string
	switch {
	case b.Matched && b.Important:
		lines = append(lines, "BLOCKED (important)")
	case b.Matched:
		lines = append(lines, "BLOCKED")
	case b.Exception != "":
		lines = append(lines, "allowed by exception")
	default:
		lines = append(lines, "allowed")
	}
	if b.Filter != "" {
		lines = append(lines, "filter:    "+b.Filter)
	}
	if b.Exception != "" {
		lines = append(lines, "exception: "+b.Exception)
	}
	if b.Redirect != "" {
		lines = append(lines, "redirect:  "+truncate(b.Redirect, 72))
	}
	return strings.Join(lines, "\n")
}

// RenderCosmetic lists hide selectors, excepted selectors and the injected script
func RenderCosmetic(r *engine.CosmeticResources) string {
	if r == nil {
		return "-"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "hide (%d):       %s\n", len(r.HideSelectors), joinOrDash(r.HideSelectors))
	fmt.Fprintf(&b, "exceptions (%d): %s\n", len(r.Exceptions), joinOrDash(r.Exceptions))
	if r.InjectedScript == "" {
		b.WriteString("script:         -")
	} else {
		b.WriteString("script:\n" + r.InjectedScript)
	}
	return b.String()
}

// RenderMetadata shows the list header fields that were declared
func RenderMetadata(m models.ListMetadata) string {
	if m.IsEmpty() {
		return "no metadata"
	}
	var lines []string
	if m.Title != "" {
		lines = append(lines, "title:    "+m.Title)
	}
	if m.Homepage != "" {
		lines = append(lines, "homepage: "+m.Homepage)
	}
	if m.Expires != nil {
		lines = append(lines, "expires:  "+m.Expires.String())
	}
	if m.Redirect != "" {
		lines = append(lines, "redirect: "+m.Redirect)
	}
	return strings.Join(lines, "\n")
}

// RenderStats summarizes the last parsed list and the installed engine
func RenderStats(ls parser.Stats, es engine.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "parsed %d lines: %d network, %d exception, %d cosmetic, %d scriptlet, %d comments\n",
		ls.Total, ls.Network, ls.Exception, ls.Cosmetic, ls.Scriptlet, ls.Comments)
	fmt.Fprintf(&b, "skipped %d unsupported, %d invalid", ls.Unsupported, ls.Invalid)
	writeReasons(&b, ls.SkipReasons)
	fmt.Fprintf(&b, "\nengine: %d blocking, %d exceptions, %d cosmetic, %d scriptlets, %d resources",
		es.Blocking, es.Exceptions, es.Cosmetic, es.Scriptlets, es.Resources)
	fmt.Fprintf(&b, "\ncontent blocking: %d rules", es.ContentBlocking)
	writeReasons(&b, es.Unconvertible)
	return b.String()
}

// writeReasons lists skip counts in name order
func writeReasons(b *strings.Builder, counts map[string]int) {
	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(b, "\n  %s: %d", r, counts[r])
	}
}

// RenderRebuild reports the rebuild status of the list
func RenderRebuild(st dashboard.State) string {
	switch {
	case st.RebuildPending:
		return "rebuild pending"
	case st.RebuildError != nil:
		return "rebuild failed, previous engine kept: " + st.RebuildError.Error()
	default:
		return "engine up to date"
	}
}

func joinOrDash(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
