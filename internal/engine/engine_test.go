package engine

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/bnema/adblock-dashboard/internal/converter"
	"github.com/bnema/adblock-dashboard/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, lines ...string) *Engine {
	t.Helper()
	set, err := NewFilterSet(strings.Join(lines, "\n"))
	require.NoError(t, err)
	e, err := FromFilterSet(set, 0)
	require.NoError(t, err)
	return e
}

func check(t *testing.T, e *Engine, url, source, typ string) BlockerResult {
	t.Helper()
	req, err := NewRequest(url, source, typ)
	require.NoError(t, err)
	return e.CheckNetworkRequest(req)
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestCheckNetworkRequest(t *testing.T) {
	tests := []struct {
		name   string
		list   []string
		url    string
		source string
		typ    string
		want   BlockerResult
	}{
		{
			name:   "hostname anchor blocks",
			list:   []string{"||ads.example^"},
			url:    "https://ads.example/x",
			source: "https://site.test",
			typ:    "script",
			want:   BlockerResult{Matched: true, Filter: "||ads.example^"},
		},
		{
			name: "separator matches end of url",
			list: []string{"||ads.example^"},
			url:  "https://ads.example",
			want: BlockerResult{Matched: true, Filter: "||ads.example^"},
		},
		{
			name: "subdomain blocked",
			list: []string{"||ads.example^"},
			url:  "https://cdn.ads.example/x.js",
			want: BlockerResult{Matched: true, Filter: "||ads.example^"},
		},
		{
			name: "different host not blocked",
			list: []string{"||ads.example^"},
			url:  "https://notads.example/x",
			want: BlockerResult{},
		},
		{
			name:   "exception overrides",
			list:   []string{"||ads.example^", "@@||ads.example/ok^"},
			url:    "https://ads.example/ok/1.js",
			source: "https://site.test",
			want:   BlockerResult{Filter: "||ads.example^", Exception: "@@||ads.example/ok^"},
		},
		{
			name: "important beats exception",
			list: []string{"||ads.example^$important", "@@||ads.example^"},
			url:  "https://ads.example/x",
			want: BlockerResult{Matched: true, Important: true, Filter: "||ads.example^$important"},
		},
		{
			name:   "resource type mismatch",
			list:   []string{"||ads.example^$image"},
			url:    "https://ads.example/x",
			source: "https://site.test",
			typ:    "script",
			want:   BlockerResult{},
		},
		{
			name:   "first party only",
			list:   []string{"/track^$~third-party"},
			url:    "https://site.test/track?x",
			source: "https://www.site.test",
			want:   BlockerResult{Matched: true, Filter: "/track^$~third-party"},
		},
		{
			name:   "third party filter skips first party",
			list:   []string{"/track^$third-party"},
			url:    "https://site.test/track?x",
			source: "https://www.site.test",
			want:   BlockerResult{},
		},
		{
			name:   "domain option",
			list:   []string{"/banner.$domain=site.test|~safe.site.test"},
			url:    "https://cdn.example/banner.png",
			source: "https://safe.site.test/",
			want:   BlockerResult{},
		},
		{
			name: "badfilter disables target",
			list: []string{"||ads.example^$script", "||ads.example^$script,badfilter"},
			url:  "https://ads.example/x.js",
			typ:  "script",
			want: BlockerResult{},
		},
		{
			name: "match case",
			list: []string{"/Banner/$match-case"},
			url:  "https://cdn.example/banner/x",
			want: BlockerResult{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := compile(t, tt.list...)
			got := check(t, e, tt.url, tt.source, tt.typ)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("CheckNetworkRequest() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRedirectUsesResources(t *testing.T) {
	e := compile(t, "||ads.example/pixel.gif$image,redirect=1x1.gif")

	got := check(t, e, "https://ads.example/pixel.gif", "https://site.test", "image")
	assert.True(t, got.Matched)
	assert.Empty(t, got.Redirect, "no redirect until resources are loaded")

	e.UseResources([]models.Resource{{
		Name:    "1x1-transparent.gif",
		Aliases: []string{"1x1.gif"},
		Kind:    models.ResourceKind{Mime: "image/gif"},
		Content: "R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7",
	}})

	got = check(t, e, "https://ads.example/pixel.gif", "https://site.test", "image")
	assert.Equal(t, "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7", got.Redirect)
}

func TestNewRequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		source string
		field  string
	}{
		{"missing scheme", "ads.example/x", "", "url"},
		{"empty url", "", "https://site.test", "url"},
		{"bad source", "https://ads.example", "not a url", "source_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRequest(tt.url, tt.source, "script")
			var reqErr *RequestError
			require.True(t, errors.As(err, &reqErr))
			assert.Equal(t, tt.field, reqErr.Field)
		})
	}
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest("https://ads.example/x", "https://www.site.test/page", "")
	require.NoError(t, err)
	assert.Equal(t, "ads.example", req.Hostname)
	assert.Equal(t, "www.site.test", req.SourceHostname)
	assert.Equal(t, "other", req.Type)
	assert.Equal(t, models.ResourceRaw, req.ResourceType)
	assert.True(t, req.ThirdParty)

	req, err = NewRequest("https://static.site.test/a.js", "https://www.site.test", "script")
	require.NoError(t, err)
	assert.False(t, req.ThirdParty)
	assert.Equal(t, models.ResourceScript, req.ResourceType)
}

func TestURLCosmeticResources(t *testing.T) {
	e := compile(t,
		"##.ad",
		"##.banner",
		"site.test##.sponsored",
		"other.test##.promo",
		"site.test#@#.banner",
		"site.test,~shop.site.test##.popup",
		"site.test##+js(set-constant, adsEnabled, false)",
	)

	got := e.URLCosmeticResources("https://www.site.test/article")
	want := CosmeticResources{
		HideSelectors: []string{".ad", ".popup", ".sponsored"},
		Exceptions:    []string{".banner"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("URLCosmeticResources() mismatch (-want +got):\n%s", diff)
	}

	shop := e.URLCosmeticResources("https://shop.site.test/")
	assert.NotContains(t, shop.HideSelectors, ".popup")

	generic := e.URLCosmeticResources("")
	assert.Equal(t, []string{".ad", ".banner"}, generic.HideSelectors)
}

func TestScriptletInjection(t *testing.T) {
	e := compile(t, "site.test##+js(set-constant, adsEnabled, false)")
	e.UseResources([]models.Resource{{
		Name:    "set-constant.js",
		Kind:    models.ResourceKind{Template: true},
		Content: b64("window['{{1}}'] = {{2}};"),
	}})

	got := e.URLCosmeticResources("https://site.test/")
	assert.Equal(t, "try {\nwindow['adsEnabled'] = false;\n} catch ( e ) { }", got.InjectedScript)

	other := e.URLCosmeticResources("https://other.test/")
	assert.Empty(t, other.InjectedScript)
}

func TestFromFilterSetTooManyRules(t *testing.T) {
	set, err := NewFilterSet("||a.example^\n||b.example^\n||c.example^")
	require.NoError(t, err)

	_, err = FromFilterSet(set, 2)
	assert.ErrorIs(t, err, ErrTooManyRules)

	e, err := FromFilterSet(set, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, e.Stats().Blocking)
}

func TestSerializeRoundTrip(t *testing.T) {
	e := compile(t, "||ads.example^", "##.ad")
	e.UseResources([]models.Resource{{Name: "noop.js", Kind: models.ResourceKind{Template: true}, Content: b64("")}})

	data, err := e.Serialize(FormatDat)
	require.NoError(t, err)

	loaded, err := Deserialize(data, 0)
	require.NoError(t, err)
	assert.Equal(t, e.Stats(), loaded.Stats())
	assert.True(t, check(t, loaded, "https://ads.example/x", "", "").Matched)
}

func TestSerializeJSON(t *testing.T) {
	e := compile(t, "||ads.example^", "||ads.example^", "##.ad", "site.test##+js(noop)")

	data, err := e.Serialize(FormatJSON)
	require.NoError(t, err)

	var rules []models.WebKitRule
	require.NoError(t, json.Unmarshal(data, &rules))
	assert.Len(t, rules, 2)
	assert.Equal(t, 2, e.Stats().ContentBlocking)
	assert.Equal(t, map[string]int{converter.SkipScriptlet: 1}, e.Stats().Unconvertible)

	data, err = New().Serialize(FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestSerializeJSONHonorsBadFilter(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		rules int
	}{
		{"disabled filter", []string{"||ads.example^", "||ads.example^$badfilter"}, 0},
		{"other filters kept", []string{"||ads.example^", "||ads.example^$badfilter", "||track.example^"}, 1},
		{"badfilter without target", []string{"||ads.example^$script,badfilter", "||ads.example^"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := compile(t, tt.lines...)
			data, err := e.Serialize(FormatJSON)
			require.NoError(t, err)

			var rules []models.WebKitRule
			require.NoError(t, json.Unmarshal(data, &rules))
			assert.Len(t, rules, tt.rules)
			assert.Equal(t, tt.rules, e.Stats().ContentBlocking)
			assert.Equal(t, tt.rules, e.Stats().Blocking, "export and engine block the same filters")
		})
	}
}

func TestSerializeKeepsMetadata(t *testing.T) {
	e := compile(t, "! Title: Test List", "! Expires: 4 days", "||ads.example^")
	require.Equal(t, "Test List", e.Metadata().Title)

	data, err := e.Serialize(FormatDat)
	require.NoError(t, err)
	loaded, err := Deserialize(data, 0)
	require.NoError(t, err)
	assert.Equal(t, e.Metadata(), loaded.Metadata())
	require.NotNil(t, loaded.Metadata().Expires)
	assert.Equal(t, models.Expires{Value: 4, Unit: models.ExpiresDays}, *loaded.Metadata().Expires)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	assert.Equal(t, "content-blocker.json", f.Filename())

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatDat, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
