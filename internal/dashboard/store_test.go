package dashboard

import (
	"errors"
	"testing"

	"github.com/bnema/adblock-dashboard/internal/engine"
	"github.com/bnema/adblock-dashboard/internal/parser"
	"github.com/bnema/adblock-dashboard/internal/resources"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gifResources = `[
  {"name": "1x1.gif", "aliases": [], "kind": {"mime": "image/gif"}, "content": "R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"}
]`

var errCompile = errors.New("compile failed")

// failingAdapter compiles normally until fail is set
type failingAdapter struct {
	engine.Adapter
	fail bool
}

func (a *failingAdapter) CompileEngine(set *engine.FilterSet) (*engine.Engine, error) {
	if a.fail {
		return nil, errCompile
	}
	return a.Adapter.CompileEngine(set)
}

type savedFile struct {
	name string
	data []byte
}

type fakeDownloader struct {
	saved []savedFile
	err   error
}

func (d *fakeDownloader) Save(name string, data []byte) error {
	if d.err != nil {
		return d.err
	}
	d.saved = append(d.saved, savedFile{name: name, data: data})
	return nil
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *fakeScheduler) {
	t.Helper()
	sched := &fakeScheduler{}
	opts = append([]Option{WithScheduler(sched)}, opts...)
	return NewStore(engine.NewAdapter(0), opts...), sched
}

// rebuildNow sets the list text and lets the debounce timer fire
func rebuildNow(t *testing.T, s *Store, sched *fakeScheduler, list string) {
	t.Helper()
	s.Apply(FilterListTextChanged{Text: list})
	require.Equal(t, 1, sched.fire(false))
}

func setQuery(s *Store, url, source, typ string) {
	s.Apply(NetworkURLChanged{Text: url})
	s.Apply(NetworkSourceChanged{Text: source})
	s.Apply(NetworkTypeChanged{Text: typ})
}

func assertNetworkInvariant(t *testing.T, st State) {
	t.Helper()
	if st.Network.IsEmpty() {
		assert.Nil(t, st.NetworkResult, "empty query must have no result")
	} else {
		assert.NotNil(t, st.NetworkResult, "non-empty query must have a result")
	}
}

func TestNewStoreDefaults(t *testing.T) {
	s, _ := newTestStore(t)
	st := s.State()

	assert.True(t, errors.Is(st.ParsedFilter.Err, parser.ErrEmpty))
	assert.Nil(t, st.ContentBlocking)
	assert.Nil(t, st.NetworkResult)
	assert.Nil(t, st.CosmeticResult)
	assert.False(t, st.RebuildPending)
	assert.Equal(t, engine.FormatDat, st.ExportFormat)
	assert.Equal(t, engine.Stats{}, st.EngineStats)
	require.NotNil(t, st.engine)
}

func TestFilterTextChanged(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
		wantCb  bool
		cbErr   bool
	}{
		{name: "network filter converts", text: "||ads.example^", wantCb: true},
		{name: "cosmetic filter converts", text: "example.com##.banner", wantCb: true},
		{name: "scriptlet does not convert", text: "example.com##+js(set-constant, a, 1)", wantCb: true, cbErr: true},
		{name: "empty input", text: "", wantErr: true},
		{name: "malformed option", text: "||ads.example^$bogus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t)
			s.Apply(FilterTextChanged{Text: tt.text})
			once := s.State()

			s.Apply(FilterTextChanged{Text: tt.text})
			twice := s.State()

			assert.Equal(t, tt.text, once.FilterText)
			assert.Equal(t, once.ParsedFilter, twice.ParsedFilter)
			assert.Equal(t, once.ContentBlocking, twice.ContentBlocking)

			if tt.wantErr {
				assert.Error(t, once.ParsedFilter.Err)
				assert.Nil(t, once.ContentBlocking, "no conversion without a parsed filter")
				return
			}
			require.NoError(t, once.ParsedFilter.Err)
			assert.Equal(t, tt.text, once.ParsedFilter.Filter.Raw)
			require.NotNil(t, once.ContentBlocking)
			if tt.cbErr {
				assert.Error(t, once.ContentBlocking.Err)
			} else {
				assert.NoError(t, once.ContentBlocking.Err)
				assert.NotEmpty(t, once.ContentBlocking.Equivalent.Rules)
			}
		})
	}
}

func TestFilterTextReplacesConversion(t *testing.T) {
	s, _ := newTestStore(t)

	s.Apply(FilterTextChanged{Text: "||ads.example^"})
	require.NotNil(t, s.State().ContentBlocking)

	s.Apply(FilterTextChanged{Text: "   "})
	st := s.State()
	assert.Error(t, st.ParsedFilter.Err)
	assert.Nil(t, st.ContentBlocking, "stale conversion must not survive a failed parse")
}

func TestNetworkResultPresentIffQueryNonEmpty(t *testing.T) {
	s, sched := newTestStore(t)

	events := []Event{
		NetworkURLChanged{Text: "https://ads.example/x"},
		NetworkSourceChanged{Text: "https://site.test"},
		FilterListTextChanged{Text: "||ads.example^"},
		NetworkTypeChanged{Text: "script"},
		NetworkURLChanged{Text: ""},
		NetworkSourceChanged{Text: ""},
		FilterListTextChanged{Text: "||other.example^"},
		NetworkTypeChanged{Text: ""},
		FilterListTextChanged{Text: ""},
		NetworkTypeChanged{Text: "image"},
		CosmeticURLChanged{Text: "https://site.test"},
		ResourcesLoaded{JSON: gifResources},
		ResourcesLoaded{JSON: "not json"},
		ExportRequested{},
	}

	for _, ev := range events {
		s.Apply(ev)
		assertNetworkInvariant(t, s.State())
		sched.fire(false)
		assertNetworkInvariant(t, s.State())
	}
}

func TestEmptyNetworkQuery(t *testing.T) {
	s, sched := newTestStore(t)
	rebuildNow(t, s, sched, "||ads.example^")

	setQuery(s, "", "", "")
	assert.Nil(t, s.State().NetworkResult)
}

func TestBlockedRequestAfterRebuild(t *testing.T) {
	s, sched := newTestStore(t)

	rebuildNow(t, s, sched, "||ads.example^")
	setQuery(s, "https://ads.example/x", "https://site.test", "script")

	st := s.State()
	require.NotNil(t, st.NetworkResult)
	require.NoError(t, st.NetworkResult.Err)
	assert.True(t, st.NetworkResult.Blocker.Matched)
	assert.Equal(t, "||ads.example^", st.NetworkResult.Blocker.Filter)
}

func TestNetworkQueryError(t *testing.T) {
	s, _ := newTestStore(t)
	s.Apply(NetworkURLChanged{Text: "not a url"})

	st := s.State()
	require.NotNil(t, st.NetworkResult)
	var reqErr *engine.RequestError
	assert.True(t, errors.As(st.NetworkResult.Err, &reqErr))
}

func TestRebuildRecomputesNetworkResult(t *testing.T) {
	s, sched := newTestStore(t)
	setQuery(s, "https://ads.example/x", "https://site.test", "script")

	st := s.State()
	require.NotNil(t, st.NetworkResult)
	assert.False(t, st.NetworkResult.Blocker.Matched, "empty engine blocks nothing")

	s.Apply(FilterListTextChanged{Text: "||ads.example^"})
	st = s.State()
	assert.True(t, st.RebuildPending)
	require.NotNil(t, st.NetworkResult)
	assert.ErrorIs(t, st.NetworkResult.Err, ErrRebuildPending)

	require.Equal(t, 1, sched.fire(false))
	st = s.State()
	assert.False(t, st.RebuildPending)
	require.NotNil(t, st.NetworkResult)
	require.NoError(t, st.NetworkResult.Err)
	assert.True(t, st.NetworkResult.Blocker.Matched)
}

func TestDebounceCoalescing(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s, sched := newTestStore(t, WithMetrics(m))

	texts := []string{"||a.example^", "||b.example^", "||c.example^", "||d.example^", "! Title: Last\n||e.example^"}
	for _, text := range texts {
		s.Apply(FilterListTextChanged{Text: text})
		assert.Equal(t, 1, sched.live(), "at most one timer is live")
	}

	// stopped timers fire too, as if every Stop lost the race
	assert.Equal(t, len(texts), sched.fire(true))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.rebuilds.WithLabelValues("success")))
	assert.Equal(t, float64(len(texts)-1), testutil.ToFloat64(m.staleTimers))
	assert.Equal(t, float64(len(texts)-1), testutil.ToFloat64(m.cancelledTimers))
	assert.Equal(t, float64(len(texts)), testutil.ToFloat64(m.events.WithLabelValues("filter_list_text_changed")))

	st := s.State()
	assert.Equal(t, "Last", st.ListMetadata.Title)
	require.Len(t, st.engine.Filters(), 1)
	assert.Equal(t, "||e.example^", st.engine.Filters()[0].Raw)
}

func TestSupersededTimerNeverRebuilds(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s, _ := newTestStore(t, WithMetrics(m))

	s.Apply(FilterListTextChanged{Text: "||a.example^"})
	s.Apply(FilterListTextChanged{Text: "||b.example^"})

	s.Apply(DebounceElapsed{Generation: 1})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.rebuilds.WithLabelValues("success")))
	assert.True(t, s.State().RebuildPending)

	s.Apply(DebounceElapsed{Generation: 2})
	s.Apply(DebounceElapsed{Generation: 2})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rebuilds.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.staleTimers))
}

func TestRebuildFailureKeepsPreviousEngine(t *testing.T) {
	adapter := &failingAdapter{Adapter: engine.NewAdapter(0)}
	sched := &fakeScheduler{}
	s := NewStore(adapter, WithScheduler(sched))

	s.Apply(ResourcesLoaded{JSON: gifResources})
	rebuildNow(t, s, sched, "! Title: First\n||ads.example^")
	setQuery(s, "https://ads.example/x", "https://site.test", "script")
	before := s.State()
	require.NoError(t, before.RebuildError)

	adapter.fail = true
	rebuildNow(t, s, sched, "! Title: Second\n||other.example^")
	after := s.State()

	assert.ErrorIs(t, after.RebuildError, errCompile)
	assert.Same(t, before.engine, after.engine)
	assert.Equal(t, before.ListMetadata, after.ListMetadata)
	assert.Equal(t, before.ListStats, after.ListStats)
	assert.Equal(t, before.EngineStats, after.EngineStats)
	assert.Len(t, after.engine.Resources(), 1)
	assert.Equal(t, "! Title: Second\n||other.example^", after.FilterListText)

	require.NotNil(t, after.NetworkResult)
	assert.NoError(t, after.NetworkResult.Err, "query falls back to the kept engine")
	assert.True(t, after.NetworkResult.Blocker.Matched)

	adapter.fail = false
	rebuildNow(t, s, sched, "! Title: Third\n||other.example^")
	assert.NoError(t, s.State().RebuildError)
	assert.Equal(t, "Third", s.State().ListMetadata.Title)
}

func TestRebuildTooManyRules(t *testing.T) {
	sched := &fakeScheduler{}
	s := NewStore(engine.NewAdapter(1), WithScheduler(sched))

	rebuildNow(t, s, sched, "||a.example^\n||b.example^")
	st := s.State()
	assert.ErrorIs(t, st.RebuildError, engine.ErrTooManyRules)
	assert.Equal(t, 0, st.EngineStats.Filters)
}

func TestRebuildSkipsUndecodableLines(t *testing.T) {
	s, sched := newTestStore(t)
	setQuery(s, "https://ads.example/banner.js", "https://site.test", "script")

	rebuildNow(t, s, sched, "||ads.example^\n||caf\xe9.example^")
	st := s.State()
	require.NoError(t, st.RebuildError)
	assert.Equal(t, 1, st.EngineStats.Filters)
	assert.Equal(t, 1, st.ListStats.Invalid)
	assert.Equal(t, 1, st.ListStats.SkipReasons[parser.SkipInvalidNetwork])
	require.NotNil(t, st.NetworkResult)
	assert.True(t, st.NetworkResult.Blocker.Matched)
}

func TestStartFromSnapshot(t *testing.T) {
	set, err := engine.NewFilterSet("! Title: Snapshot\n||ads.example^")
	require.NoError(t, err)
	e, err := engine.FromFilterSet(set, 0)
	require.NoError(t, err)
	data, err := e.Serialize(engine.FormatDat)
	require.NoError(t, err)
	loaded, err := engine.Deserialize(data, 0)
	require.NoError(t, err)

	s, _ := newTestStore(t, WithEngine(loaded))
	st := s.State()
	assert.Equal(t, "Snapshot", st.ListMetadata.Title)
	assert.Equal(t, 1, st.EngineStats.Filters)
}

func TestResourcesLoaded(t *testing.T) {
	s, sched := newTestStore(t)
	rebuildNow(t, s, sched, "||ads.example/pixel.gif$image,redirect=1x1.gif")
	setQuery(s, "https://ads.example/pixel.gif", "https://site.test", "image")
	assert.Empty(t, s.State().NetworkResult.Blocker.Redirect)

	s.Apply(ResourcesLoaded{JSON: gifResources})
	st := s.State()
	require.NoError(t, st.ResourcesError)
	require.Len(t, st.Resources, 1)
	assert.Equal(t, 1, st.EngineStats.Resources)
	assert.Contains(t, st.NetworkResult.Blocker.Redirect, "data:image/gif;base64,")

	rebuildNow(t, s, sched, "||ads.example/pixel.gif$image,redirect=1x1.gif\n||ads.example^")
	assert.Equal(t, 1, s.State().EngineStats.Resources, "resources survive a rebuild")
}

func TestResourcesLoadedBadJSON(t *testing.T) {
	s, _ := newTestStore(t)
	s.Apply(ResourcesLoaded{JSON: gifResources})
	before := s.State()

	assert.NotPanics(t, func() {
		s.Apply(ResourcesLoaded{JSON: `[{"name": "broken"`})
	})
	after := s.State()

	var resErr *resources.ResourcesError
	assert.True(t, errors.As(after.ResourcesError, &resErr))
	assert.Equal(t, before.Resources, after.Resources)
	assert.Len(t, after.engine.Resources(), 1)

	s.Apply(ResourcesLoaded{JSON: "[]"})
	assert.NoError(t, s.State().ResourcesError)
	assert.Empty(t, s.State().Resources)
}

func TestCosmeticURLChanged(t *testing.T) {
	s, sched := newTestStore(t)

	s.Apply(CosmeticURLChanged{Text: ""})
	st := s.State()
	require.NotNil(t, st.CosmeticResult, "cosmetic result is present even for empty input")
	assert.Empty(t, st.CosmeticResult.HideSelectors)

	rebuildNow(t, s, sched, "##.ad\nexample.com##.banner")
	assert.Equal(t, []string{".ad"}, s.State().CosmeticResult.HideSelectors, "rebuild refreshes the shown result")

	s.Apply(CosmeticURLChanged{Text: "https://example.com/page"})
	assert.Equal(t, []string{".ad", ".banner"}, s.State().CosmeticResult.HideSelectors)
}

func TestExportRequested(t *testing.T) {
	dl := &fakeDownloader{}
	s, sched := newTestStore(t, WithDownloader(dl))
	rebuildNow(t, s, sched, "||ads.example^")

	before := s.State()
	s.Apply(ExportRequested{})
	assert.Equal(t, before, s.State(), "export does not touch state")

	require.Len(t, dl.saved, 1)
	assert.Equal(t, "rs-ABPFilterParserData.dat", dl.saved[0].name)
	e, err := engine.Deserialize(dl.saved[0].data, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Stats().Filters)

	s.Apply(ExportFormatChanged{Format: engine.FormatJSON})
	assert.Equal(t, engine.FormatJSON, s.State().ExportFormat)
	s.Apply(ExportRequested{})
	require.Len(t, dl.saved, 2)
	assert.Equal(t, "content-blocker.json", dl.saved[1].name)
	assert.Contains(t, string(dl.saved[1].data), "ads")

	s.Apply(ExportFormatChanged{Format: "zip"})
	assert.Equal(t, engine.FormatJSON, s.State().ExportFormat, "unknown format is ignored")
}

func TestExportJSONMatchesEngine(t *testing.T) {
	dl := &fakeDownloader{}
	s, sched := newTestStore(t, WithDownloader(dl), WithExportFormat(engine.FormatJSON))
	rebuildNow(t, s, sched, "||ads.example^\n||ads.example^$badfilter")

	setQuery(s, "https://ads.example/x", "https://site.test", "script")
	assert.False(t, s.State().NetworkResult.Blocker.Matched)

	s.Apply(ExportRequested{})
	require.Len(t, dl.saved, 1)
	assert.Equal(t, "content-blocker.json", dl.saved[0].name)
	assert.Equal(t, "[]", string(dl.saved[0].data))
	assert.Equal(t, 0, s.State().EngineStats.ContentBlocking)
}

func TestExportFailuresAreContained(t *testing.T) {
	dl := &fakeDownloader{err: errors.New("disk full")}
	s, _ := newTestStore(t, WithDownloader(dl))
	assert.NotPanics(t, func() { s.Apply(ExportRequested{}) })

	noDownloader, _ := newTestStore(t)
	assert.NotPanics(t, func() { noDownloader.Apply(ExportRequested{}) })
}

func TestFlush(t *testing.T) {
	s, sched := newTestStore(t)
	assert.False(t, s.Flush())

	s.Apply(FilterListTextChanged{Text: "||ads.example^"})
	assert.True(t, s.Flush())
	assert.Equal(t, 1, s.State().EngineStats.Filters)
	assert.Equal(t, 0, sched.live())

	sched.fire(true)
	assert.False(t, s.State().RebuildPending)
}

func TestClose(t *testing.T) {
	s, sched := newTestStore(t)
	s.Apply(FilterListTextChanged{Text: "||ads.example^"})
	s.Close()

	assert.Equal(t, 0, sched.live())
	assert.False(t, s.State().RebuildPending)
	sched.fire(true)
	assert.Equal(t, 0, s.State().EngineStats.Filters)
}
