// Package dashboard coordinates the dashboard state: it applies user and
// timer events to a single owned State, recomputes derived fields and
// debounces the expensive engine rebuild.
package dashboard

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bnema/adblock-dashboard/internal/engine"
	"github.com/bnema/adblock-dashboard/internal/models"
	"github.com/bnema/adblock-dashboard/internal/resources"
)

// Adapter is the engine capability set the store consumes.
// engine.Adapter implements it.
type Adapter interface {
	NewEngine() *engine.Engine
	ParseFilter(text string) (models.Filter, error)
	ConvertToContentBlocking(f models.Filter) (models.CbEquivalent, error)
	BuildFilterSet(listText string) (*engine.FilterSet, models.ListMetadata, error)
	CompileEngine(set *engine.FilterSet) (*engine.Engine, error)
	ApplyResources(e *engine.Engine, resources []models.Resource)
	MatchNetworkRequest(e *engine.Engine, url, sourceURL, requestType string) (engine.BlockerResult, error)
	CosmeticResourcesFor(e *engine.Engine, url string) engine.CosmeticResources
	SerializeEngine(e *engine.Engine, format engine.Format) ([]byte, error)
}

// Downloader saves an exported engine under a file name
type Downloader interface {
	Save(name string, data []byte) error
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics records coordinator metrics
func WithMetrics(m *Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithDownloader sets the export destination
func WithDownloader(d Downloader) Option {
	return func(s *Store) { s.downloader = d }
}

// WithScheduler replaces time.AfterFunc for the debounce timer
func WithScheduler(sched Scheduler) Option {
	return func(s *Store) { s.sched = sched }
}

// WithDebounce sets the rebuild quiet period
func WithDebounce(d time.Duration) Option {
	return func(s *Store) { s.delay = d }
}

// WithEngine starts from a prebuilt engine instead of an empty one
func WithEngine(e *engine.Engine) Option {
	return func(s *Store) { s.state.engine = e }
}

// WithExportFormat sets the initial export format
func WithExportFormat(f engine.Format) Option {
	return func(s *Store) { s.state.ExportFormat = f }
}

// Store owns the application state. Apply calls are serialized behind one
// mutex, so each event runs to completion before the next one starts.
type Store struct {
	mu       sync.Mutex
	adapter  Adapter
	state    State
	debounce *Debouncer

	// post delivers timer events; Apply unless a Dispatcher is bound
	post func(Event)

	sched      Scheduler
	delay      time.Duration
	downloader Downloader
	logger     *slog.Logger
	metrics    *Metrics
}

// NewStore creates a store with empty inputs and an empty engine
func NewStore(adapter Adapter, opts ...Option) *Store {
	s := &Store{
		adapter: adapter,
		delay:   DefaultDebounce,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		state:   State{ExportFormat: engine.FormatDat},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.post = s.Apply
	s.debounce = NewDebouncer(s.delay, s.sched)

	if s.state.engine == nil {
		s.state.engine = adapter.NewEngine()
	}
	s.state.Resources = s.state.engine.Resources()
	s.state.EngineStats = s.state.engine.Stats()
	s.state.ListMetadata = s.state.engine.Metadata()
	s.state.ParsedFilter, s.state.ContentBlocking = deriveFilter(adapter, "")
	return s
}

func (s *Store) bind(post func(Event)) {
	s.mu.Lock()
	s.post = post
	s.mu.Unlock()
}

// State returns a snapshot of the current state. The store replaces derived
// values instead of mutating them, so the snapshot stays valid after later
// events.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Apply runs one event to completion. It never fails; errors end up as
// values in the state.
func (s *Store) Apply(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.event(ev.Kind())
	s.logger.Debug("apply event", "kind", ev.Kind())

	switch ev := ev.(type) {
	case FilterTextChanged:
		s.state.FilterText = ev.Text
		s.state.ParsedFilter, s.state.ContentBlocking = deriveFilter(s.adapter, ev.Text)

	case FilterListTextChanged:
		s.state.FilterListText = ev.Text
		post := s.post
		if s.debounce.Arm(func(gen uint64) { post(DebounceElapsed{Generation: gen}) }) {
			s.metrics.cancelled()
		}
		s.logger.Debug("rebuild scheduled", "delay", s.debounce.Delay())
		s.state.RebuildPending = true
		s.state.NetworkResult = pendingNetworkResult(s.state.Network)

	case DebounceElapsed:
		if !s.debounce.Take(ev.Generation) {
			s.metrics.stale()
			s.logger.Debug("ignoring superseded rebuild timer", "generation", ev.Generation)
			return
		}
		s.rebuild()

	case NetworkURLChanged:
		s.state.Network.URL = ev.Text
		s.refreshNetwork()

	case NetworkSourceChanged:
		s.state.Network.SourceURL = ev.Text
		s.refreshNetwork()

	case NetworkTypeChanged:
		s.state.Network.RequestType = ev.Text
		s.refreshNetwork()

	case CosmeticURLChanged:
		s.state.CosmeticURL = ev.Text
		s.state.CosmeticResult = deriveCosmetic(s.adapter, s.state.engine, ev.Text)

	case ResourcesLoaded:
		s.loadResources(ev.JSON)

	case ExportRequested:
		s.export()

	case ExportFormatChanged:
		format, err := engine.ParseFormat(string(ev.Format))
		if err != nil {
			s.logger.Warn("ignoring export format", "error", err)
			return
		}
		s.state.ExportFormat = format
	}
}

// Flush runs a pending rebuild now instead of waiting for the timer.
// It reports whether a rebuild was pending.
func (s *Store) Flush() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen, ok := s.debounce.Flush()
	if !ok {
		return false
	}
	s.logger.Debug("flushing rebuild", "generation", gen)
	s.rebuild()
	return true
}

// Close stops the pending rebuild timer, if any
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debounce.Cancel() {
		s.state.RebuildPending = false
	}
}

// rebuild replaces the engine, metadata and stats together, or none of them
func (s *Store) rebuild() {
	start := time.Now()
	s.state.RebuildPending = false

	set, meta, err := s.adapter.BuildFilterSet(s.state.FilterListText)
	var e *engine.Engine
	if err == nil {
		e, err = s.adapter.CompileEngine(set)
	}

	if err != nil {
		s.state.RebuildError = err
		s.metrics.rebuild("failure", time.Since(start))
		s.logger.Warn("engine rebuild failed, keeping previous engine", "error", err)
	} else {
		s.adapter.ApplyResources(e, s.state.Resources)
		s.state.engine = e
		s.state.ListMetadata = meta
		s.state.ListStats = set.Stats
		s.state.EngineStats = e.Stats()
		s.state.RebuildError = nil
		s.metrics.rebuild("success", time.Since(start))
		s.logger.Info("engine rebuilt",
			"filters", s.state.EngineStats.Filters,
			"title", meta.Title,
			"duration", time.Since(start))
	}

	s.refreshNetwork()
	s.refreshCosmetic()
}

func (s *Store) loadResources(jsonText string) {
	res, err := resources.Parse(jsonText)
	if err != nil {
		s.state.ResourcesError = err
		s.logger.Warn("resources not loaded", "error", err)
		return
	}

	s.state.Resources = res
	s.state.ResourcesError = nil
	s.adapter.ApplyResources(s.state.engine, res)
	s.state.EngineStats = s.state.engine.Stats()
	s.logger.Info("resources loaded", "count", len(res))

	s.refreshNetwork()
	s.refreshCosmetic()
}

func (s *Store) export() {
	format := s.state.ExportFormat
	data, err := s.adapter.SerializeEngine(s.state.engine, format)
	if err != nil {
		s.logger.Error("serialize engine", "format", format, "error", err)
		return
	}
	if s.downloader == nil {
		s.logger.Warn("export requested but no downloader is configured")
		return
	}
	if err := s.downloader.Save(format.Filename(), data); err != nil {
		s.logger.Error("save export", "file", format.Filename(), "error", err)
		return
	}
	s.logger.Info("engine exported", "file", format.Filename(), "bytes", len(data))
	if format == engine.FormatJSON {
		stats := s.state.EngineStats
		s.logger.Info("content blocking rules", "rules", stats.ContentBlocking, "unconvertible", stats.Unconvertible)
	}
}

func (s *Store) refreshNetwork() {
	s.state.NetworkResult = deriveNetwork(s.adapter, s.state.engine, s.state.Network)
}

// refreshCosmetic only recomputes a cosmetic result that was already shown
func (s *Store) refreshCosmetic() {
	if s.state.CosmeticResult == nil {
		return
	}
	s.state.CosmeticResult = deriveCosmetic(s.adapter, s.state.engine, s.state.CosmeticURL)
}

// pendingNetworkResult hides the previous match while a rebuild is queued
func pendingNetworkResult(q NetworkQuery) *NetworkResult {
	if q.IsEmpty() {
		return nil
	}
	return &NetworkResult{Err: ErrRebuildPending}
}
