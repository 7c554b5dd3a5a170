// Package tui is the interactive terminal dashboard. The model only mirrors
// input fields and renders state snapshots; every change is sent to the
// coordinator as an event.
package tui

import (
	"fmt"
	"strings"

	"github.com/bnema/adblock-dashboard/internal/dashboard"
	"github.com/bnema/adblock-dashboard/internal/engine"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Dispatcher receives the events produced by user input
type Dispatcher interface {
	Dispatch(ev dashboard.Event)
}

// StateMsg delivers a new state snapshot to the program
type StateMsg struct {
	State dashboard.State
}

type resourcesMsg struct {
	text string
	err  error
}

// focus order
const (
	fieldFilter = iota
	fieldList
	fieldNetURL
	fieldNetSource
	fieldNetType
	fieldCosmetic
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldFilter:    "Filter",
	fieldList:      "Filter list",
	fieldNetURL:    "Request URL",
	fieldNetSource: "Source URL",
	fieldNetType:   "Request type",
	fieldCosmetic:  "Page URL",
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	focusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	blockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	allowedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	sectionStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Model is the bubbletea model of the dashboard
type Model struct {
	dispatch      Dispatcher
	loadResources func() (string, error)

	// the fieldList slot is unused; the list is edited in list
	inputs [fieldCount]textinput.Model
	list   textarea.Model
	focus  int

	state  dashboard.State
	status string
	width  int
}

// Option configures a Model
type Option func(*Model)

// WithResourceLoader enables reloading resources with ctrl+r
func WithResourceLoader(load func() (string, error)) Option {
	return func(m *Model) { m.loadResources = load }
}

// New creates a model whose fields mirror the given state
func New(d Dispatcher, st dashboard.State, opts ...Option) Model {
	m := Model{dispatch: d, state: st}

	values := [fieldCount]string{
		fieldFilter:    st.FilterText,
		fieldNetURL:    st.Network.URL,
		fieldNetSource: st.Network.SourceURL,
		fieldNetType:   st.Network.RequestType,
		fieldCosmetic:  st.CosmeticURL,
	}
	placeholders := [fieldCount]string{
		fieldFilter:    "||ads.example^$script",
		fieldNetURL:    "https://ads.example/x.js",
		fieldNetSource: "https://site.test",
		fieldNetType:   "script",
		fieldCosmetic:  "https://site.test/page",
	}
	for i := range m.inputs {
		if i == fieldList {
			continue
		}
		ti := textinput.New()
		ti.Prompt = "> "
		ti.Placeholder = placeholders[i]
		ti.Width = 60
		ti.SetValue(values[i])
		m.inputs[i] = ti
	}

	ta := textarea.New()
	ta.Placeholder = "! Title: My list\n||ads.example^\nexample.com##.banner"
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.ShowLineNumbers = true
	ta.SetWidth(70)
	ta.SetHeight(8)
	ta.SetValue(st.FilterListText)
	m.list = ta

	for _, opt := range opts {
		opt(&m)
	}

	m.inputs[fieldFilter].Focus()
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := max(msg.Width-8, 20)
		for i := range m.inputs {
			m.inputs[i].Width = w
		}
		m.list.SetWidth(w)
		return m, nil

	case StateMsg:
		m.state = msg.State
		return m, nil

	case resourcesMsg:
		if msg.err != nil {
			m.status = "resources: " + msg.err.Error()
			return m, nil
		}
		m.dispatch.Dispatch(dashboard.ResourcesLoaded{JSON: msg.text})
		m.status = "resources reloaded"
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab":
			return m, m.setFocus((m.focus + 1) % fieldCount)
		case "shift+tab":
			return m, m.setFocus((m.focus + fieldCount - 1) % fieldCount)
		case "ctrl+s":
			m.dispatch.Dispatch(dashboard.ExportRequested{})
			m.status = "exporting " + m.state.ExportFormat.Filename()
			return m, nil
		case "ctrl+t":
			next := engine.FormatJSON
			if m.state.ExportFormat == engine.FormatJSON {
				next = engine.FormatDat
			}
			m.dispatch.Dispatch(dashboard.ExportFormatChanged{Format: next})
			m.status = "export format: " + string(next)
			return m, nil
		case "ctrl+r":
			if m.loadResources == nil {
				m.status = "no resources file configured"
				return m, nil
			}
			load := m.loadResources
			return m, func() tea.Msg {
				text, err := load()
				return resourcesMsg{text: text, err: err}
			}
		}
	}

	before := m.value(m.focus)
	cmd := m.updateFocused(msg)
	if after := m.value(m.focus); after != before {
		m.dispatch.Dispatch(changeEvent(m.focus, after))
	}
	return m, cmd
}

func (m *Model) setFocus(i int) tea.Cmd {
	if m.focus == fieldList {
		m.list.Blur()
	} else {
		m.inputs[m.focus].Blur()
	}
	m.focus = i
	if i == fieldList {
		return m.list.Focus()
	}
	return m.inputs[i].Focus()
}

func (m *Model) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if m.focus == fieldList {
		m.list, cmd = m.list.Update(msg)
	} else {
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	}
	return cmd
}

func (m Model) value(field int) string {
	if field == fieldList {
		return m.list.Value()
	}
	return m.inputs[field].Value()
}

func changeEvent(field int, text string) dashboard.Event {
	switch field {
	case fieldFilter:
		return dashboard.FilterTextChanged{Text: text}
	case fieldList:
		return dashboard.FilterListTextChanged{Text: text}
	case fieldNetURL:
		return dashboard.NetworkURLChanged{Text: text}
	case fieldNetSource:
		return dashboard.NetworkSourceChanged{Text: text}
	case fieldNetType:
		return dashboard.NetworkTypeChanged{Text: text}
	default:
		return dashboard.CosmeticURLChanged{Text: text}
	}
}

// View implements tea.Model
func (m Model) View() string {
	st := m.state
	var sections []string

	sections = append(sections, m.section("Single filter",
		m.field(fieldFilter),
		resultText(RenderFilter(st.ParsedFilter), st.ParsedFilter.Err != nil),
		labelStyle.Render("content blocking:"),
		resultText(RenderContentBlocking(st.ContentBlocking), st.ContentBlocking != nil && st.ContentBlocking.Err != nil),
	))

	listStatus := RenderRebuild(st)
	if st.ResourcesError != nil {
		listStatus += "\n" + errorStyle.Render("resources: "+st.ResourcesError.Error())
	}
	sections = append(sections, m.section("Filter list",
		m.field(fieldList),
		resultText(listStatus, st.RebuildError != nil),
		RenderMetadata(st.ListMetadata),
		RenderStats(st.ListStats, st.EngineStats),
	))

	sections = append(sections, m.section("Network request",
		m.field(fieldNetURL),
		m.field(fieldNetSource),
		m.field(fieldNetType),
		m.networkView(),
	))

	sections = append(sections, m.section("Cosmetic resources",
		m.field(fieldCosmetic),
		RenderCosmetic(st.CosmeticResult),
	))

	help := fmt.Sprintf("tab/shift+tab move • ctrl+s export (%s) • ctrl+t format • ctrl+r reload resources • esc quit",
		st.ExportFormat)
	footer := helpStyle.Render(help)
	if m.status != "" {
		footer = m.status + "\n" + footer
	}
	sections = append(sections, footer)

	return strings.Join(sections, "\n")
}

func (m Model) section(title string, lines ...string) string {
	body := titleStyle.Render(title) + "\n" + strings.Join(lines, "\n")
	style := sectionStyle
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(body)
}

func (m Model) field(i int) string {
	label := labelStyle.Render(fieldLabels[i])
	if i == m.focus {
		label = focusStyle.Render(fieldLabels[i])
	}
	if i == fieldList {
		return label + "\n" + m.list.View()
	}
	return label + "\n" + m.inputs[i].View()
}

func (m Model) networkView() string {
	r := m.state.NetworkResult
	text := RenderNetwork(r)
	switch {
	case r == nil:
		return text
	case r.Err != nil:
		return errorStyle.Render(text)
	case r.Blocker.Matched:
		return blockedStyle.Render(text)
	default:
		return allowedStyle.Render(text)
	}
}

func resultText(text string, failed bool) string {
	if failed {
		return errorStyle.Render(text)
	}
	return text
}
