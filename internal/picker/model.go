// Package picker is the terminal app and duration picker shown before a
// session starts.
package picker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

// Locker is the part of the engine the picker drives.
type Locker interface {
	ListApps(ctx context.Context) ([]string, error)
	StartSession(ctx context.Context, app string, duration domain.SessionDuration) error
	LastEndReason(ctx context.Context) (domain.EndReason, bool)
}

// Choice is a confirmed, successfully started session.
type Choice struct {
	App      string
	Duration domain.SessionDuration
}

type step int

const (
	stepLoading step = iota
	stepApp
	stepDuration
	stepCustom
	stepStarting
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusSuccess
	statusError
)

type durationOption struct {
	label    string
	duration domain.SessionDuration
	custom   bool
}

var durationOptions = []durationOption{
	{label: "15 minutes", duration: domain.Timed(15)},
	{label: "30 minutes", duration: domain.Timed(30)},
	{label: "45 minutes", duration: domain.Timed(45)},
	{label: "60 minutes", duration: domain.Timed(60)},
	{label: "90 minutes", duration: domain.Timed(90)},
	{label: "Until I'm done", duration: domain.Indefinite},
	{label: "Custom…", custom: true},
}

const (
	msgTimedCongrats = "Time's up — you made it."
	msgLoading       = "Loading apps…"
	msgListFailed    = "Couldn't read your running apps. Quit and reopen applock, then try again."
	msgChooseApp     = "Please choose an app first."
	hintIndefinite   = "Exit anytime with: applock end"
)

func messageNoWindows(app string) string {
	return fmt.Sprintf("%s isn't open yet.\nOpen %s first, then come back and confirm.", app, app)
}

func messageStartFailed(app string) string {
	return fmt.Sprintf("Couldn't start.\nMake sure %s is open, then try again.", app)
}

type appsLoadedMsg struct {
	apps       []string
	err        error
	lastReason domain.EndReason
	hasReason  bool
}

type startedMsg struct {
	choice Choice
	err    error
}

// Model is the bubbletea model of the picker.
type Model struct {
	ctx    context.Context
	locker Locker
	keys   KeyMap

	step       step
	apps       []string
	appIdx     int
	durIdx     int
	custom     textinput.Model
	status     string
	statusKind statusKind
	hint       string
	chosen     *Choice
	width      int
}

// New creates a picker bound to locker.
func New(ctx context.Context, locker Locker) Model {
	ti := textinput.New()
	ti.Placeholder = "minutes, or done"
	ti.Prompt = "Minutes: "
	ti.CharLimit = 8
	ti.Width = 20

	return Model{
		ctx:    ctx,
		locker: locker,
		keys:   DefaultKeyMap(),
		step:   stepLoading,
		custom: ti,
		status: msgLoading,
	}
}

// Chosen returns the started session, if the user started one.
func (m Model) Chosen() (Choice, bool) {
	if m.chosen == nil {
		return Choice{}, false
	}
	return *m.chosen, true
}

// Init loads the app list and the one-shot end reason of the last session.
func (m Model) Init() tea.Cmd {
	return m.loadApps(true)
}

func (m Model) loadApps(withReason bool) tea.Cmd {
	ctx, locker := m.ctx, m.locker
	return func() tea.Msg {
		var msg appsLoadedMsg
		if withReason {
			msg.lastReason, msg.hasReason = locker.LastEndReason(ctx)
		}
		msg.apps, msg.err = locker.ListApps(ctx)
		return msg
	}
}

func (m Model) startSession(app string, d domain.SessionDuration) tea.Cmd {
	ctx, locker := m.ctx, m.locker
	return func() tea.Msg {
		err := locker.StartSession(ctx, app, d)
		return startedMsg{choice: Choice{App: app, Duration: d}, err: err}
	}
}

func (m *Model) setStatus(kind statusKind, msg string) {
	m.statusKind = kind
	m.status = msg
}

func (m *Model) clearStatus() {
	m.status = ""
	m.hint = ""
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case appsLoadedMsg:
		return m.onAppsLoaded(msg), nil

	case startedMsg:
		return m.onStarted(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.step {
		case stepApp:
			return m.updateApp(msg)
		case stepDuration:
			return m.updateDuration(msg)
		case stepCustom:
			return m.updateCustom(msg)
		default:
			if key.Matches(msg, m.keys.Quit) {
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m Model) onAppsLoaded(msg appsLoadedMsg) Model {
	m.step = stepApp
	m.clearStatus()
	if msg.err != nil {
		m.apps = nil
		m.setStatus(statusError, msgListFailed)
		return m
	}

	m.apps = msg.apps
	if m.appIdx >= len(m.apps) {
		m.appIdx = max(0, len(m.apps)-1)
	}
	if msg.hasReason && msg.lastReason == domain.EndTimer {
		m.setStatus(statusSuccess, msgTimedCongrats)
	}
	return m
}

func (m Model) onStarted(msg startedMsg) (tea.Model, tea.Cmd) {
	if msg.err == nil {
		choice := msg.choice
		m.chosen = &choice
		m.clearStatus()
		return m, tea.Quit
	}

	m.step = stepApp
	m.hint = ""
	if errors.Is(msg.err, domain.ErrNoWindows) {
		m.setStatus(statusError, messageNoWindows(msg.choice.App))
	} else {
		m.setStatus(statusError, messageStartFailed(msg.choice.App))
	}
	return m, nil
}

func (m Model) updateApp(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.appIdx > 0 {
			m.appIdx--
		}
	case key.Matches(msg, m.keys.Down):
		if m.appIdx < len(m.apps)-1 {
			m.appIdx++
		}
	case key.Matches(msg, m.keys.Refresh):
		m.step = stepLoading
		m.setStatus(statusInfo, msgLoading)
		return m, m.loadApps(false)
	case key.Matches(msg, m.keys.Confirm):
		if len(m.apps) == 0 {
			m.setStatus(statusError, msgChooseApp)
			return m, nil
		}
		m.clearStatus()
		m.step = stepDuration
	}
	return m, nil
}

func (m Model) updateDuration(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		m.step = stepApp
	case key.Matches(msg, m.keys.Up):
		if m.durIdx > 0 {
			m.durIdx--
		}
	case key.Matches(msg, m.keys.Down):
		if m.durIdx < len(durationOptions)-1 {
			m.durIdx++
		}
	case key.Matches(msg, m.keys.Confirm):
		opt := durationOptions[m.durIdx]
		if opt.custom {
			m.step = stepCustom
			m.custom.SetValue("")
			return m, m.custom.Focus()
		}
		return m.begin(opt.duration)
	}
	return m, nil
}

func (m Model) updateCustom(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.custom.Blur()
		m.step = stepDuration
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		m.custom.Blur()
		return m.begin(domain.ParseDuration(m.custom.Value()))
	}

	var cmd tea.Cmd
	m.custom, cmd = m.custom.Update(msg)
	return m, cmd
}

func (m Model) begin(d domain.SessionDuration) (tea.Model, tea.Cmd) {
	app := m.apps[m.appIdx]
	m.step = stepStarting
	m.setStatus(statusInfo, fmt.Sprintf("Starting session for %s…", app))
	m.hint = ""
	if !d.IsTimed() {
		m.hint = hintIndefinite
	}
	return m, m.startSession(app, d)
}

// View renders the picker.
func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("applock") + "\n\n")

	switch m.step {
	case stepApp:
		sb.WriteString("Choose an app to lock onto:\n\n")
		if len(m.apps) == 0 {
			sb.WriteString(hintStyle.Render("  no apps with open windows") + "\n")
		}
		for i, app := range m.apps {
			sb.WriteString(renderItem(app, i == m.appIdx))
		}
	case stepDuration, stepCustom:
		sb.WriteString(fmt.Sprintf("How long with %s?\n\n", m.apps[m.appIdx]))
		for i, opt := range durationOptions {
			sb.WriteString(renderItem(opt.label, i == m.durIdx))
		}
		if m.step == stepCustom {
			sb.WriteString("\n" + m.custom.View() + "\n")
		}
	}

	if m.status != "" {
		sb.WriteString("\n" + m.renderStatus() + "\n")
	}
	if m.hint != "" {
		sb.WriteString(hintStyle.Render(m.hint) + "\n")
	}
	sb.WriteString("\n" + hintStyle.Render(m.helpLine()))

	frame := frameStyle
	if m.width > 0 {
		frame = frame.MaxWidth(m.width)
	}
	return frame.Render(sb.String())
}

func renderItem(label string, selected bool) string {
	if selected {
		return selectedStyle.Render("> "+label) + "\n"
	}
	return itemStyle.Render(label) + "\n"
}

func (m Model) renderStatus() string {
	switch m.statusKind {
	case statusSuccess:
		return successStyle.Render(m.status)
	case statusError:
		return errorStyle.Render(m.status)
	default:
		return m.status
	}
}

func (m Model) helpLine() string {
	bindings := []key.Binding{m.keys.Up, m.keys.Down, m.keys.Confirm}
	switch m.step {
	case stepApp:
		bindings = append(bindings, m.keys.Refresh, m.keys.Quit)
	case stepDuration, stepCustom:
		bindings = append(bindings, m.keys.Back)
	}

	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

// Run shows the picker until a session starts or the user quits.
func Run(ctx context.Context, locker Locker, opts ...tea.ProgramOption) (Choice, bool, error) {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(New(ctx, locker), opts...)
	final, err := p.Run()
	if err != nil {
		return Choice{}, false, fmt.Errorf("picker: %w", err)
	}
	choice, ok := final.(Model).Chosen()
	return choice, ok, nil
}
