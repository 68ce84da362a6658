// Package tui is the interactive terminal for oxobuilder.
//
// It follows the bubbletea model: console log changes and build lifecycle
// events arrive as messages. Entered commands go to a single intake
// goroutine, which dispatches them one at a time in the order typed.
package tui

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"git.home.luguber.info/inful/oxobuilder/internal/events"
)

// logBuffer is large so that appends from the pipeline rarely wait on the
// render loop.
const logBuffer = 1024

// intakeBuffer bounds commands typed ahead of the dispatcher.
const intakeBuffer = 64

// Dispatcher is the command surface the terminal drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, raw string)
	Snapshot() []string
	Subscribe(buffer int) (<-chan events.LogEvent, func())
}

type logMsg struct{ evt events.LogEvent }

type buildMsg struct{ evt events.BuildEvent }

type closedMsg struct{}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	systemStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	frameStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444"))
)

// Model is the terminal state.
type Model struct {
	ctx        context.Context
	dispatcher Dispatcher

	logCh      <-chan events.LogEvent
	buildCh    <-chan events.BuildEvent
	closeLog   func()
	closeBuild func()

	intake    chan string
	intakeWG  sync.WaitGroup
	closeOnce sync.Once

	input    textinput.Model
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	lines    []string
	building string
	last     string
}

// New subscribes to the dispatcher's log and to build events on bus. Call
// Close when the program exits.
func New(ctx context.Context, d Dispatcher, bus *events.Bus) *Model {
	logCh, closeLog := d.Subscribe(logBuffer)
	buildCh, closeBuild := events.Subscribe[events.BuildEvent](bus, 16)

	in := textinput.New()
	in.Prompt = promptStyle.Render("oxo@user:~$ ")
	in.Placeholder = "type help"
	in.CharLimit = 256
	in.Focus()

	m := &Model{
		ctx:        ctx,
		dispatcher: d,
		logCh:      logCh,
		buildCh:    buildCh,
		closeLog:   closeLog,
		closeBuild: closeBuild,
		intake:     make(chan string, intakeBuffer),
		input:      in,
		viewport:   viewport.New(80, 20),
		lines:      d.Snapshot(),
	}
	m.intakeWG.Add(1)
	go m.runIntake()
	return m
}

// Close waits for typed commands to be dispatched and releases the
// subscriptions. It is safe to call more than once.
func (m *Model) Close() {
	m.closeOnce.Do(func() {
		close(m.intake)
		m.intakeWG.Wait()
		m.closeLog()
		m.closeBuild()
	})
}

// runIntake is the only caller of Dispatch, so commands run in input order.
func (m *Model) runIntake() {
	defer m.intakeWG.Done()
	for raw := range m.intake {
		if m.ctx.Err() != nil {
			continue
		}
		m.dispatcher.Dispatch(m.ctx, raw)
	}
}

// Lines returns the console lines as currently rendered.
func (m *Model) Lines() []string {
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}

// Init starts listening.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForLog(m.logCh), waitForBuild(m.buildCh))
}

func waitForLog(ch <-chan events.LogEvent) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return logMsg{evt: evt}
	}
}

func waitForBuild(ch <-chan events.BuildEvent) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return buildMsg{evt: evt}
	}
}

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			raw := m.input.Value()
			m.input.Reset()
			select {
			case m.intake <- raw:
			case <-m.ctx.Done():
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case logMsg:
		switch evt := msg.evt.(type) {
		case events.LogAppended:
			m.lines = append(m.lines, evt.Line)
		case events.LogCleared:
			m.lines = nil
		}
		m.refresh()
		return m, waitForLog(m.logCh)

	case buildMsg:
		switch evt := msg.evt.(type) {
		case events.BuildStarted:
			m.building = shortID(evt.JobID)
		case events.BuildFinished:
			m.building = ""
			m.last = evt.State
		}
		return m, waitForBuild(m.buildCh)

	case closedMsg:
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize() {
	w := max(20, m.width-2)
	h := max(3, m.height-6)
	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = max(10, w-14)
	m.ready = true
	m.refresh()
}

func (m *Model) refresh() {
	styled := make([]string, len(m.lines))
	for i, l := range m.lines {
		styled[i] = styleLine(l)
	}
	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

func styleLine(line string) string {
	switch {
	case strings.HasPrefix(line, "oxo@user:~$ "):
		return promptStyle.Render(line)
	case strings.HasPrefix(line, "SUCCESS:"):
		return successStyle.Render(line)
	case strings.Contains(line, "ERROR:"):
		return errorStyle.Render(line)
	case strings.HasPrefix(line, "System:"):
		return systemStyle.Render(line)
	default:
		return line
	}
}

// Status returns the text shown in the status bar.
func (m *Model) Status() string {
	var parts []string
	switch {
	case m.building != "":
		parts = append(parts, "building "+m.building)
	default:
		parts = append(parts, "idle")
	}
	if m.last != "" {
		parts = append(parts, "last: "+m.last)
	}
	return strings.Join(parts, " · ")
}

// View renders the screen.
func (m *Model) View() string {
	if !m.ready {
		return "Starting oxobuilder..."
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render("⬡ OXO BUILDER"),
		"  ",
		statusStyle.Render(m.Status()),
	)
	body := frameStyle.Width(m.viewport.Width).Render(m.viewport.View())
	footer := footerStyle.Render("enter: run · pgup/pgdn: scroll · esc: quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.input.View(), footer)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Run starts the terminal and blocks until the user quits or ctx ends.
func Run(ctx context.Context, d Dispatcher, bus *events.Bus) error {
	m := New(ctx, d, bus)
	defer m.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
