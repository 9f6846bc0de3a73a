// Package app contains the root application model.
package app

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/amd/internal/keys"
	"github.com/zjrosen/amd/internal/log"
	"github.com/zjrosen/amd/internal/outputdiff"
	"github.com/zjrosen/amd/internal/pubsub"
	"github.com/zjrosen/amd/internal/runner"
	"github.com/zjrosen/amd/internal/supervisor"
	"github.com/zjrosen/amd/internal/ui/header"
	"github.com/zjrosen/amd/internal/ui/output"
	"github.com/zjrosen/amd/internal/ui/stats"
	"github.com/zjrosen/amd/internal/ui/styles"
)

// DefaultTickInterval is how often the running execution is polled for new
// output and elapsed time.
const DefaultTickInterval = 100 * time.Millisecond

// Controller receives the user's run control requests.
type Controller interface {
	Cancel()
	Rerun()
	Quit()
}

// Config wires the model to the rest of amd.
type Config struct {
	Version   string
	Root      string
	Command   string
	Supersede bool
	Follow    bool
	ShowHelp  bool
	// Debug shows the latest log entry under the help bar.
	Debug bool

	Events     pubsub.Subscriber[runner.Event]
	Controller Controller
	Resolver   header.Resolver

	TickInterval time.Duration
	Now          func() time.Time
}

type tickMsg time.Time

// Model is the root application state.
type Model struct {
	cfg  Config
	keys keys.KeyMap
	help help.Model

	ctx         context.Context
	cancel      context.CancelFunc
	listener    *pubsub.ContinuousListener[runner.Event]
	logListener *log.LogListener

	args    []header.Arg
	output  output.Model
	current *supervisor.Execution
	diff    *outputdiff.Summary
	lastLog string
	fatal   error

	quitting bool
	width    int
	height   int
}

// New creates the model. The command line is classified once here since it
// touches PATH and the disk.
func New(cfg Config) Model {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	var listener *pubsub.ContinuousListener[runner.Event]
	if cfg.Events != nil {
		listener = pubsub.NewContinuousListener(ctx, cfg.Events)
	}
	var logListener *log.LogListener
	if cfg.Debug {
		logListener = log.NewListener(ctx)
	}

	h := help.New()
	h.ShowAll = cfg.ShowHelp

	return Model{
		cfg:         cfg,
		keys:        keys.DefaultKeyMap(),
		help:        h,
		ctx:         ctx,
		cancel:      cancel,
		listener:    listener,
		logListener: logListener,
		args:        header.Classify(ctx, cfg.Resolver, cfg.Root, cfg.Command),
		output:      output.New(cfg.Follow),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.tick()}
	if m.listener != nil {
		cmds = append(cmds, m.listener.Listen())
	}
	if m.logListener != nil {
		cmds = append(cmds, m.logListener.Listen())
	}
	return tea.Batch(cmds...)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.cfg.TickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.layout()
		return m, nil

	case tickMsg:
		m.refreshOutput()
		return m, m.tick()

	case pubsub.Event[runner.Event]:
		if cmd := m.handleRunEvent(msg); cmd != nil {
			return m, cmd
		}
		return m, m.listener.Listen()

	case log.LogEvent:
		m.lastLog = strings.TrimSpace(msg.Payload)
		return m, m.logListener.Listen()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) handleRunEvent(ev pubsub.Event[runner.Event]) tea.Cmd {
	switch ev.Type {
	case pubsub.StartedEvent:
		m.current = ev.Payload.Execution
		m.diff = nil
		m.layout()
		m.refreshOutput()

	case pubsub.FinishedEvent:
		ex := ev.Payload.Execution
		if ex == nil || ex != m.current {
			return nil
		}
		if ev.Payload.HasDiff {
			d := ev.Payload.Diff
			m.diff = &d
		}
		m.layout()
		m.refreshOutput()

	case pubsub.FatalEvent:
		m.fatal = ev.Payload.Err
		m.quitting = true
		log.ErrorErr(log.CatUI, "Fatal error, exiting", m.fatal)
		return tea.Quit
	}
	return nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if m.cfg.Controller != nil {
			m.cfg.Controller.Quit()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		return m, m.control(Controller.Cancel)

	case key.Matches(msg, m.keys.Rerun):
		return m, m.control(Controller.Rerun)

	case key.Matches(msg, m.keys.Up):
		m.output.ScrollUp(1)
	case key.Matches(msg, m.keys.Down):
		m.output.ScrollDown(1)
	case key.Matches(msg, m.keys.PageUp):
		m.output.PageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.output.PageDown()
	case key.Matches(msg, m.keys.Top):
		m.output.Top()
	case key.Matches(msg, m.keys.Bottom):
		m.output.Bottom()
	case key.Matches(msg, m.keys.Follow):
		m.output.ToggleFollow()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
	}
	return m, nil
}

// control runs fn off the update loop; the Coordinator may be busy.
func (m Model) control(fn func(Controller)) tea.Cmd {
	c := m.cfg.Controller
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		fn(c)
		return nil
	}
}

func (m *Model) refreshOutput() {
	if m.current == nil {
		return
	}
	buf := m.current.Buffer()
	if m.output.Shows(m.current.ID(), buf.Len()) {
		return
	}
	m.output.SetOutput(m.current.ID(), buf.Snapshot())
}

func (m Model) headerView() string {
	return header.Render(header.Info{
		Version:   m.cfg.Version,
		Root:      m.cfg.Root,
		Supersede: m.cfg.Supersede,
		Command:   m.cfg.Command,
	}, m.args, m.width)
}

func (m Model) statsView() string {
	if m.current == nil {
		return styles.MutedStyle.Render("waiting for first run")
	}
	line := stats.Render(stats.FromExecution(m.current, m.diff, m.cfg.Now()), m.width)
	if err := m.current.SpawnErr(); err != nil {
		line += "\n" + styles.TruncateString(styles.ErrorStyle.Render(err.Error()), max(m.width, 0))
	}
	return line
}

func (m Model) footerView() string {
	footer := m.help.View(m.keys)
	if m.cfg.Debug {
		footer += "\n" + styles.TruncateString(styles.MutedStyle.Render(m.lastLog), max(m.width, 0))
	}
	return footer
}

func (m Model) divider() string {
	return styles.DividerStyle.Render(strings.Repeat("─", max(m.width, 1)))
}

// layout sizes the output pane to whatever the other sections leave.
func (m *Model) layout() {
	used := lipgloss.Height(m.headerView()) +
		lipgloss.Height(m.statsView()) +
		lipgloss.Height(m.footerView()) + 2
	m.output.SetSize(m.width, m.height-used)
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return strings.Join([]string{
		m.headerView(),
		m.statsView(),
		m.divider(),
		m.output.View(),
		m.divider(),
		m.footerView(),
	}, "\n")
}

// Err is the fatal error that ended the program, if any.
func (m Model) Err() error { return m.fatal }

// Close stops the event listeners.
func (m *Model) Close() {
	if m.cancel != nil {
		m.cancel()
	}
}
