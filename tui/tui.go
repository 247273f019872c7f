// Package tui is the interactive terminal front end of the runtime. It is a
// Bubble Tea program that renders bridge events as a conversation and issues
// manager operations from tea.Cmds, so the update loop never blocks on an
// agent.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/manager"
)

// Options configures the TUI.
type Options struct {
	// Capabilities resolves names given to /attach.
	Capabilities func(name string) (core.Capability, error)
	// Autoload is loaded and activated on start when set.
	Autoload string
	// CancelTimeout bounds /cancel.
	CancelTimeout time.Duration
}

type role int

const (
	roleSystem role = iota
	roleUser
	roleAgent
	roleThought
	roleError
)

type entry struct {
	role   role
	author string
	text   string
}

// Model is the Bubble Tea model of the TUI.
type Model struct {
	mgr  *manager.Manager
	opts Options

	viewport viewport.Model
	input    textinput.Model
	renderer *glamour.TermRenderer

	active      *manager.Instance
	activeTitle string
	state       core.State
	activity    core.Activity

	entries   []entry
	streaming strings.Builder
	usage     core.Usage

	width, height int
	ready         bool
}

// New creates the TUI model for mgr.
func New(mgr *manager.Manager, optFns ...func(o *Options)) *Model {
	opts := Options{CancelTimeout: 5 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}
	ti := textinput.New()
	ti.Placeholder = "Type a message or /help"
	ti.Prompt = "┃ "
	ti.CharLimit = 4000
	ti.Focus()

	return &Model{
		mgr:      mgr,
		opts:     opts,
		viewport: viewport.New(80, 20),
		input:    ti,
		entries:  []entry{{role: roleSystem, text: "Welcome. Load an agent with `/load <name>`, list them with `/agents`."}},
	}
}

// Run starts a Bubble Tea program for m, subscribes it to the manager's
// bridge and blocks until the user quits.
func Run(mgr *manager.Manager, optFns ...func(o *Options)) error {
	m := New(mgr, optFns...)
	p := tea.NewProgram(m, tea.WithAltScreen())
	sub, err := mgr.Observe(NewObserver(p.Send))
	if err != nil {
		return err
	}
	defer sub.Close()
	_, err = p.Run()
	return err
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.opts.Autoload != "" {
		cmds = append(cmds, m.load(m.opts.Autoload))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			if m.active != nil && m.state == core.StateBusy {
				return m, m.cancel()
			}
			return m, nil
		case tea.KeyEnter:
			return m, m.submit()
		case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case EventMsg:
		m.handleEvent(msg.Event)
		return m, nil

	case opResultMsg:
		m.handleResult(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submit() tea.Cmd {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return nil
	}
	m.input.Reset()
	if cmd, ok := m.command(line); ok {
		return cmd
	}
	m.add(entry{role: roleUser, author: "you", text: line})
	return m.run(line)
}

func (m *Model) handleResult(msg opResultMsg) {
	switch {
	case msg.clear:
		m.entries = nil
		m.streaming.Reset()
	case msg.err != nil:
		m.add(entry{role: roleError, text: msg.err.Error()})
	}
	if msg.activate != nil {
		m.active = msg.activate
		m.activeTitle = msg.title
		m.state = msg.activate.State()
		m.activity = core.ActivityNone
	}
	if msg.text != "" {
		m.add(entry{role: roleSystem, text: msg.text})
	}
	m.refresh()
}

func (m *Model) handleEvent(e core.Event) {
	isActive := m.active != nil && e.Agent == m.active.Name()
	switch e.Kind {
	case core.EventStateChanged:
		if !isActive {
			return
		}
		m.state = e.To
		if e.To != core.StateBusy {
			m.activity = core.ActivityNone
		}
		if e.To == core.StateStopped {
			m.add(entry{role: roleSystem, text: fmt.Sprintf("%s stopped", m.activeTitle)})
			m.active = nil
		}
	case core.EventThoughtStep:
		if !isActive {
			return
		}
		m.activity = e.Activity
		if e.Activity == core.ActivityThinking && e.Text != "" {
			m.add(entry{role: roleThought, text: e.Text})
		}
	case core.EventToolInvoked:
		if !isActive {
			return
		}
		m.activity = core.ActivityToolUsing
		switch e.Phase {
		case core.ToolStarted:
			m.add(entry{role: roleSystem, text: fmt.Sprintf("🔧 %s(%s)", e.Tool, preview(e.Input))})
		case core.ToolFinished:
			m.add(entry{role: roleSystem, text: fmt.Sprintf("   ✓ %s", preview(e.Output))})
		case core.ToolFailed:
			m.add(entry{role: roleError, text: fmt.Sprintf("   ✗ %s: %s", e.Tool, e.Err)})
		}
	case core.EventTokenChunk:
		if isActive {
			m.activity = core.ActivityLLMProcessing
			m.streaming.WriteString(e.Text)
		}
	case core.EventCompleted:
		if !isActive {
			return
		}
		out := e.Output
		if out == "" {
			out = m.streaming.String()
		}
		m.streaming.Reset()
		if e.Usage != nil {
			m.usage = m.usage.Add(*e.Usage)
		}
		if out != "" {
			m.add(entry{role: roleAgent, author: m.activeTitle, text: out})
		}
	case core.EventError:
		if !isActive && e.Agent != "" {
			m.add(entry{role: roleError, text: fmt.Sprintf("%s: %s", e.Agent, e.Err)})
			return
		}
		m.streaming.Reset()
		m.add(entry{role: roleError, text: e.Err})
	}
	m.refresh()
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	const limit = 80
	if len(s) > limit {
		return s[:limit] + "…"
	}
	return s
}

func (m *Model) add(e entry) {
	m.entries = append(m.entries, e)
	m.refresh()
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	m.viewport.Width = w
	m.viewport.Height = max(h-4, 3)
	m.input.Width = max(w-4, 10)
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(max(w-4, 20)))
	if err == nil {
		m.renderer = r
	}
	m.ready = true
	m.refresh()
}

// Transcript renders the conversation as plain text.
func (m *Model) Transcript() string {
	var b strings.Builder
	for _, e := range m.entries {
		b.WriteString(m.renderEntry(e))
		b.WriteString("\n")
	}
	if m.streaming.Len() > 0 {
		b.WriteString(styleAgent.Render(m.activeTitle + ":"))
		b.WriteString(" ")
		b.WriteString(m.streaming.String())
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderEntry(e entry) string {
	switch e.role {
	case roleUser:
		return styleUser.Render(e.author+":") + " " + e.text
	case roleAgent:
		body := e.text
		if m.renderer != nil {
			if out, err := m.renderer.Render(e.text); err == nil {
				body = strings.TrimRight(out, "\n")
			}
		}
		return styleAgent.Render(e.author+":") + "\n" + body
	case roleThought:
		return styleThought.Render("💭 " + e.text)
	case roleError:
		return styleError.Render("✗ " + e.text)
	default:
		return styleSystem.Render(e.text)
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.Transcript())
	m.viewport.GotoBottom()
}

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		styleHeader.Width(m.width).Render(m.header()),
		m.viewport.View(),
		m.input.View(),
		styleFooter.Render(m.footer()),
	)
}

func (m *Model) header() string {
	if m.active == nil {
		return "agentrt | no active agent"
	}
	state := lipgloss.NewStyle().Foreground(stateColor[m.state.String()]).Render(m.state.String())
	h := fmt.Sprintf("agentrt | %s | %s", m.activeTitle, state)
	if m.state == core.StateBusy && m.activity != core.ActivityNone {
		h += " (" + activityLabel(m.activity) + ")"
	}
	return h
}

func (m *Model) footer() string {
	caps := "none"
	if m.active != nil {
		caps = capabilityList(m.active)
	}
	return fmt.Sprintf("capabilities: %s | tokens: %d | esc cancel | ctrl+c quit", caps, m.usage.TotalTokens)
}
