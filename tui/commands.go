package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/manager"
)

// opResultMsg reports the outcome of a manager operation run in a tea.Cmd.
type opResultMsg struct {
	text     string
	err      error
	activate *manager.Instance
	title    string // display name of activate
	clear    bool
}

// activated reads the display name off the update loop, since it may call
// into the agent.
func activated(inst *manager.Instance, format string) opResultMsg {
	title := inst.DisplayName()
	return opResultMsg{text: fmt.Sprintf(format, title), activate: inst, title: title}
}

const helpText = `Commands:
  /agents                 list available agents
  /load <name>            load an agent and make it active
  /use <name>             switch the active agent
  /attach <capability>    attach a capability to the active agent
  /detach <capability>    detach a capability
  /cancel                 cancel the running task
  /unload                 unload the active agent
  /forget                 clear the conversation view
  /help                   show this help
  /quit                   exit
Anything else is sent to the active agent.`

// command parses a slash command into a tea.Cmd. ok is false for plain
// input.
func (m *Model) command(line string) (tea.Cmd, bool) {
	if !strings.HasPrefix(line, "/") {
		return nil, false
	}
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]
	arg := strings.Join(args, " ")

	switch name {
	case "/quit", "/exit":
		return tea.Quit, true
	case "/help":
		return result(helpText, nil), true
	case "/forget":
		return func() tea.Msg { return opResultMsg{clear: true} }, true
	case "/agents":
		return m.listAgents(), true
	case "/load":
		return m.load(arg), true
	case "/use":
		return m.use(arg), true
	case "/attach":
		return m.attach(arg), true
	case "/detach":
		return m.detach(arg), true
	case "/cancel":
		return m.cancel(), true
	case "/unload":
		return m.unload(), true
	default:
		return result("", fmt.Errorf("unknown command %s (try /help)", name)), true
	}
}

func result(text string, err error) tea.Cmd {
	return func() tea.Msg { return opResultMsg{text: text, err: err} }
}

func (m *Model) listAgents() tea.Cmd {
	mgr := m.mgr
	return func() tea.Msg {
		scan := mgr.Available()
		var b strings.Builder
		for _, d := range scan.Descriptors {
			state := "available"
			if inst, ok := mgr.Instance(d.Name()); ok {
				state = inst.State().String()
			}
			fmt.Fprintf(&b, "- **%s** (%s) %s: %s\n", d.Name(), d.DisplayName(), state, d.Description())
		}
		for _, err := range scan.Errors {
			fmt.Fprintf(&b, "- invalid module: %v\n", err)
		}
		if b.Len() == 0 {
			b.WriteString("no agent modules found")
		}
		return opResultMsg{text: b.String()}
	}
}

func (m *Model) load(name string) tea.Cmd {
	if name == "" {
		return result("", fmt.Errorf("usage: /load <name>"))
	}
	mgr := m.mgr
	return func() tea.Msg {
		inst, err := mgr.LoadByName(context.Background(), name)
		if err != nil {
			return opResultMsg{err: err}
		}
		return activated(inst, "loaded %s")
	}
}

func (m *Model) use(name string) tea.Cmd {
	inst, ok := m.mgr.Instance(name)
	if !ok {
		return result("", fmt.Errorf("agent %q is not loaded", name))
	}
	return func() tea.Msg {
		return activated(inst, "switched to %s")
	}
}

func (m *Model) attach(name string) tea.Cmd {
	inst, err := m.requireActive()
	if err != nil {
		return result("", err)
	}
	if m.opts.Capabilities == nil {
		return result("", fmt.Errorf("no capabilities are configured"))
	}
	mgr, lookup := m.mgr, m.opts.Capabilities
	return func() tea.Msg {
		c, err := lookup(name)
		if err != nil {
			return opResultMsg{err: err}
		}
		if err := mgr.AttachCapability(inst, c); err != nil {
			return opResultMsg{err: err}
		}
		return opResultMsg{text: fmt.Sprintf("attached %s to %s", c.Name(), inst.Name())}
	}
}

func (m *Model) detach(name string) tea.Cmd {
	inst, err := m.requireActive()
	if err != nil {
		return result("", err)
	}
	mgr := m.mgr
	return func() tea.Msg {
		if err := mgr.DetachCapability(inst, name); err != nil {
			return opResultMsg{err: err}
		}
		return opResultMsg{text: fmt.Sprintf("detached %s", name)}
	}
}

func (m *Model) cancel() tea.Cmd {
	inst, err := m.requireActive()
	if err != nil {
		return result("", err)
	}
	mgr, grace := m.mgr, m.opts.CancelTimeout
	return func() tea.Msg {
		ctx, done := context.WithTimeout(context.Background(), grace)
		defer done()
		if err := mgr.Cancel(ctx, inst); err != nil {
			return opResultMsg{err: err}
		}
		return opResultMsg{text: "cancelled"}
	}
}

func (m *Model) unload() tea.Cmd {
	inst, err := m.requireActive()
	if err != nil {
		return result("", err)
	}
	mgr := m.mgr
	return func() tea.Msg {
		if err := mgr.UnloadAgent(context.Background(), inst); err != nil {
			return opResultMsg{err: err}
		}
		return opResultMsg{text: fmt.Sprintf("unloaded %s", inst.Name())}
	}
}

func (m *Model) run(input string) tea.Cmd {
	inst, err := m.requireActive()
	if err != nil {
		return result("", err)
	}
	mgr := m.mgr
	return func() tea.Msg {
		if _, err := mgr.Run(inst, input); err != nil {
			return opResultMsg{err: err}
		}
		return nil
	}
}

func (m *Model) requireActive() (*manager.Instance, error) {
	if m.active == nil {
		return nil, fmt.Errorf("no active agent (use /load <name>)")
	}
	return m.active, nil
}

func capabilityList(inst *manager.Instance) string {
	caps := inst.Capabilities()
	sort.Strings(caps)
	if len(caps) == 0 {
		return "none"
	}
	return strings.Join(caps, ", ")
}

// activityLabel renders the activity sub-state shown while BUSY.
func activityLabel(a core.Activity) string {
	return strings.ReplaceAll(string(a), "_", " ")
}
