package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/tox-bridge/bridge"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#2E7D6B")).
			Padding(0, 1)

	cmdStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#2E7D6B"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// Commands listed per screen before the menu scrolls.
const pageSize = 12

type modelState int

const (
	stateSelect modelState = iota
	stateInput
	stateResult
)

type consoleModel struct {
	err      error
	bridge   *bridge.Bridge
	backend  string
	result   string
	cmds     []command
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type resultMsg struct {
	err    error
	result string
}

func newConsoleModel(b *bridge.Bridge, backend string, cmds []command) *consoleModel {
	return &consoleModel{bridge: b, backend: backend, cmds: cmds, state: stateSelect}
}

func (m *consoleModel) Init() tea.Cmd {
	return nil
}

func (m *consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInput {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelect && m.selected > 0 {
				m.selected--
				return m, nil
			}

		case "down", "j":
			if m.state == stateSelect && m.selected < len(m.cmds)-1 {
				m.selected++
				return m, nil
			}

		case "enter":
			switch m.state {
			case stateSelect:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.runCommand
				}
				m.state = stateInput
				return m, nil

			case stateInput:
				return m, m.runCommand

			case stateResult:
				m.reset()
				return m, nil
			}

		case "tab":
			if m.state == stateInput && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
				return m, nil
			}

		case "esc":
			if m.state != stateSelect {
				m.reset()
				return m, nil
			}
		}

	case resultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateResult
		return m, nil
	}

	if m.state == stateInput {
		cmds := make([]tea.Cmd, 0, len(m.inputs))
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

func (m *consoleModel) reset() {
	m.state = stateSelect
	m.inputs = nil
	m.result = ""
	m.err = nil
}

func (m *consoleModel) prepareInputs() {
	c := m.cmds[m.selected]
	m.inputs = make([]textinput.Model, len(c.params))
	for i, p := range c.params {
		ti := textinput.New()
		ti.Placeholder = p.typeStr
		ti.Prompt = p.name + ": "
		ti.Width = 48
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *consoleModel) runCommand() tea.Msg {
	c := m.cmds[m.selected]
	values := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		values[i] = input.Value()
	}
	args, err := convertArgs(values, c.params)
	if err != nil {
		return resultMsg{err: err}
	}
	out, err := c.run(context.Background(), args)
	return resultMsg{result: out, err: err}
}

func (m *consoleModel) sessionLine() string {
	ids := m.bridge.Sessions()
	if len(ids) == 0 {
		return "no sessions"
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		state, err := m.bridge.State(id)
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d:%s", id, state))
	}
	return "sessions " + strings.Join(parts, " ")
}

func (m *consoleModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Tox Bridge"))
	b.WriteString(" ")
	b.WriteString(m.backend)
	b.WriteString("  ")
	b.WriteString(helpStyle.Render(m.sessionLine()))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelect:
		b.WriteString("Select a command:\n\n")
		start := 0
		if m.selected >= pageSize {
			start = m.selected - pageSize + 1
		}
		end := min(start+pageSize, len(m.cmds))
		for i := start; i < end; i++ {
			line := formatCommand(m.cmds[i], func(s string) string { return typeStyle.Render(s) })
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter run • q quit"))

	case stateInput:
		c := m.cmds[m.selected]
		b.WriteString(fmt.Sprintf("Running %s\n\n", cmdStyle.Render(c.name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(c.params[i].typeStr))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter run • esc back"))

	case stateResult:
		c := m.cmds[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", cmdStyle.Render(c.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func runInteractive(b *bridge.Bridge, backend string, cmds []command) error {
	p := tea.NewProgram(newConsoleModel(b, backend, cmds), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
