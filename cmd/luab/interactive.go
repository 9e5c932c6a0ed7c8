package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/lua-bridge/bind"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	classStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	memberStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type classInfo struct {
	name       string
	members    []string
	properties []string
	options    bind.Options
}

type modelState int

const (
	stateSelectClass modelState = iota
	stateShowClass
	stateEval
	stateShowResult
)

type inspectorModel struct {
	err      error
	L        *lua.LState
	registry *bind.Registry
	classes  []classInfo
	input    textinput.Model
	result   string
	selected int
	state    modelState
}

func newInspectorModel() *inspectorModel {
	ti := textinput.New()
	ti.Placeholder = "Vec(3, 4):length()"
	ti.Prompt = "lua> "
	ti.Width = 60
	return &inspectorModel{state: stateSelectClass, input: ti}
}

type boundMsg struct {
	err      error
	L        *lua.LState
	registry *bind.Registry
	classes  []classInfo
}

type evalMsg struct {
	err    error
	result string
}

func (m *inspectorModel) Init() tea.Cmd {
	return m.bindState
}

func (m *inspectorModel) bindState() tea.Msg {
	L := lua.NewState()
	r, err := bindDemo(L)
	if err != nil {
		L.Close()
		return boundMsg{err: err}
	}

	names := r.ClassNames()
	sort.Strings(names)
	classes := make([]classInfo, 0, len(names))
	for _, name := range names {
		c := r.Class(name)
		classes = append(classes, classInfo{
			name:       name,
			members:    c.Members(),
			properties: c.Properties(),
			options:    c.Options(),
		})
	}

	return boundMsg{L: L, registry: r, classes: classes}
}

func (m *inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateEval {
			switch msg.String() {
			case "ctrl+c":
				return m.quit()
			case "enter":
				return m, m.eval
			case "esc":
				m.state = stateSelectClass
				m.input.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m.quit()

		case "up", "k":
			if m.state == stateSelectClass && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectClass && m.selected < len(m.classes)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectClass:
				m.state = stateShowClass
			case stateShowClass, stateShowResult:
				m.state = stateSelectClass
				m.result = ""
				m.err = nil
			}

		case "e":
			m.state = stateEval
			m.input.SetValue("")
			m.input.Focus()

		case "esc":
			if m.state != stateSelectClass {
				m.state = stateSelectClass
				m.result = ""
				m.err = nil
			}
		}

	case boundMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.L = msg.L
		m.registry = msg.registry
		m.classes = msg.classes

	case evalMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
		m.input.Blur()
	}

	return m, nil
}

func (m *inspectorModel) quit() (tea.Model, tea.Cmd) {
	if m.L != nil {
		m.L.Close()
	}
	return m, tea.Quit
}

func (m *inspectorModel) eval() tea.Msg {
	expr := m.input.Value()
	if strings.TrimSpace(expr) == "" {
		return evalMsg{result: ""}
	}

	top := m.L.GetTop()
	if err := m.L.DoString("return " + expr); err != nil {
		if err2 := m.L.DoString(expr); err2 != nil {
			return evalMsg{err: err}
		}
		return evalMsg{result: "ok"}
	}
	var parts []string
	for i := top + 1; i <= m.L.GetTop(); i++ {
		parts = append(parts, m.L.Get(i).String())
	}
	m.L.SetTop(top)
	if len(parts) == 0 {
		return evalMsg{result: "nil"}
	}
	return evalMsg{result: strings.Join(parts, "\t")}
}

func (m *inspectorModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if len(m.classes) == 0 {
		return "Binding classes..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Lua Bridge Inspector"))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectClass:
		b.WriteString("Bound classes:\n\n")
		for i, c := range m.classes {
			cursor := "  "
			line := m.formatClass(c)
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + line))
			} else {
				b.WriteString(cursor + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter inspect • e eval • q quit"))

	case stateShowClass:
		c := m.classes[m.selected]
		b.WriteString(fmt.Sprintf("Class %s\n\n", classStyle.Render(c.name)))
		b.WriteString(fmt.Sprintf("  options: %s\n\n", memberStyle.Render(formatOptions(c.options))))
		for _, member := range c.members {
			b.WriteString("  :" + memberStyle.Render(member) + "()\n")
		}
		for _, prop := range c.properties {
			b.WriteString("  ." + memberStyle.Render(prop) + "\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter back • e eval • q quit"))

	case stateEval:
		b.WriteString("Evaluate against the bound state:\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter run • esc back"))

	case stateShowResult:
		b.WriteString("Result:\n\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter back • q quit"))
	}

	return b.String()
}

func (m *inspectorModel) formatClass(c classInfo) string {
	return classStyle.Render(c.name) +
		fmt.Sprintf(" (%d methods, %d properties)", len(c.members), len(c.properties))
}

func formatOptions(o bind.Options) string {
	var parts []string
	if o.Has(bind.AllowOverride) {
		parts = append(parts, "allow-override")
	}
	if o.Has(bind.Extensible) {
		parts = append(parts, "extensible")
	}
	if o.Has(bind.VisibleMetatables) {
		parts = append(parts, "visible-metatables")
	}
	if o.Has(bind.PanicInterop) {
		parts = append(parts, "panic-interop")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func runInteractive() error {
	p := tea.NewProgram(newInspectorModel(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
