package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-bridge/loader"
	"github.com/wippyai/wasm-bridge/wasm"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	refStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type inspectorModel struct {
	err       error
	coord     *loader.Coordinator
	filename  string
	identity  string
	raw       []byte
	refs      []refInfo
	report    string
	selected  int
	filter    textinput.Model
	filtering bool
}

type loadedMsg struct {
	err  error
	raw  []byte
	refs []refInfo
}

type transformedMsg struct {
	err     error
	changed bool
	report  string
}

func newInspectorModel(filename string) *inspectorModel {
	ti := textinput.New()
	ti.Placeholder = "filter references"
	ti.Prompt = "/ "
	ti.Width = 40
	return &inspectorModel{
		filename: filename,
		identity: identityFor(filename),
		coord:    loader.New(loader.Config{}),
		filter:   ti,
	}
}

func (m *inspectorModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *inspectorModel) loadModule() tea.Msg {
	data, err := os.ReadFile(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}
	mod, err := wasm.Decode(data)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{raw: data, refs: legacyRefs(mod)}
}

func (m *inspectorModel) transform() tea.Msg {
	m.coord.ForceRetransform(m.identity)
	_, changed := m.coord.Transform(m.identity, m.raw)
	return transformedMsg{changed: changed, report: m.coord.Report()}
}

func (m *inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.filtering {
			switch msg.String() {
			case "enter", "esc":
				m.filtering = false
				m.filter.Blur()
			default:
				var cmd tea.Cmd
				m.filter, cmd = m.filter.Update(msg)
				m.selected = 0
				return m, cmd
			}
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.selected < len(m.visibleRefs())-1 {
				m.selected++
			}

		case "/":
			m.filtering = true
			m.filter.Focus()

		case "t":
			if m.raw != nil {
				return m, m.transform
			}

		case "esc":
			m.filter.SetValue("")
			m.selected = 0
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.raw = msg.raw
		m.refs = msg.refs

	case transformedMsg:
		m.err = msg.err
		m.report = msg.report
	}

	return m, nil
}

func (m *inspectorModel) visibleRefs() []refInfo {
	needle := strings.ToLower(m.filter.Value())
	if needle == "" {
		return m.refs
	}
	var out []refInfo
	for _, r := range m.refs {
		hay := strings.ToLower(r.module + "#" + r.name + " " + r.target)
		if strings.Contains(hay, needle) {
			out = append(out, r)
		}
	}
	return out
}

func (m *inspectorModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.raw == nil {
		return "Loading module..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Bridge Inspector"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	refs := m.visibleRefs()
	if len(m.refs) == 0 {
		b.WriteString(okStyle.Render("No legacy references in this module."))
		b.WriteString("\n")
	} else {
		b.WriteString(fmt.Sprintf("Legacy references (%d):\n\n", len(refs)))
		for i, r := range refs {
			line := m.formatRef(r)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
	}

	if m.filtering || m.filter.Value() != "" {
		b.WriteString("\n")
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}

	if m.report != "" {
		b.WriteString("\n")
		b.WriteString(okStyle.Render(m.report))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ select • t transform • / filter • esc clear • q quit"))
	return b.String()
}

func (m *inspectorModel) formatRef(r refInfo) string {
	return kindStyle.Render("["+r.kind+"] ") +
		refStyle.Render(r.module+"#"+r.name) +
		" -> " + r.target
}

func runInteractive(filename string) error {
	p := tea.NewProgram(newInspectorModel(filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
