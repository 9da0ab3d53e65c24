package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/eosio-wasm/wasm-ld/ld"
	"github.com/eosio-wasm/wasm-ld/symtab"
)

// pipelinePhases lists the ten pipeline phases in the order ld.Link
// reaches them, in the names ld.Config.Progress reports them under.
var pipelinePhases = []string{
	"segment", "layout", "feature", "index", "synth",
	"dispatch", "typetab", "section", "write", "abi",
}

var phaseLabels = map[string]string{
	"segment":  "Segment Planner",
	"layout":   "Memory Layout Engine",
	"feature":  "Feature Reconciler",
	"index":    "Index Assigner",
	"synth":    "Synthetic Function Emitter",
	"dispatch": "Contract Dispatcher Emitter",
	"typetab":  "Type/Import/Export Calculator",
	"section":  "Section Assembler",
	"write":    "Writer Driver",
	"abi":      "ABI Emitter",
}

var (
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA")).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#7D56F4")).Padding(0, 1)
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

type phaseMsg string

type linkDoneMsg struct {
	result *ld.Result
	err    error
}

type progressModel struct {
	spinner  spinner.Model
	reached  int // index into pipelinePhases of the furthest phase seen
	result   *ld.Result
	err      error
	finished bool
}

func newProgressModel() progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return progressModel{spinner: s, reached: -1}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case phaseMsg:
		for i, p := range pipelinePhases {
			if p == string(msg) {
				m.reached = i
			}
		}
		return m, nil
	case linkDoneMsg:
		m.finished = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m progressModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("eosio-ld"))
	b.WriteString("\n\n")

	for i, p := range pipelinePhases {
		label := phaseLabels[p]
		switch {
		case i < m.reached || (m.finished && m.err == nil):
			b.WriteString(doneStyle.Render("  ✓ " + label))
		case i == m.reached && !m.finished:
			b.WriteString(activeStyle.Render(m.spinner.View() + " " + label))
		default:
			b.WriteString(pendingStyle.Render("  · " + label))
		}
		b.WriteString("\n")
	}

	if m.finished && m.err != nil {
		b.WriteString("\n")
		b.WriteString(errStyle.Render("link failed: " + m.err.Error()))
		b.WriteString("\n")
	}

	return b.String()
}

// runWithProgress drives ld.Link in a background goroutine while a
// bubbletea checklist renders the ten pipeline phases, grounded on
// cmd/run/interactive.go's message-passing tea.Model shape (loadedMsg
// there, phaseMsg/linkDoneMsg here).
func runWithProgress(tab *symtab.Table, cfg ld.Config) (*ld.Result, error) {
	p := tea.NewProgram(newProgressModel())

	cfg.Progress = func(phase string) { p.Send(phaseMsg(phase)) }

	go func() {
		res, err := ld.Link(tab, cfg)
		p.Send(linkDoneMsg{result: res, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m := final.(progressModel)
	return m.result, m.err
}
