// Package ui renders live scan progress in a terminal.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"jitscope/internal/pipeline"
	"jitscope/internal/report"
)

const (
	labelQueued = "queued"
	labelDone   = "done"
	labelError  = "error"
)

type scanModel struct {
	title   string
	events  <-chan pipeline.Event
	spinner spinner.Model
	prog    progress.Model
	items   []logItem
	index   map[string]int
	width   int
	failed  int
	done    bool
}

type logItem struct {
	path   string
	label  string
	stage  string
	detail string
}

type eventMsg pipeline.Event
type doneMsg struct{}

// NewScanModel returns a Bubble Tea model that follows scan progress for
// logs. It quits when events is closed.
func NewScanModel(title string, logs []string, events <-chan pipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]logItem, len(logs))
	index := make(map[string]int, len(logs))
	for i, path := range logs {
		items[i] = logItem{path: path, label: labelQueued}
		index[path] = i
	}
	return &scanModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *scanModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *scanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.apply(pipeline.Event(msg)), m.listen())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *scanModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	header := m.title
	if m.failed > 0 {
		header = fmt.Sprintf("%s (%d failed)", header, m.failed)
	}
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7")).Render(header))
	b.WriteString("\n\n")

	nameWidth := m.width - 16
	if nameWidth < 20 {
		nameWidth = 20
	}
	for _, it := range m.items {
		line := "  " + styleLabel(it.label).Render(fmt.Sprintf("%12s", it.label)) + " " + report.Truncate(it.path, nameWidth)
		if it.detail != "" {
			line += "  " + lipgloss.NewStyle().Faint(true).Render(it.detail)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteByte('\n')
	return b.String()
}

func (m *scanModel) listen() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *scanModel) apply(ev pipeline.Event) tea.Cmd {
	idx, ok := m.index[ev.Log]
	if !ok {
		return nil
	}
	it := &m.items[idx]
	switch ev.Status {
	case pipeline.StatusQueued:
		it.label = labelQueued
	case pipeline.StatusWorking:
		it.label = stageLabel(ev.Stage)
		it.stage = ev.Stage
	case pipeline.StatusDone:
		it.label = labelDone
		it.detail = ev.Elapsed.Round(time.Millisecond).String()
	case pipeline.StatusError:
		it.label = labelError
		m.failed++
		if ev.Err != nil {
			it.detail = ev.Err.Error()
		}
	}
	return m.prog.SetPercent(m.percent())
}

func (m *scanModel) percent() float64 {
	total := 0.0
	for _, it := range m.items {
		switch it.label {
		case labelDone, labelError:
			total += 1.0
		default:
			total += stageWeight(it.stage)
		}
	}
	return total / float64(len(m.items))
}

func stageWeight(stage string) float64 {
	switch stage {
	case pipeline.StageSplit:
		return 0.1
	case pipeline.StageParse:
		return 0.3
	case pipeline.StageBind:
		return 0.5
	case pipeline.StageAssembly:
		return 0.7
	case pipeline.StageCorrelate:
		return 0.9
	default:
		return 0
	}
}

func stageLabel(stage string) string {
	switch stage {
	case pipeline.StageSplit:
		return "splitting"
	case pipeline.StageParse:
		return "parsing"
	case pipeline.StageBind:
		return "binding"
	case pipeline.StageAssembly:
		return "disassembling"
	case pipeline.StageCorrelate:
		return "correlating"
	default:
		return stage
	}
}

func styleLabel(label string) lipgloss.Style {
	switch label {
	case labelDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case labelError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case labelQueued:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	}
}
