package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"shaderkit/internal/variant"
)

const (
	statusQueued    = "queued"
	statusCompiling = "compiling"
	statusCached    = "cached"
	statusDone      = "done"
	statusFailed    = "failed"
)

type prewarmModel struct {
	title   string
	events  <-chan variant.Progress
	spinner spinner.Model
	prog    progress.Model
	items   []variantItem
	settled int
	failed  int
	elapsed time.Duration
	width   int
	done    bool
}

type variantItem struct {
	label   string
	status  string
	elapsed time.Duration
}

type eventMsg variant.Progress
type doneMsg struct{}

// NewPrewarmModel returns a Bubble Tea model that renders prewarm progress.
// labels name the variants in the order Prewarm visits them; the model quits
// when events is closed.
func NewPrewarmModel(title string, labels []string, events <-chan variant.Progress) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]variantItem, len(labels))
	for i, l := range labels {
		items[i] = variantItem{label: l, status: statusQueued}
	}
	if len(items) > 0 {
		items[0].status = statusCompiling
	}
	return &prewarmModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		width:   80,
	}
}

func (m *prewarmModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *prewarmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(variant.Progress(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
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
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *prewarmModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s (%d/%d)", m.title, m.settled, len(m.items))
	if m.done {
		header = fmt.Sprintf("done: %s in %s", header, m.elapsed.Round(time.Millisecond))
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	const statusWidth = 10
	nameWidth := max(m.width-statusWidth-16, 20)
	for _, item := range m.items {
		status := styleStatus(item.status).Render(fmt.Sprintf("%*s", statusWidth, item.status))
		fmt.Fprintf(&b, "  %s %s", status, truncate(item.label, nameWidth))
		if item.elapsed > 0 {
			fmt.Fprintf(&b, "  %s", lipgloss.NewStyle().Faint(true).Render(item.elapsed.Round(time.Microsecond).String()))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	if m.failed > 0 {
		b.WriteString(styleStatus(statusFailed).Render(fmt.Sprintf("%d variant(s) failed", m.failed)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *prewarmModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *prewarmModel) applyEvent(ev variant.Progress) tea.Cmd {
	idx := ev.Index - 1
	if idx < 0 || idx >= len(m.items) {
		return nil
	}
	item := &m.items[idx]
	switch {
	case ev.Failed:
		item.status = statusFailed
		m.failed++
	case ev.Cached:
		item.status = statusCached
	default:
		item.status = statusDone
	}
	item.elapsed = ev.Elapsed
	m.elapsed += ev.Elapsed
	m.settled++
	// события идут по порядку: следующий вариант уже компилируется
	if next := idx + 1; next < len(m.items) && m.items[next].status == statusQueued {
		m.items[next].status = statusCompiling
	}
	return m.prog.SetPercent(float64(m.settled) / float64(len(m.items)))
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case statusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case statusFailed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case statusCached:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	case statusCompiling:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}

// PlainProgress returns a Prewarm callback that prints one line per variant,
// for output that is not a terminal.
func PlainProgress(w io.Writer, labels []string) func(variant.Progress) {
	return func(ev variant.Progress) {
		label := fmt.Sprintf("%s mask %s", ev.Mode, ev.Mask)
		if i := ev.Index - 1; i >= 0 && i < len(labels) {
			label = labels[i]
		}
		status := statusDone
		switch {
		case ev.Failed:
			status = statusFailed
		case ev.Cached:
			status = statusCached
		}
		fmt.Fprintf(w, "[%*d/%d] %-6s %s (%s)\n", len(fmt.Sprint(ev.Total)), ev.Index, ev.Total,
			status, truncate(label, 72), ev.Elapsed.Round(time.Microsecond))
	}
}
