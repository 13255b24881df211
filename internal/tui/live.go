// Package tui renders crawl progress. Live is a bubbletea program used
// when stdout is a terminal; LogSink is the non-interactive fallback.
package tui

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette
var (
	accent    = lipgloss.Color("#E5A00D")
	dimGray   = lipgloss.Color("#6B7280")
	lightGray = lipgloss.Color("#9CA3AF")
	white     = lipgloss.Color("#F9FAFB")
	red       = lipgloss.Color("#EF4444")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(white).
			Background(lipgloss.Color("#1F2937")).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lightGray).
			Width(24)

	statusStyle = lipgloss.NewStyle().
			Foreground(accent)

	errorStyle = lipgloss.NewStyle().
			Foreground(red)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimGray)
)

// IsTerminal reports whether stdout supports the live display.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

type startMsg struct {
	label string
	total int
}

type advanceMsg struct {
	label string
	delta int
}

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type quitMsg struct{}

type counter struct {
	label   string
	total   int
	current int
}

type model struct {
	counters []counter
	index    map[string]int
	status   string
	isError  bool
	started  time.Time
	bar      progress.Model
	cancel   context.CancelFunc
}

func newModel(cancel context.CancelFunc) model {
	return model{
		index:   make(map[string]int),
		started: time.Now(),
		bar:     progress.New(progress.WithGradient("#E5A00D", "#F9FAFB"), progress.WithWidth(30)),
		cancel:  cancel,
	}
}

func (m model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.cancel != nil {
				m.cancel()
			}
			m.status = "cancelling, finishing current record"
			m.isError = false
			return m, nil
		}
	case startMsg:
		if i, ok := m.index[msg.label]; ok {
			m.counters[i].total = msg.total
			m.counters[i].current = 0
			return m, nil
		}
		m.index[msg.label] = len(m.counters)
		m.counters = append(m.counters, counter{label: msg.label, total: msg.total})
	case advanceMsg:
		if i, ok := m.index[msg.label]; ok {
			m.counters[i].current += msg.delta
			if m.counters[i].current > m.counters[i].total {
				m.counters[i].current = m.counters[i].total
			}
		}
	case statusMsg:
		m.status = msg.text
		m.isError = msg.isError
	case tickMsg:
		return m, tick()
	case quitMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	s := titleStyle.Render("fleahist") + "\n\n"

	for _, c := range m.counters {
		pct := 0.0
		if c.total > 0 {
			pct = float64(c.current) / float64(c.total)
		}
		s += fmt.Sprintf("%s %s %s\n",
			labelStyle.Render(c.label),
			m.bar.ViewAs(pct),
			dimStyle.Render(fmt.Sprintf("%d/%d", c.current, c.total)))
	}

	if m.status != "" {
		style := statusStyle
		if m.isError {
			style = errorStyle
		}
		s += "\n" + style.Render(m.status) + "\n"
	}

	elapsed := time.Since(m.started).Round(time.Second)
	s += dimStyle.Render(fmt.Sprintf("elapsed %s", elapsed)) + "\n"
	return s
}

// Live renders crawl progress with bubbletea. It implements the
// progress sink by forwarding updates into the running program; ctrl+c
// and q cancel the crawl through the supplied cancel func.
type Live struct {
	prog *tea.Program
	done chan struct{}
}

// NewLive starts the display. Call Stop to tear it down.
func NewLive(cancel context.CancelFunc) *Live {
	p := tea.NewProgram(newModel(cancel))
	l := &Live{prog: p, done: make(chan struct{})}
	go func() {
		defer close(l.done)
		_, _ = p.Run()
	}()
	return l
}

func (l *Live) StartCounter(label string, total int) {
	l.prog.Send(startMsg{label: label, total: total})
}

func (l *Live) Advance(label string, delta int) {
	l.prog.Send(advanceMsg{label: label, delta: delta})
}

func (l *Live) SetStatus(text string, isError bool) {
	l.prog.Send(statusMsg{text: text, isError: isError})
}

// Stop ends the program and waits for the terminal to be restored.
func (l *Live) Stop() {
	l.prog.Send(quitMsg{})
	<-l.done
}
