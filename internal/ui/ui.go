// Package ui is qtrace's optional live progress display: a bubbletea
// program showing a bubbles spinner plus four counters (basic blocks,
// syscalls, outputs, elapsed time) while a trace runs. It is purely
// decorative — it reads Counters, published by internal/machine's hooks
// via sync/atomic, and never touches the event log, debug client, or
// sockets directly.
package ui

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Counters is a set of atomically-updated live counts. The multiplexer's
// hooks increment these as events are appended to the log; the UI
// goroutine only ever reads them.
type Counters struct {
	basicBlocks atomic.Int64
	syscalls    atomic.Int64
	outputs     atomic.Int64
	start       time.Time
}

// NewCounters returns a Counters with its clock started now.
func NewCounters() *Counters {
	return &Counters{start: time.Now()}
}

// IncBB records one basic-block event.
func (c *Counters) IncBB() { c.basicBlocks.Add(1) }

// IncSyscall records one syscall; the CLI calls it once per start event.
func (c *Counters) IncSyscall() { c.syscalls.Add(1) }

// IncOutput records one output event.
func (c *Counters) IncOutput() { c.outputs.Add(1) }

// Snapshot returns the current counts and elapsed time since NewCounters.
func (c *Counters) Snapshot() (basicBlocks, syscalls, outputs int64, elapsed time.Duration) {
	return c.basicBlocks.Load(), c.syscalls.Load(), c.outputs.Load(), time.Since(c.start)
}

// IsTTY reports whether stdout is a terminal, the gate the CLI uses to
// decide between the live display and static summary lines.
func IsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

type tickMsg time.Time

type model struct {
	spinner  spinner.Model
	counters *Counters
	done     <-chan struct{}
}

func newModel(counters *Counters, done <-chan struct{}) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return model{spinner: s, counters: counters, done: done}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForTick(), waitForDone(m.done))
}

func waitForTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type doneMsg struct{}

func waitForDone(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return doneMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		return m, tea.Quit
	case tickMsg:
		return m, waitForTick()
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m, nil
	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	valueStyle = lipgloss.NewStyle().Bold(true)
)

func (m model) View() string {
	bb, sys, out, elapsed := m.counters.Snapshot()
	return fmt.Sprintf("%s %s %s  %s %s  %s %s  %s %s\n",
		m.spinner.View(),
		labelStyle.Render("blocks"), valueStyle.Render(fmt.Sprintf("%d", bb)),
		labelStyle.Render("syscalls"), valueStyle.Render(fmt.Sprintf("%d", sys)),
		labelStyle.Render("outputs"), valueStyle.Render(fmt.Sprintf("%d", out)),
		labelStyle.Render("elapsed"), valueStyle.Render(elapsed.Round(100*time.Millisecond).String()),
	)
}

// Run drives the live display until ctx is cancelled or done is closed,
// whichever comes first. Callers should only call Run when IsTTY() and
// the user hasn't passed --no-tui; otherwise they should print the static
// summary lines directly.
func Run(ctx context.Context, counters *Counters, done <-chan struct{}) error {
	p := tea.NewProgram(newModel(counters, done))
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}
