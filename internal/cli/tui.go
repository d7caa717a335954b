package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/engine"
)

// Watch styles
var (
	watchLabelStyle = lipgloss.NewStyle().Foreground(colorGray).Width(11)
	watchValueStyle = lipgloss.NewStyle().Foreground(colorWhite)
	watchDimStyle   = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// WatchModel - Live run progress
// =============================================================================

// eventMsg wraps a progress event from the run's broker subscription.
type eventMsg engine.Event

// closedMsg signals that the event stream ended (the run reached a
// terminal status and the broker closed the channel).
type closedMsg struct{}

// doneMsg signals that the worker pool task finished.
type doneMsg struct{ err error }

// tickMsg drives the spinner animation.
type tickMsg time.Time

// WatchModel is the bubbletea model for live optimization progress.
// It subscribes to the run's event stream and renders the latest round,
// iteration, and best score until the run reaches a terminal status.
type WatchModel struct {
	Run    *engine.OptimizationRun
	Task   *engine.Task
	Events <-chan engine.Event

	last    engine.Event
	gotLast bool
	frame   int
	start   time.Time
	closed  bool
	done    bool
	Err     error

	// Aborted is set when the user quit before the run finished.
	Aborted bool
}

// NewWatchModel creates a watch model for an enqueued run.
func NewWatchModel(run *engine.OptimizationRun, task *engine.Task, events <-chan engine.Event) WatchModel {
	return WatchModel{Run: run, Task: task, Events: events, start: time.Now()}
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.waitEvent(), m.waitDone(), tick())
}

// waitEvent blocks on the next broker event. The broker closes the
// channel after delivering the terminal event.
func (m WatchModel) waitEvent() tea.Cmd {
	ch := m.Events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

// waitDone blocks until the pool task completes.
func (m WatchModel) waitDone() tea.Cmd {
	task := m.Task
	return func() tea.Msg {
		<-task.Done()
		return doneMsg{err: task.Err()}
	}
}

func tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Aborted = true
			return m, tea.Quit
		}
	case eventMsg:
		m.last = engine.Event(msg)
		m.gotLast = true
		return m, m.waitEvent()
	case closedMsg:
		m.closed = true
		if m.done {
			return m, tea.Quit
		}
	case doneMsg:
		// The terminal event precedes task completion, so any remaining
		// events are already buffered; quitting here cannot hang even if
		// the subscription attached after the stream closed.
		m.done = true
		m.Err = msg.err
		return m, tea.Quit
	case tickMsg:
		m.frame++
		if !m.done {
			return m, tick()
		}
	}
	return m, nil
}

func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Optimizing " + m.Run.DesignID))
	b.WriteString("\n")
	b.WriteString(watchDimStyle.Render("q quit"))
	b.WriteString("\n\n")

	status := string(m.Run.Status)
	if m.gotLast {
		status = string(m.last.Status)
	}

	indicator := styleIconSpinner.Render(spinnerFrames[m.frame%len(spinnerFrames)])
	if m.done {
		if engine.Status(status) == engine.StatusConverged {
			indicator = styleIconSuccess.Render(iconSuccess)
		} else {
			indicator = styleIconWarning.Render(iconWarning)
		}
	}

	b.WriteString(fmt.Sprintf("%s %s\n\n", indicator, watchValueStyle.Render(status)))

	b.WriteString(watchLabelStyle.Render("run") + " " + watchDimStyle.Render(m.Run.ID) + "\n")
	if m.gotLast {
		b.WriteString(watchLabelStyle.Render("round") + " " + watchValueStyle.Render(fmt.Sprintf("%d", m.last.Round+1)) + "\n")
		b.WriteString(watchLabelStyle.Render("iteration") + " " + watchValueStyle.Render(fmt.Sprintf("%d", m.last.Iteration)) + "\n")
		if m.last.BestScore > 0 {
			b.WriteString(watchLabelStyle.Render("best score") + " " + StyleNumber.Render(fmt.Sprintf("%.4f", m.last.BestScore)) + "\n")
		}
	}
	b.WriteString(watchLabelStyle.Render("elapsed") + " " + watchDimStyle.Render(time.Since(m.start).Round(100*time.Millisecond).String()) + "\n")

	return b.String()
}
