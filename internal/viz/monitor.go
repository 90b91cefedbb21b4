package viz

import (
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gengqx/apollo/internal/msgs"
	"github.com/gengqx/apollo/internal/sim"
)

const monitorEvents = 6

// StepMsg carries one simulated cycle to the Monitor.
type StepMsg struct {
	State sim.State
	Cmd   msgs.ControlCommand
	Time  float64
}

// EventMsg is a line for the monitor's event log.
type EventMsg string

// RunDoneMsg ends a run. Summary replaces the previous run's.
type RunDoneMsg struct {
	Summary string
	Err     error
}

// Monitor is the interactive live view: the top-down drawing of the
// running simulation, the last run's summary and an event log. Space
// freezes the drawing, q quits.
type Monitor struct {
	title      string
	view       *LiveRenderer
	frame      string
	lastT      float64
	paused     bool
	events     []string
	summary    string
	quitOnDone bool
	err        error
}

// NewMonitor builds a monitor over the reference trajectory. With
// quitOnDone the program ends after the first RunDoneMsg.
func NewMonitor(title string, traj *msgs.ADCTrajectory, quitOnDone bool) Monitor {
	return Monitor{
		title:      title,
		view:       NewLiveRenderer(io.Discard, traj, 0),
		quitOnDone: quitOnDone,
	}
}

func (m Monitor) Init() tea.Cmd {
	return nil
}

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
		}
	case StepMsg:
		if len(msg.State) < sim.VehicleStateDim {
			return m, nil
		}
		// A rerun starts over at t=0; drop the old trail.
		if msg.Time < m.lastT {
			m.view.trail = m.view.trail[:0]
		}
		m.lastT = msg.Time
		m.view.track(msg.State)
		if !m.paused {
			m.frame = m.view.frame(msg.State, &msg.Cmd, msg.Time)
		}
	case EventMsg:
		m.log(string(msg))
	case RunDoneMsg:
		m.summary = msg.Summary
		m.err = msg.Err
		if msg.Err != nil {
			m.log("run failed: " + msg.Err.Error())
		}
		if m.quitOnDone {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Monitor) log(line string) {
	m.events = append(m.events, line)
	if len(m.events) > monitorEvents {
		m.events = m.events[len(m.events)-monitorEvents:]
	}
}

// Err is the error of the last finished run.
func (m Monitor) Err() error {
	return m.err
}

func (m Monitor) View() string {
	var b strings.Builder
	state := Positive.Render("live")
	if m.paused {
		state = Warning.Render("paused")
	}
	b.WriteString(Title.Render(m.title) + " " + state + "\n")
	if m.frame != "" {
		b.WriteString(m.frame)
	}
	if m.summary != "" {
		b.WriteString(m.summary + "\n")
	}
	for _, e := range m.events {
		b.WriteString(Subtle.Render("  "+e) + "\n")
	}
	b.WriteString(Subtle.Render("space pause · q quit") + "\n")
	return b.String()
}

// MonitorFeed is the simulator observer behind a Monitor. It holds the
// simulation to wall-clock time and forwards at most frameRate steps per
// second; zero forwards every step.
type MonitorFeed struct {
	send     func(tea.Msg)
	interval time.Duration
	start    time.Time
	t0       float64
	lastT    float64
	started  bool
	lastSent time.Time
}

func NewMonitorFeed(send func(tea.Msg), frameRate int) *MonitorFeed {
	f := &MonitorFeed{send: send}
	if frameRate > 0 {
		f.interval = time.Second / time.Duration(frameRate)
	}
	return f
}

func (f *MonitorFeed) OnStep(x sim.State, cmd *msgs.ControlCommand, t float64) {
	now := time.Now()
	if !f.started || t < f.lastT {
		f.start, f.t0, f.started = now, t, true
		f.lastSent = time.Time{}
	}
	f.lastT = t

	if ahead := time.Duration((t-f.t0)*float64(time.Second)) - now.Sub(f.start); ahead > 0 {
		time.Sleep(ahead)
		now = time.Now()
	}
	if f.interval > 0 && now.Sub(f.lastSent) < f.interval {
		return
	}
	f.lastSent = now

	msg := StepMsg{State: x.Clone(), Time: t}
	if cmd != nil {
		msg.Cmd = *cmd
	}
	f.send(msg)
}
