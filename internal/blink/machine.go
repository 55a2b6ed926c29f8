package blink

import "time"

// Machine drives a single indicator through one plan at a time.
// It never blocks and keeps no clock of its own: progress happens only
// in Poll. Not safe for concurrent use; the owner must serialize calls.
type Machine struct {
	out Indicator

	phase       Phase
	plan        Plan
	indicatorOn bool
	deadline    time.Time

	cyclesCompleted  int
	stepIndex        int
	repeatsCompleted int

	transitions uint64
}

// NewMachine creates an idle machine driving out.
func NewMachine(out Indicator) *Machine {
	return &Machine{out: out}
}

// Start discards any running sequence and installs plan. The indicator is
// commanded off and the first transition is due immediately, so the next
// Poll at or after now acts. An empty plan leaves the machine idle.
// Returns whether a sequence is now active.
func (m *Machine) Start(plan Plan, now time.Time) bool {
	m.reset()
	if plan.Empty() {
		return false
	}

	m.plan = plan
	m.deadline = now
	if plan.Kind() == KindPattern {
		m.phase = PhasePattern
	} else {
		m.phase = PhaseUniform
	}
	return true
}

// Poll advances the running sequence if its next transition is due.
// Returns false once the machine is idle.
func (m *Machine) Poll(now time.Time) bool {
	switch m.phase {
	case PhaseUniform:
		return m.pollUniform(now)
	case PhasePattern:
		return m.pollPattern(now)
	}
	return false
}

func (m *Machine) pollUniform(now time.Time) bool {
	if now.Before(m.deadline) {
		return true
	}

	if m.indicatorOn {
		m.setOutput(false)
		m.cyclesCompleted++
		if m.cyclesCompleted >= m.plan.cycles {
			m.phase = PhaseIdle
			return false
		}
		m.deadline = now.Add(m.plan.off)
		return true
	}

	m.setOutput(true)
	m.deadline = now.Add(m.plan.on)
	return true
}

func (m *Machine) pollPattern(now time.Time) bool {
	if now.Before(m.deadline) {
		return true
	}

	// The previous step's duration has elapsed. If it was the last step
	// of a repetition, wrap before applying the next one.
	if m.stepIndex >= len(m.plan.steps) {
		m.stepIndex = 0
		m.repeatsCompleted++
		if m.repeatsCompleted >= m.plan.repeat {
			m.setOutput(false)
			m.phase = PhaseIdle
			return false
		}
	}

	step := m.plan.steps[m.stepIndex]
	m.setOutput(step.On)
	m.deadline = now.Add(step.Duration)
	m.stepIndex++
	return true
}

// Stop ends any sequence and turns the indicator off. Always succeeds.
func (m *Machine) Stop() {
	m.reset()
}

// Set stops any sequence and holds the indicator on or off.
func (m *Machine) Set(on bool) {
	m.reset()
	if on {
		m.setOutput(true)
	}
}

// Toggle stops any sequence and flips the indicator.
func (m *Machine) Toggle() {
	m.Set(!m.indicatorOn)
}

// IsActive reports whether a sequence is running.
func (m *Machine) IsActive() bool {
	return m.phase != PhaseIdle
}

// IndicatorOn reports the last commanded output.
func (m *Machine) IndicatorOn() bool {
	return m.indicatorOn
}

// Transitions returns how many times the output changed state.
func (m *Machine) Transitions() uint64 {
	return m.transitions
}

// State returns a snapshot of the machine's progress.
func (m *Machine) State() RunState {
	s := RunState{
		Phase:            m.phase,
		IndicatorOn:      m.indicatorOn,
		CyclesCompleted:  m.cyclesCompleted,
		StepIndex:        m.stepIndex,
		RepeatsCompleted: m.repeatsCompleted,
		Plan:             m.plan,
	}
	if m.phase != PhaseIdle {
		s.NextDeadline = m.deadline
	}
	return s
}

func (m *Machine) reset() {
	m.phase = PhaseIdle
	m.plan = Plan{}
	m.deadline = time.Time{}
	m.cyclesCompleted = 0
	m.stepIndex = 0
	m.repeatsCompleted = 0

	// off is always commanded here, even if the output is believed off
	if m.indicatorOn {
		m.indicatorOn = false
		m.transitions++
	}
	if m.out != nil {
		m.out.TurnOff()
	}
}

// setOutput commands the indicator only when the state actually changes.
func (m *Machine) setOutput(on bool) {
	if on == m.indicatorOn {
		return
	}
	m.indicatorOn = on
	m.transitions++
	if m.out == nil {
		return
	}
	if on {
		m.out.TurnOn()
	} else {
		m.out.TurnOff()
	}
}
