// Package fsm implements the client-facing timer state machine. It mirrors
// what the browser widget runs: explicit states, effect-driven transitions,
// and rehydration after a reload. Effects are injected so the machine is
// transport-agnostic and testable without a network.
package fsm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// State is a client FSM state.
type State string

const (
	StateIdle     State = "IDLE"
	StateStarting State = "STARTING"
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING"
	StateError    State = "ERROR"
)

// Event drives a transition.
type Event string

const (
	EventStartTimer   Event = "START_TIMER"
	EventTimerStarted Event = "TIMER_STARTED"
	EventStartFailed  Event = "START_FAILED"
	EventStopTimer    Event = "STOP_TIMER"
	EventTimerStopped Event = "TIMER_STOPPED"
	EventStopFailed   Event = "STOP_FAILED"
	EventTimerError   Event = "TIMER_ERROR"
)

// TimerContext is the running-timer context recovered from the server or a
// successful start.
type TimerContext struct {
	TaskID       int64
	SessionIndex int
	StartUTC     string
}

// StopResult is what the stop effect reports back.
type StopResult struct {
	StopUTC  string
	Duration string
}

// Effects is the capability set the machine invokes. Start and Stop are the
// network calls; Render and ShowError are the UI hooks.
type Effects interface {
	StartTimer(ctx context.Context, taskID int64) (TimerContext, error)
	StopTimer(ctx context.Context, tc TimerContext) (StopResult, error)
	Rehydrate(ctx context.Context) (*TimerContext, error)
	Render(state State, tc *TimerContext)
	ShowError(message string)
}

// Transition is one entry of the structured event log the machine emits for
// observability. Presentation is the caller's concern.
type Transition struct {
	From    State
	Event   Event
	To      State
	Ignored bool
	Note    string
}

// Machine is a single-flight timer state machine. Each dispatched event runs
// to completion, network effect included, before the next one is accepted;
// two transitions never interleave for one instance.
type Machine struct {
	mu      sync.Mutex
	state   State
	tc      *TimerContext
	effects Effects
	logger  *slog.Logger
	observe func(Transition)
}

// Option configures a Machine.
type Option func(*Machine)

// WithObserver registers a structured transition log hook.
func WithObserver(fn func(Transition)) Option {
	return func(m *Machine) {
		m.observe = fn
	}
}

// New creates a machine in IDLE. Call Rehydrate before accepting user
// interaction.
func New(effects Effects, logger *slog.Logger, opts ...Option) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Machine{
		state:   StateIdle,
		effects: effects,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Context returns a copy of the running-timer context, if any.
func (m *Machine) Context() *TimerContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tc == nil {
		return nil
	}
	tc := *m.tc
	return &tc
}

// Rehydrate queries the server-side running status and enters RUNNING with
// the recovered context or IDLE. It runs before any user interaction so a
// page reload mid-timer lands back in the right state.
func (m *Machine) Rehydrate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tc, err := m.effects.Rehydrate(ctx)
	if err != nil {
		m.apply(m.state, EventTimerError, StateError, err.Error())
		m.effects.ShowError(err.Error())
		return fmt.Errorf("rehydrating timer state: %w", err)
	}
	if tc != nil {
		m.tc = tc
		m.state = StateRunning
	} else {
		m.tc = nil
		m.state = StateIdle
	}
	m.effects.Render(m.state, m.tc)
	return nil
}

// PressStart handles the user's start gesture: IDLE -> STARTING, invoke the
// start effect, then TIMER_STARTED or START_FAILED. Failure always returns
// the machine to an interactive state.
func (m *Machine) PressStart(ctx context.Context, taskID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		m.ignore(EventStartTimer)
		return
	}
	m.apply(StateIdle, EventStartTimer, StateStarting, "")
	m.effects.Render(m.state, m.tc)

	tc, err := m.effects.StartTimer(ctx, taskID)
	if err != nil {
		m.apply(StateStarting, EventStartFailed, StateIdle, err.Error())
		m.effects.ShowError(err.Error())
		m.effects.Render(m.state, m.tc)
		return
	}
	m.tc = &tc
	m.apply(StateStarting, EventTimerStarted, StateRunning, "")
	m.effects.Render(m.state, m.tc)
}

// PressStop handles the user's stop gesture: RUNNING -> STOPPING, invoke
// the stop effect, then TIMER_STOPPED or STOP_FAILED (which returns to
// RUNNING, since the server timer is still going).
func (m *Machine) PressStop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRunning || m.tc == nil {
		m.ignore(EventStopTimer)
		return
	}
	m.apply(StateRunning, EventStopTimer, StateStopping, "")
	m.effects.Render(m.state, m.tc)

	if _, err := m.effects.StopTimer(ctx, *m.tc); err != nil {
		m.apply(StateStopping, EventStopFailed, StateRunning, err.Error())
		m.effects.ShowError(err.Error())
		m.effects.Render(m.state, m.tc)
		return
	}
	m.tc = nil
	m.apply(StateStopping, EventTimerStopped, StateIdle, "")
	m.effects.Render(m.state, m.tc)
}

// Fail forces the machine into ERROR from any state. Used for failures that
// arrive outside a start/stop cycle.
func (m *Machine) Fail(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apply(m.state, EventTimerError, StateError, message)
	m.effects.ShowError(message)
	m.effects.Render(m.state, m.tc)
}

func (m *Machine) apply(from State, ev Event, to State, note string) {
	m.state = to
	m.emit(Transition{From: from, Event: ev, To: to, Note: note})
}

// ignore logs an event that has no transition from the current state. The
// state is left unchanged; nothing is thrown.
func (m *Machine) ignore(ev Event) {
	m.logger.Debug("ignored timer event", "state", string(m.state), "event", string(ev))
	m.emit(Transition{From: m.state, Event: ev, To: m.state, Ignored: true})
}

func (m *Machine) emit(t Transition) {
	if m.observe != nil {
		m.observe(t)
	}
}
