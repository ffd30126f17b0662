package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State of a pipeline run
type State string

// Run states. Succeeded, Failed and Skipped are terminal.
const (
	StatePending   State = "pending"
	StateGated     State = "gated"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
)

// Terminal tells if no transition may leave this state
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateSkipped
}

var transitions = map[State][]State{
	StatePending: {StateGated, StateSkipped},
	StateGated:   {StateRunning, StateSkipped},
	StateRunning: {StateSucceeded, StateFailed},
}

// Engine selected to run
type Engine string

// Engines
const (
	EngineNone    Engine = ""
	EngineBump    Engine = "bump"
	EnginePublish Engine = "publish"
)

// Run is a single pipeline invocation. Runs are never resumed: a new event always creates a new run.
type Run struct {
	ID         string         `json:"id" yaml:"id"`
	Event      Event          `json:"event" yaml:"event"`
	State      State          `json:"state" yaml:"state"`
	Engine     Engine         `json:"engine,omitempty" yaml:"engine,omitempty"`
	Reason     string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	Cause      string         `json:"cause,omitempty" yaml:"cause,omitempty"`
	Error      string         `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time      `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`
	Bump       *BumpResult    `json:"bump,omitempty" yaml:"bump,omitempty"`
	Publish    *PublishResult `json:"publish,omitempty" yaml:"publish,omitempty"`
}

// NewRun creates a pending run for an event
func NewRun(event Event, now time.Time) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Event:     event,
		State:     StatePending,
		StartedAt: now,
	}
}

// Transition moves the run to another state, rejecting moves not allowed by the run state machine.
func (r *Run) Transition(to State) error {
	for _, allowed := range transitions[r.State] {
		if allowed == to {
			r.State = to
			return nil
		}
	}
	return fmt.Errorf("run %s: illegal transition from %q to %q", r.ID, r.State, to)
}

// Duration of the run, up to now if not finished
func (r *Run) Duration(now time.Time) time.Duration {
	if r.FinishedAt.IsZero() {
		return now.Sub(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
