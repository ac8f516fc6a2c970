package download

import (
	"fmt"
	"time"

	"romgrab/internal/catalog"
)

// State is a task lifecycle state.
type State string

const (
	StatePending      State = "pending"
	StateProbing      State = "probing"
	StateTransferring State = "transferring"
	StateVerifying    State = "verifying"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
	StateCancelled    State = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

var allowedTransitions = map[State][]State{
	// pending -> completed is the idempotent skip; pending -> transferring
	// is used by boxart, which has no mirrors to probe.
	StatePending:      {StateProbing, StateTransferring, StateCompleted, StateFailed, StateCancelled},
	StateProbing:      {StateTransferring, StateFailed, StateCancelled},
	StateTransferring: {StateTransferring, StateVerifying, StateFailed, StateCancelled},
	StateVerifying:    {StateTransferring, StateCompleted, StateFailed, StateCancelled},
}

// Kind distinguishes ROM tasks from boxart tasks.
type Kind string

const (
	KindROM    Kind = "rom"
	KindBoxart Kind = "boxart"
)

// Task is one download from start to terminal state. A Task is owned by the
// manager until it is returned; callers must treat it as read-only.
type Task struct {
	ID          string
	Kind        Kind
	Entry       catalog.RomEntry
	Destination string
	State       State
	// States is every state visited, in order.
	States []State
	// Attempts counts failed mirror probes plus transfer attempts.
	Attempts      int
	ProbeFailures int
	MirrorsTried  []string
	Mirror        string
	Bytes         int64
	SHA256        string
	Skipped       bool
	Err           error
	StartedAt     time.Time
	EndedAt       time.Time
	// Boxart is the companion boxart task, if one ran.
	Boxart *Task
}

func newTask(id string, kind Kind, entry catalog.RomEntry, destination string, now time.Time) *Task {
	return &Task{
		ID:          id,
		Kind:        kind,
		Entry:       entry,
		Destination: destination,
		State:       StatePending,
		States:      []State{StatePending},
		StartedAt:   now,
	}
}

// transition moves the task to next or reports an illegal move.
func (t *Task) transition(next State) error {
	for _, allowed := range allowedTransitions[t.State] {
		if allowed == next {
			t.State = next
			t.States = append(t.States, next)
			return nil
		}
	}
	return fmt.Errorf("illegal task transition %s -> %s", t.State, next)
}

// Elapsed is the wall time from start to end (or now while running).
func (t *Task) Elapsed() time.Duration {
	if t.EndedAt.IsZero() {
		return time.Since(t.StartedAt)
	}
	return t.EndedAt.Sub(t.StartedAt)
}

// Succeeded reports whether the task completed.
func (t *Task) Succeeded() bool {
	return t != nil && t.State == StateCompleted
}
