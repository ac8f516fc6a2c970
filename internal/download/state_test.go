package download

import (
	"slices"
	"testing"
	"time"

	"romgrab/internal/catalog"
)

func TestTaskTransitions(t *testing.T) {
	task := newTask("t1", KindROM, catalog.RomEntry{Slug: "zelda"}, "/tmp/zelda.zip", time.Now())
	steps := []State{StateProbing, StateTransferring, StateVerifying, StateTransferring, StateVerifying, StateCompleted}
	for _, next := range steps {
		if err := task.transition(next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	want := append([]State{StatePending}, steps...)
	if !slices.Equal(task.States, want) {
		t.Fatalf("states = %v, want %v", task.States, want)
	}
	if err := task.transition(StateTransferring); err == nil {
		t.Fatal("terminal tasks must not move")
	}
}

func TestIllegalTransitions(t *testing.T) {
	cases := []struct {
		from, to State
	}{
		{StatePending, StateVerifying},
		{StateProbing, StateCompleted},
		{StateTransferring, StateCompleted},
		{StateFailed, StatePending},
		{StateCancelled, StateTransferring},
	}
	for _, tc := range cases {
		task := &Task{State: tc.from}
		if err := task.transition(tc.to); err == nil {
			t.Errorf("%s -> %s should be rejected", tc.from, tc.to)
		}
		if task.State != tc.from {
			t.Errorf("rejected transition changed state to %s", task.State)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []State{StateCompleted, StateFailed, StateCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []State{StatePending, StateProbing, StateTransferring, StateVerifying} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestElapsedUsesEndTime(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	task := newTask("t1", KindROM, catalog.RomEntry{}, "", start)
	task.EndedAt = start.Add(1500 * time.Millisecond)
	if got := task.Elapsed(); got != 1500*time.Millisecond {
		t.Fatalf("Elapsed() = %s", got)
	}
	var nilTask *Task
	if nilTask.Succeeded() {
		t.Fatal("nil task cannot succeed")
	}
}
