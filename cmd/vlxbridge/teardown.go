package main

import "github.com/nerrad567/vlx-bridge/internal/infrastructure/logging"

// teardown runs cleanup steps in reverse registration order.
type teardown struct {
	log   *logging.Logger
	trace func(step string)
	steps []teardownStep
}

type teardownStep struct {
	name string
	fn   func() error
}

func (t *teardown) add(name string, fn func() error) {
	t.steps = append(t.steps, teardownStep{name: name, fn: fn})
}

// run executes every step, last added first. A failing step is logged and
// the remaining steps still run.
func (t *teardown) run() {
	for i := len(t.steps) - 1; i >= 0; i-- {
		step := t.steps[i]
		if t.trace != nil {
			t.trace(step.name)
		}
		t.log.Info("teardown", "step", step.name)
		if err := step.fn(); err != nil {
			t.log.Error("teardown step failed", "step", step.name, "error", err)
		}
	}
	t.steps = nil
}
