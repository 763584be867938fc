// Package framework provides the cooperative polling loop the storage
// engine, panels and reporters are driven by.
package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Controller is invoked once per loop iteration. It must not block.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc defines the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(cc ControlContext) error {
	return f(cc)
}

// TimeSource provides the time for controlling logic.
type TimeSource interface {
	Time() time.Time
}

// ControlContext provides the context of current iteration.
type ControlContext interface {
	TimeSource
	// Context retrieves context.Context.
	Context() context.Context
	// PriorityLevel gets the current priority level.
	PriorityLevel() int
	// Iteration is the sequence number of current iteration, starting at 1.
	Iteration() uint64
	// PostRun injects one-shot hooks at current priority level, run
	// after all controllers of the level.
	PostRun(hooks ...Controller)

	LoopControl
}

// LoopControl exposes access to the loop.
type LoopControl interface {
	// PostRunAt injects one-shot post-run hooks at specified priority level.
	PostRunAt(priorityLevel int, hooks ...Controller)
	// TriggerNext schedules the next iteration immediately.
	TriggerNext()
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

// PriorityLevels is the total levels of priorities.
const PriorityLevels int = 16

// Predefined priority levels
const (
	PrLvTop    int = 0
	PrLvHigh   int = 4
	PrLvNormal int = 8
	PrLvLow    int = 12
	PrLvIdle   int = PriorityLevels - 1

	// PrLvInput is the alias of priority level for input devices.
	PrLvInput = PrLvHigh
	// PrLvStorage is the alias of priority level for storage flushing.
	PrLvStorage = PrLvLow
	// PrLvReport is the alias of priority level for status reporting.
	PrLvReport = PrLvIdle
)
