package engine

import "context"

// EventType enumerates the event kinds the engine brackets with
// before/after hooks, mirroring event_emitter.py's EventType enum.
type EventType int

const (
	EventExit EventType = iota
	EventStep
	EventInput
	EventOutput
	EventBreakpoint
	EventError
	EventDownload
)

// HookPosition is before or after the bracketed operation.
type HookPosition int

const (
	Before HookPosition = iota
	After
)

// EventHandler receives the event payload (e.g. the Instruction for STEP,
// the syscall result for an `after` INPUT/OUTPUT/DOWNLOAD hook) and may
// return an error to abort the bracketed operation.
type EventHandler func(ctx context.Context, payload any) error

// EventEmitter is a small registry of before/after callbacks keyed by
// EventType, mirroring event_emitter.py's EventEmitter class. The Python
// source wraps handlers using an `emit` decorator around each async method;
// per spec.md §9's re-architecture guidance ("no need to emulate
// higher-order wrappers - inline the two trigger calls"), this is a plain
// registry and every call site invokes Trigger directly around the
// operation it brackets.
type EventEmitter struct {
	handlers map[EventType]map[HookPosition]EventHandler
}

func newEventEmitter() *EventEmitter {
	return &EventEmitter{handlers: make(map[EventType]map[HookPosition]EventHandler)}
}

// Register installs a handler for the given event/position, replacing any
// previously registered handler - event_emitter.py:add_handler.
func (e *EventEmitter) Register(event EventType, pos HookPosition, handler EventHandler) {
	if e.handlers[event] == nil {
		e.handlers[event] = make(map[HookPosition]EventHandler)
	}
	e.handlers[event][pos] = handler
}

// Unregister removes a handler - event_emitter.py:remove_handler.
func (e *EventEmitter) Unregister(event EventType, pos HookPosition) {
	delete(e.handlers[event], pos)
}

// Trigger invokes the registered handler, if any, for event/position -
// event_emitter.py:trigger.
func (e *EventEmitter) Trigger(ctx context.Context, event EventType, pos HookPosition, payload any) error {
	h, ok := e.handlers[event][pos]
	if !ok {
		return nil
	}
	return h(ctx, payload)
}
