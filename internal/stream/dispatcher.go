package stream

import (
	"fmt"
	"log/slog"
	"sync"
)

// registration pairs a handler with a removable identity. Go functions are
// not comparable, so removal goes through the ID returned at registration.
type registration struct {
	id HandlerID
	fn Handler
}

// dispatcher fans events out to named subscribers. Handlers for an event run
// in registration order; a panicking handler never prevents its siblings from
// running and never reaches the transport.
type dispatcher struct {
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[string][]registration
	nextID   HandlerID
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	return &dispatcher{
		logger:   logger,
		handlers: make(map[string][]registration),
	}
}

// on registers a handler and returns its removal ID.
func (d *dispatcher) on(event string, h Handler) HandlerID {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.handlers[event] = append(d.handlers[event], registration{id: d.nextID, fn: h})
	return d.nextID
}

// off removes a previously registered handler.
func (d *dispatcher) off(event string, id HandlerID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := d.handlers[event]
	for i, r := range regs {
		if r.id == id {
			d.handlers[event] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// emit invokes every handler registered for e.Type. Iteration runs over a
// snapshot so handlers may subscribe or unsubscribe mid-dispatch. Panics are
// recovered and surfaced as error events, except while already dispatching an
// error event (logged instead, to avoid recursion).
func (d *dispatcher) emit(e Event) {
	d.mu.Lock()
	regs := d.handlers[e.Type]
	snapshot := make([]registration, len(regs))
	copy(snapshot, regs)
	d.mu.Unlock()

	for _, r := range snapshot {
		d.invoke(r, e)
	}
}

func (d *dispatcher) invoke(r registration, e Event) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}

		err := fmt.Errorf("handler for %q panicked: %v", e.Type, rec)
		if e.Type == EventError {
			d.logger.Error("error handler panicked", "error", err)
			return
		}
		d.logger.Warn("subscriber panicked", "event", e.Type, "error", err)
		d.emit(Event{Type: EventError, Err: err})
	}()

	r.fn(e)
}
