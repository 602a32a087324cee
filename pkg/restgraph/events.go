package restgraph

import "sync"

// Phase is the lifecycle phase attached to a published event.
type Phase string

// Lifecycle phases. FAILED and FINISHED are not mutually exclusive: an
// erroring operation publishes FAILED and then FINISHED.
const (
	PhaseAny      Phase = "ANY"
	PhaseStarted  Phase = "STARTED"
	PhaseFailed   Phase = "FAILED"
	PhaseFinished Phase = "FINISHED"
	PhaseProgress Phase = "PROGRESS"
)

// Entity is anything the event bus can publish about.
type Entity interface {
	// TypeChain returns the entity's type name followed by its declared
	// ancestor type names, most to least specific.
	TypeChain() []string

	// Identifier returns the entity's identifier, if any.
	Identifier() string
}

// Callback receives the publishing entity.
type Callback func(entity Entity)

type eventKey struct {
	typeName string
	event    string
	phase    Phase
}

// EventBus is a specificity-ordered publish/subscribe registry keyed by
// (type name, event name, phase). Each engine Client owns one bus; there is
// no process-wide registry. Safe for concurrent use.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[eventKey][]Callback
}

// NewEventBus creates an empty event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[eventKey][]Callback),
	}
}

// Subscribe registers a callback for the exact (typeName, event, phase) key.
// Subtypes of typeName fire the registration through their ancestor chain
// unless a more specific registration exists. An empty phase means PhaseAny.
func (b *EventBus) Subscribe(typeName, event string, phase Phase, callback Callback) {
	if phase == "" {
		phase = PhaseAny
	}

	key := eventKey{typeName: typeName, event: event, phase: phase}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[key] = append(b.handlers[key], callback)
}

// Publish fires the callbacks for the best-matching registration, walking the
// entity's type chain from most to least specific. An exact
// (type, event, phase) match on any ancestor wins; if none exists anywhere in
// the chain, the most specific (type, event, ANY) registration fires instead.
// Callbacks run in registration order. With no listeners registered at all
// this is a no-op that never walks the chain.
func (b *EventBus) Publish(entity Entity, event string, phase Phase) {
	b.mu.RLock()

	if len(b.handlers) == 0 {
		b.mu.RUnlock()

		return
	}

	var callbacks, fallbacks []Callback

	for _, typeName := range entity.TypeChain() {
		if cbs, ok := b.handlers[eventKey{typeName: typeName, event: event, phase: phase}]; ok {
			callbacks = cbs

			break
		}

		if fallbacks == nil {
			if cbs, ok := b.handlers[eventKey{typeName: typeName, event: event, phase: PhaseAny}]; ok {
				fallbacks = cbs
			}
		}
	}

	if callbacks == nil {
		callbacks = fallbacks
	}

	fire := make([]Callback, len(callbacks))
	copy(fire, callbacks)
	b.mu.RUnlock()

	for _, callback := range fire {
		callback(entity)
	}
}

// Observe wraps an operation with lifecycle events: STARTED before execution,
// FAILED if the operation returns an error, and FINISHED unconditionally on
// exit. The operation's error is returned unmodified.
func (b *EventBus) Observe(entity Entity, event string, operation func() error) error {
	b.Publish(entity, event, PhaseStarted)

	err := operation()
	if err != nil {
		b.Publish(entity, event, PhaseFailed)
	}

	b.Publish(entity, event, PhaseFinished)

	return err
}
