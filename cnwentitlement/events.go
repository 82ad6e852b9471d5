package cnwentitlement

import (
	"sync"
	"sync/atomic"
)

// EventName names an event published by the Manager.
type EventName string

// Lifecycle events.
const (
	EventInstalled  EventName = "installed"
	EventRemoved    EventName = "removed"
	EventSync       EventName = "sync"
	EventValidate   EventName = "validate"
	EventInvalidate EventName = "invalidate"
	EventModule     EventName = "module"
)

// ValidModuleEvent is published when module m becomes granted.
func ValidModuleEvent(m Module) EventName { return EventName("valid:" + string(m)) }

// InvalidModuleEvent is published when module m is removed.
func InvalidModuleEvent(m Module) EventName { return EventName("invalid:" + string(m)) }

// BehaviorEvent is published when behavior b is triggered.
func BehaviorEvent(b Behavior) EventName { return EventName("behavior:" + string(b)) }

// LimitReachedEvent is published when a limit of kind k is reached.
func LimitReachedEvent(k LimitKind) EventName { return EventName("limitReached:" + string(k)) }

// Event is the payload delivered to subscribers.
type Event struct {
	Name EventName
	// Module and Valid are set for module events.
	Module Module
	Valid  bool
	// Behavior is set for behavior and limitReached events.
	Behavior *BehaviorResult
}

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Emitter is a synchronous pub/sub hub. It is safe for concurrent use; the
// subscriber list is copied before dispatch so handlers may subscribe or
// unsubscribe while being called.
type Emitter struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[EventName][]subscription
}

// NewEmitter creates an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[EventName][]subscription)}
}

// On subscribes h to name and returns a function that removes the subscription.
func (e *Emitter) On(name EventName, h Handler) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subs[name] = append(e.subs[name], subscription{id: id, handler: h})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.off(name, id) })
	}
}

// Once subscribes h to the next occurrence of name only.
func (e *Emitter) Once(name EventName, h Handler) func() {
	var (
		fired atomic.Bool
		unsub func()
	)
	ready := make(chan struct{})
	unsub = e.On(name, func(ev Event) {
		if fired.Swap(true) {
			return
		}
		<-ready
		unsub()
		h(ev)
	})
	close(ready)
	return unsub
}

func (e *Emitter) off(name EventName, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := e.subs[name]
	for i, s := range list {
		if s.id == id {
			e.subs[name] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(e.subs[name]) == 0 {
		delete(e.subs, name)
	}
}

// Emit delivers ev to every subscriber of ev.Name, in subscription order.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	list := append([]subscription(nil), e.subs[ev.Name]...)
	e.mu.RUnlock()

	for _, s := range list {
		s.handler(ev)
	}
}

// ListenerCount returns the number of subscribers of name.
func (e *Emitter) ListenerCount(name EventName) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs[name])
}

// moduleEvents builds the notifications for modules that were added and removed.
func moduleEvents(added, removed []Module) []Event {
	events := make([]Event, 0, 2*(len(added)+len(removed)))
	for _, m := range added {
		events = append(events,
			Event{Name: EventModule, Module: m, Valid: true},
			Event{Name: ValidModuleEvent(m), Module: m, Valid: true},
		)
	}
	for _, m := range removed {
		events = append(events,
			Event{Name: EventModule, Module: m, Valid: false},
			Event{Name: InvalidModuleEvent(m), Module: m, Valid: false},
		)
	}
	return events
}

// behaviorEvents builds the notifications for triggered behaviors.
func behaviorEvents(results []BehaviorResult) []Event {
	events := make([]Event, 0, len(results))
	for i := range results {
		r := results[i]
		if r.Reason == ReasonLimit && r.Limit != "" && r.Behavior != BehaviorAllowAction {
			events = append(events, Event{Name: LimitReachedEvent(r.Limit), Behavior: &r})
		}
		events = append(events, Event{Name: BehaviorEvent(r.Behavior), Behavior: &r})
	}
	return events
}
