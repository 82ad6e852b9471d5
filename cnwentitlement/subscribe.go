package cnwentitlement

import "sync"

// On subscribes h to name on the Manager's emitter.
func (m *Manager) On(name EventName, h Handler) func() {
	return m.events.On(name, h)
}

// OnValidFeature calls fn whenever module becomes granted, and once right
// away when it already is.
func (m *Manager) OnValidFeature(module Module, fn func()) func() {
	unsub := m.events.On(ValidModuleEvent(module), func(Event) {
		if m.HasModule(module) {
			fn()
		}
	})
	if m.HasModule(module) {
		fn()
	}
	return unsub
}

// OnInvalidFeature calls fn whenever module stops being granted, and once
// right away when it is not granted.
func (m *Manager) OnInvalidFeature(module Module, fn func()) func() {
	unsub := m.events.On(InvalidModuleEvent(module), func(Event) {
		if !m.HasModule(module) {
			fn()
		}
	})
	if !m.HasModule(module) {
		fn()
	}
	return unsub
}

// OnToggledFeature calls up when module becomes entitled and down when it
// stops being entitled. up is called right away when it already is.
func (m *Manager) OnToggledFeature(module Module, up, down func()) func() {
	var (
		mu      sync.Mutex
		enabled bool
	)
	toggle := func() {
		mu.Lock()
		now := m.HasModule(module)
		changed := now != enabled
		enabled = now
		mu.Unlock()

		switch {
		case changed && now && up != nil:
			up()
		case changed && !now && down != nil:
			down()
		}
	}

	unsubValid := m.events.On(ValidModuleEvent(module), func(Event) { toggle() })
	unsubInvalid := m.events.On(InvalidModuleEvent(module), func(Event) { toggle() })
	toggle()
	return func() {
		unsubValid()
		unsubInvalid()
	}
}

// OnModule calls fn for every module grant or revocation.
func (m *Manager) OnModule(fn func(module Module, valid bool)) func() {
	return m.events.On(EventModule, func(ev Event) { fn(ev.Module, ev.Valid) })
}

// OnValidateLicense calls fn after every successful validation.
func (m *Manager) OnValidateLicense(fn func()) func() {
	return m.events.On(EventValidate, func(Event) { fn() })
}

// OnInvalidateLicense calls fn when the active license is invalidated.
func (m *Manager) OnInvalidateLicense(fn func()) func() {
	return m.events.On(EventInvalidate, func(Event) { fn() })
}

// OnInstall calls fn after a new license is installed.
func (m *Manager) OnInstall(fn func()) func() {
	return m.events.On(EventInstalled, func(Event) { fn() })
}

// OnRemoveLicense calls fn after the license is removed.
func (m *Manager) OnRemoveLicense(fn func()) func() {
	return m.events.On(EventRemoved, func(Event) { fn() })
}

// OnSync calls fn when the license changed in a way other instances must
// reconcile.
func (m *Manager) OnSync(fn func()) func() {
	return m.events.On(EventSync, func(Event) { fn() })
}

// OnLimitReached calls fn when a limit of kind is reached.
func (m *Manager) OnLimitReached(kind LimitKind, fn func(BehaviorResult)) func() {
	return m.events.On(LimitReachedEvent(kind), func(ev Event) {
		if ev.Behavior != nil {
			fn(*ev.Behavior)
		}
	})
}

// OnBehaviorTriggered calls fn when behavior b is triggered.
func (m *Manager) OnBehaviorTriggered(b Behavior, fn func(BehaviorResult)) func() {
	return m.events.On(BehaviorEvent(b), func(ev Event) {
		if ev.Behavior != nil {
			fn(*ev.Behavior)
		}
	})
}
