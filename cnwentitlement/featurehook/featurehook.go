// Package featurehook toggles application hooks from a boolean setting,
// gated by module entitlement.
package featurehook

import (
	"sync"

	"github.com/CloudNativeWorks/cnw-entitlement-sdk/cnwentitlement"
)

// SettingsStore is the key-value settings collaborator.
type SettingsStore interface {
	Get(name string) (any, bool)
	// Watch calls fn with every new value of name and returns a function
	// that stops watching.
	Watch(name string, fn func(value any)) (cancel func())
}

// Entitlements is the subset of the Manager a binding needs.
type Entitlements interface {
	IsEntitled(module cnwentitlement.Module) bool
	OnModule(fn func(module cnwentitlement.Module, valid bool)) func()
}

// Hook is a switchable application hook, e.g. a "before save" handler.
type Hook struct {
	Name string

	mu      sync.RWMutex
	enabled bool
}

// NewHook creates a disabled hook.
func NewHook(name string) *Hook {
	return &Hook{Name: name}
}

// Enabled reports whether the hook should run.
func (h *Hook) Enabled() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.enabled
}

func (h *Hook) set(enabled bool) {
	h.mu.Lock()
	h.enabled = enabled
	h.mu.Unlock()
}

// Binding keeps a Hook in sync with a setting and a module.
type Binding struct {
	hook    *Hook
	setting string
	module  cnwentitlement.Module
	ent     Entitlements

	mu    sync.Mutex
	value bool

	cancels []func()
}

// Bind enables hook while the boolean setting is true and module is
// entitled. The hook is re-evaluated on every setting change and module
// event until Close is called.
func Bind(hook *Hook, settings SettingsStore, setting string, ent Entitlements, module cnwentitlement.Module) *Binding {
	b := &Binding{
		hook:    hook,
		setting: setting,
		module:  module,
		ent:     ent,
	}
	if v, ok := settings.Get(setting); ok {
		b.value = asBool(v)
	}
	b.cancels = append(b.cancels,
		settings.Watch(setting, func(v any) {
			b.mu.Lock()
			b.value = asBool(v)
			b.mu.Unlock()
			b.apply()
		}),
		ent.OnModule(func(m cnwentitlement.Module, _ bool) {
			if m == b.module {
				b.apply()
			}
		}),
	)
	b.apply()
	return b
}

func (b *Binding) apply() {
	b.mu.Lock()
	value := b.value
	b.mu.Unlock()
	b.hook.set(value && b.ent.IsEntitled(b.module))
}

// Close stops watching the setting and module events. The hook keeps its
// last state.
func (b *Binding) Close() {
	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case *bool:
		return t != nil && *t
	case string:
		return t == "true"
	default:
		return false
	}
}
