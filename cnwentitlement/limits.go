package cnwentitlement

import (
	"context"
	"fmt"
)

// preventionCache memoizes the "should prevent action" answer per limit kind.
// It is owned by a Manager and only touched under the Manager's lock.
type preventionCache struct {
	results map[LimitKind]bool
}

func newPreventionCache() *preventionCache {
	return &preventionCache{results: make(map[LimitKind]bool)}
}

func (c *preventionCache) get(kind LimitKind) (prevented, ok bool) {
	prevented, ok = c.results[kind]
	return prevented, ok
}

func (c *preventionCache) set(kind LimitKind, prevented bool) {
	c.results[kind] = prevented
}

func (c *preventionCache) clear() {
	c.results = make(map[LimitKind]bool)
}

func (c *preventionCache) len() int {
	return len(c.results)
}

// overwrite stores every entry of results, leaving other kinds untouched.
func (c *preventionCache) overwrite(results map[LimitKind]bool) {
	for kind, prevented := range results {
		c.results[kind] = prevented
	}
}

// preventActionBehaviors is the behavior filter used by admission checks.
var preventActionBehaviors = []Behavior{BehaviorPreventAction}

// evaluateLimit runs the limit evaluator for a single kind against license,
// or against the default table when license is nil.
func evaluateLimit(ctx context.Context, license *License, env validationEnv, kind LimitKind, lc LimitContext) ([]BehaviorResult, error) {
	opts := ValidationOptions{
		Behaviors: preventActionBehaviors,
		Limits:    []LimitKind{kind},
		Context:   map[LimitKind]LimitContext{kind: lc},
	}
	if license == nil {
		return validateDefaultLimits(ctx, env, opts)
	}
	return validateLimits(ctx, license.Limits, env.counters, opts)
}

// currentValue reads the live usage of kind. It reports false when no counter
// is registered.
func currentValue(ctx context.Context, counters map[LimitKind]LimitCounter, kind LimitKind) (int, bool, error) {
	counter, ok := counters[kind]
	if !ok {
		return 0, false, nil
	}
	v, err := counter(ctx, LimitContext{})
	if err != nil {
		return 0, false, fmt.Errorf("count %s: %w", kind, err)
	}
	return v, true, nil
}

// allowActionResult is published when a kind moves back within bounds.
func allowActionResult(kind LimitKind) BehaviorResult {
	return BehaviorResult{Behavior: BehaviorAllowAction, Reason: ReasonLimit, Limit: kind}
}
