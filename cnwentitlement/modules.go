package cnwentitlement

import "sort"

// moduleRegistry tracks the currently granted modules. It is owned by a
// Manager and only mutated under the Manager's lock.
type moduleRegistry struct {
	set map[Module]struct{}
}

func newModuleRegistry() *moduleRegistry {
	return &moduleRegistry{set: make(map[Module]struct{})}
}

// replace swaps the granted set for newModules and reports what was added
// and removed, in a deterministic order.
func (r *moduleRegistry) replace(newModules []Module) (added, removed []Module) {
	next := make(map[Module]struct{}, len(newModules))
	for _, m := range newModules {
		next[m] = struct{}{}
		if _, ok := r.set[m]; ok {
			continue
		}
		if !containsModule(added, m) {
			added = append(added, m)
		}
	}
	for m := range r.set {
		if _, ok := next[m]; !ok {
			removed = append(removed, m)
		}
	}
	sortModules(removed)

	r.set = next
	return added, removed
}

// invalidateAll removes every granted module and returns the removed ones.
func (r *moduleRegistry) invalidateAll() []Module {
	removed := r.list()
	r.set = make(map[Module]struct{})
	return removed
}

func (r *moduleRegistry) has(m Module) bool {
	_, ok := r.set[m]
	return ok
}

func (r *moduleRegistry) list() []Module {
	out := make([]Module, 0, len(r.set))
	for m := range r.set {
		out = append(out, m)
	}
	sortModules(out)
	return out
}

// modulesToDisable collects the modules named by disable_modules behaviors.
func modulesToDisable(results []BehaviorResult) []Module {
	var out []Module
	for _, r := range results {
		if r.Behavior != BehaviorDisableModules {
			continue
		}
		for _, m := range r.Modules {
			if !containsModule(out, m) {
				out = append(out, m)
			}
		}
	}
	return out
}

// enabledModules returns the license's granted modules minus disabled.
func enabledModules(license *License, disabled []Module) []Module {
	out := make([]Module, 0, len(license.GrantedModules))
	for _, gm := range license.GrantedModules {
		if containsModule(disabled, gm.Module) || containsModule(out, gm.Module) {
			continue
		}
		out = append(out, gm.Module)
	}
	return out
}

// externalModules returns the granted modules outside the core catalog.
func externalModules(license *License) []GrantedModule {
	if license == nil {
		return []GrantedModule{}
	}
	out := []GrantedModule{}
	for _, gm := range license.GrantedModules {
		if !IsCoreModule(gm.Module) {
			gm.External = true
			out = append(out, gm)
		}
	}
	return out
}

func containsModule(list []Module, m Module) bool {
	for _, x := range list {
		if x == m {
			return true
		}
	}
	return false
}

func sortModules(list []Module) {
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
}

// tagRegistry holds the descriptive tags of the active license. It is
// replaced wholesale on every validation.
type tagRegistry struct {
	tags []Tag
}

func (r *tagRegistry) replace(tags []Tag) {
	r.tags = dedupTags(tags)
}

func (r *tagRegistry) clear() {
	r.tags = nil
}

func (r *tagRegistry) list() []Tag {
	return append([]Tag{}, r.tags...)
}

func dedupTags(tags []Tag) []Tag {
	out := make([]Tag, 0, len(tags))
	seen := make(map[Tag]struct{}, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
