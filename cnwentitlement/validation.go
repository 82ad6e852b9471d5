package cnwentitlement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// LimitCounter returns the current usage for a limit kind.
type LimitCounter func(ctx context.Context, lc LimitContext) (int, error)

// licenseBehaviors are evaluated on every license validation.
var licenseBehaviors = []Behavior{
	BehaviorInvalidateLicense,
	BehaviorStartFairPolicy,
	BehaviorPreventInstallation,
	BehaviorDisableModules,
}

// blockingBehaviors make a validation fail with ErrInvalidLicense.
var blockingBehaviors = []Behavior{
	BehaviorInvalidateLicense,
	BehaviorPreventInstallation,
}

// syncBehaviors indicate an observable change worth broadcasting.
var syncBehaviors = []Behavior{
	BehaviorInvalidateLicense,
	BehaviorStartFairPolicy,
	BehaviorPreventInstallation,
}

// defaultLimits apply when no license is installed.
var defaultLimits = map[LimitKind][]LimitRule{
	LimitPrivateApps:     {{Behavior: BehaviorPreventAction, Max: -1}},
	LimitMarketplaceApps: {{Behavior: BehaviorPreventAction, Max: -1}},
}

// validationEnv is the manager state a validation run reads. It is a
// snapshot so no lock is held while counters run.
type validationEnv struct {
	workspaceURL string
	now          time.Time
	counters     map[LimitKind]LimitCounter
}

// runValidation evaluates every check of license for the requested behaviors.
func runValidation(ctx context.Context, license *License, env validationEnv, opts ValidationOptions) ([]BehaviorResult, error) {
	var results []BehaviorResult
	results = append(results, validateLicenseURL(license, env.workspaceURL, opts)...)
	results = append(results, validateLicensePeriods(license, env.now, opts)...)

	limitResults, err := validateLimits(ctx, license.Limits, env.counters, opts)
	if err != nil {
		return nil, err
	}
	return append(results, limitResults...), nil
}

// validateDefaultLimits evaluates the built-in limit table.
func validateDefaultLimits(ctx context.Context, env validationEnv, opts ValidationOptions) ([]BehaviorResult, error) {
	return validateLimits(ctx, defaultLimits, env.counters, opts)
}

func validateLicenseURL(license *License, workspaceURL string, opts ValidationOptions) []BehaviorResult {
	if !containsBehavior(opts.Behaviors, BehaviorInvalidateLicense) {
		return nil
	}
	urls := license.Validation.ServerURLs
	if len(urls) == 0 || workspaceURL == "" {
		return nil
	}
	for _, u := range urls {
		if serverURLMatches(u, workspaceURL) {
			return nil
		}
	}
	return []BehaviorResult{{Behavior: BehaviorInvalidateLicense, Reason: ReasonURL}}
}

func serverURLMatches(u ServerURL, workspaceURL string) bool {
	switch u.Type {
	case ServerURLRegex:
		if u.Value == "*" {
			return true
		}
		re, err := regexp.Compile(u.Value)
		if err != nil {
			return false
		}
		return re.MatchString(workspaceURL)
	case ServerURLHash:
		sum := sha256.Sum256([]byte(workspaceURL))
		return strings.EqualFold(u.Value, hex.EncodeToString(sum[:]))
	default:
		return NormalizeWorkspaceURL(u.Value) == workspaceURL
	}
}

func validateLicensePeriods(license *License, now time.Time, opts ValidationOptions) []BehaviorResult {
	var results []BehaviorResult
	for _, p := range license.Validation.ValidPeriods {
		if !containsBehavior(opts.Behaviors, p.InvalidBehavior) {
			continue
		}
		outside := (p.ValidFrom != nil && now.Before(*p.ValidFrom)) ||
			(p.ValidUntil != nil && now.After(*p.ValidUntil))
		if !outside {
			continue
		}
		results = append(results, BehaviorResult{
			Behavior: p.InvalidBehavior,
			Reason:   ReasonPeriod,
			Modules:  modulesFor(p.InvalidBehavior, p.Modules),
		})
	}
	return results
}

// validateLimits evaluates limit rules concurrently, one goroutine per kind.
// Kinds without a counter are within bounds.
func validateLimits(ctx context.Context, limits map[LimitKind][]LimitRule, counters map[LimitKind]LimitCounter, opts ValidationOptions) ([]BehaviorResult, error) {
	perKind := make([][]BehaviorResult, len(AllLimitKinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range AllLimitKinds {
		if len(opts.Limits) > 0 && !containsLimit(opts.Limits, kind) {
			continue
		}
		rules := filterRules(limits[kind], opts.Behaviors)
		if len(rules) == 0 {
			continue
		}
		counter, ok := counters[kind]
		if !ok {
			continue
		}

		g.Go(func() error {
			lc := opts.Context[kind]
			current, err := counter(gctx, lc)
			if err != nil {
				return fmt.Errorf("count %s: %w", kind, err)
			}
			current += lc.ExtraCount

			for _, rule := range rules {
				if !limitExceeded(rule, current, lc.ExtraCount) {
					continue
				}
				perKind[i] = append(perKind[i], BehaviorResult{
					Behavior: rule.Behavior,
					Reason:   ReasonLimit,
					Limit:    kind,
					Modules:  modulesFor(rule.Behavior, rule.Modules),
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results []BehaviorResult
	for _, r := range perKind {
		results = append(results, r...)
	}
	return results, nil
}

// limitExceeded applies the comparison for rule. prevent_action is reached at
// the max when checking the current count, and only when going over it when
// checking a future count.
func limitExceeded(rule LimitRule, current, extraCount int) bool {
	if rule.Behavior == BehaviorPreventAction && extraCount == 0 {
		return current >= rule.Max
	}
	return current > rule.Max
}

func filterRules(rules []LimitRule, behaviors []Behavior) []LimitRule {
	var out []LimitRule
	for _, r := range rules {
		if r.Max < 0 || !containsBehavior(behaviors, r.Behavior) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func modulesFor(b Behavior, modules []Module) []Module {
	if b != BehaviorDisableModules {
		return nil
	}
	return append([]Module(nil), modules...)
}

// isBehaviorsInResult reports whether any result carries one of behaviors.
func isBehaviorsInResult(results []BehaviorResult, behaviors []Behavior) bool {
	for _, r := range results {
		if containsBehavior(behaviors, r.Behavior) {
			return true
		}
	}
	return false
}

// filterBehaviorsResult keeps the results carrying one of behaviors.
func filterBehaviorsResult(results []BehaviorResult, behaviors []Behavior) []BehaviorResult {
	var out []BehaviorResult
	for _, r := range results {
		if containsBehavior(behaviors, r.Behavior) {
			out = append(out, r)
		}
	}
	return out
}

func containsBehavior(list []Behavior, b Behavior) bool {
	for _, x := range list {
		if x == b {
			return true
		}
	}
	return false
}

func containsLimit(list []LimitKind, k LimitKind) bool {
	for _, x := range list {
		if x == k {
			return true
		}
	}
	return false
}

// limitMax returns the tightest max declared for kind, or -1 when the kind is
// unbounded. Without a license the default table applies.
func limitMax(license *License, kind LimitKind) int {
	rules := defaultLimits[kind]
	if license != nil {
		rules = license.Limits[kind]
	}
	tightest := -1
	for _, r := range rules {
		if r.Max < 0 {
			continue
		}
		if tightest < 0 || r.Max < tightest {
			tightest = r.Max
		}
	}
	return tightest
}
