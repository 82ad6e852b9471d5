package cnwentitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/CloudNativeWorks/cnw-entitlement-sdk/cnwentitlement/licensestore"
)

// V3Prefix marks tokens that carry the V3 license schema. Any other token is
// decoded as V2 and converted.
const V3Prefix = "V3_"

var errEmptyLicense = errors.New("license document is empty")

// tokenPattern is the character set of base64, base64url and JWT tokens.
var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9+/=_.\-]+$`)

// Manager owns the license state of one workspace. It decrypts and validates
// license tokens, tracks granted modules and tags, answers limit checks and
// publishes lifecycle events.
//
// A Manager is safe for concurrent use. Concurrent installs follow
// last-writer-wins semantics.
type Manager struct {
	logger    *zap.Logger
	cfg       Config
	decrypter Decrypter
	meter     metric.Meter
	metrics   *entitlementMetrics
	now       func() time.Time
	events    *Emitter
	store     licensestore.Store
	storeKey  string
	cloud     *CloudClient

	policyOverride Policy

	mu           sync.Mutex
	license      *License
	unmodified   any // *License or *LicenseV2, as decoded
	valid        bool
	locked       string
	workspaceURL string
	modules      *moduleRegistry
	tags         tagRegistry
	pending      pendingLicense
	cache        *preventionCache
	counters     map[LimitKind]LimitCounter
}

// NewManager creates a new license Manager.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		cfg:      DefaultConfig(),
		now:      time.Now,
		events:   NewEmitter(),
		modules:  newModuleRegistry(),
		cache:    newPreventionCache(),
		counters: make(map[LimitKind]LimitCounter),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.policyOverride != "" {
		m.cfg.Policy = m.policyOverride
	}
	if err := m.cfg.Validate(); err != nil {
		return nil, err
	}

	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.decrypter == nil {
		var signedOpts []SignedOption
		if m.cfg.TrustedPublicKey != "" {
			signedOpts = append(signedOpts, WithTrustedPublicKey(m.cfg.TrustedPublicKey))
		}
		m.decrypter = NewSignedDecrypter(signedOpts...)
	}
	if m.cloud == nil {
		m.cloud = NewCloudClientFromConfig(m.cfg.Cloud)
	}

	metrics, err := newEntitlementMetrics(m.meter)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	m.metrics = metrics

	m.workspaceURL = NormalizeWorkspaceURL(m.cfg.WorkspaceURL)
	return m, nil
}

// Policy returns the active entitlement policy.
func (m *Manager) Policy() Policy {
	return m.cfg.Policy
}

func (m *Manager) alwaysGrant() bool {
	return m.cfg.Policy == PolicyAlwaysGrant
}

// Events returns the emitter the Manager publishes on.
func (m *Manager) Events() *Emitter {
	return m.events
}

// NormalizeWorkspaceURL strips a trailing slash and the http(s) scheme.
func NormalizeWorkspaceURL(url string) string {
	url = strings.TrimSuffix(url, "/")
	if rest, ok := strings.CutPrefix(url, "https://"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(url, "http://"); ok {
		return rest
	}
	return url
}

// SetWorkspaceURL sets the workspace identity used for validation. A license
// held as pending is applied immediately and its result is returned.
func (m *Manager) SetWorkspaceURL(ctx context.Context, url string) error {
	m.mu.Lock()
	m.workspaceURL = NormalizeWorkspaceURL(url)
	var pending string
	if m.readyLocked() && m.pending.has() {
		pending = m.pending.take()
	}
	m.mu.Unlock()

	if pending == "" {
		return nil
	}
	m.logger.Info("applying pending license")
	_, err := m.SetLicense(ctx, pending, true)
	return err
}

// WorkspaceURL returns the normalized workspace URL.
func (m *Manager) WorkspaceURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workspaceURL
}

func (m *Manager) readyLocked() bool {
	return m.workspaceURL != ""
}

func validateFormat(ciphertext string) bool {
	token := strings.TrimPrefix(ciphertext, V3Prefix)
	return token != "" && tokenPattern.MatchString(token)
}

// SetLicense decrypts, migrates and validates ciphertext and makes it the
// active license. It returns true on success.
//
// Errors:
//   - ErrInvalidLicense when the token is malformed, cannot be decrypted or
//     validation triggers a blocking behavior (*ValidationError)
//   - ErrDuplicatedLicense when ciphertext is the active, valid license
//   - ErrPendingLicenseDiscarded when the active license is resubmitted while
//     another one is pending
//   - ErrNotReadyForValidation when the workspace URL is unknown; the token
//     decoded and is kept pending until SetWorkspaceURL applies it
//   - ErrLicenseSuperseded when a concurrent install replaced the license
//     before validation finished; nothing is published or persisted
//
// A failed call leaves the previous license state untouched.
func (m *Manager) SetLicense(ctx context.Context, ciphertext string, isNewLicense bool) (bool, error) {
	if !validateFormat(ciphertext) {
		return false, fmt.Errorf("%w: malformed token", ErrInvalidLicense)
	}

	m.mu.Lock()
	if m.locked != "" && m.locked == ciphertext {
		// Reverting to the active license drops the pending one.
		if m.pending.has() && !m.pending.is(ciphertext) {
			m.pending.clear()
			m.mu.Unlock()
			return false, ErrPendingLicenseDiscarded
		}
		// A license that failed validation earlier, e.g. before its valid
		// period, may be retried.
		if m.valid && m.license != nil {
			m.mu.Unlock()
			return false, ErrDuplicatedLicense
		}
	}
	m.mu.Unlock()

	// Decoding does not need the workspace identity, so only tokens that
	// decode are held as pending.
	license, original, err := m.decode(ctx, ciphertext)
	if err != nil {
		m.logger.Error("invalid license", zap.Int("length", len(ciphertext)), zap.Error(err))
		return false, fmt.Errorf("%w: %w", ErrInvalidLicense, err)
	}

	m.mu.Lock()
	if !m.readyLocked() {
		m.pending.set(ciphertext)
		m.mu.Unlock()
		return false, ErrNotReadyForValidation
	}
	m.mu.Unlock()

	m.logger.Info("new license", zap.Bool("new", isNewLicense))
	if err := m.install(ctx, license, original, ciphertext, isNewLicense); err != nil {
		if errors.Is(err, ErrLicenseSuperseded) {
			m.logger.Warn("license superseded by a concurrent install")
		} else {
			m.logger.Error("license validation failed", zap.Error(err))
		}
		return false, err
	}
	if isNewLicense {
		m.emit(ctx, Event{Name: EventInstalled})
	}
	m.persist(ctx, ciphertext)
	return true, nil
}

// decode decrypts ciphertext and returns the V3 license with the document as
// it was decoded.
func (m *Manager) decode(ctx context.Context, ciphertext string) (*License, any, error) {
	token, isV3 := strings.CutPrefix(ciphertext, V3Prefix)
	plain, err := m.decrypter.Decrypt(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	// A custom Decrypter may hand back null, which unmarshals into a zero
	// license without error.
	if !isJSONObject(plain) {
		return nil, nil, errEmptyLicense
	}

	if isV3 {
		var license License
		if err := json.Unmarshal(plain, &license); err != nil {
			return nil, nil, fmt.Errorf("parse license: %w", err)
		}
		if license.Limits == nil {
			license.Limits = make(map[LimitKind][]LimitRule)
		}
		return &license, &license, nil
	}

	var v2 LicenseV2
	if err := json.Unmarshal(plain, &v2); err != nil {
		return nil, nil, fmt.Errorf("parse v2 license: %w", err)
	}
	license, err := ConvertToV3(&v2)
	if err != nil {
		return nil, nil, fmt.Errorf("convert v2 license: %w", err)
	}
	return license, &v2, nil
}

// licenseState is the part of the state restored when an install fails.
type licenseState struct {
	license    *License
	unmodified any
	valid      bool
	locked     string
}

// install replaces the license state and validates it. On failure the prior
// state is restored.
func (m *Manager) install(ctx context.Context, license *License, original any, ciphertext string, isNewLicense bool) error {
	m.mu.Lock()
	prev := licenseState{license: m.license, unmodified: m.unmodified, valid: m.valid, locked: m.locked}
	m.clearLicenseDataLocked()
	m.license = license
	m.unmodified = original
	m.locked = ciphertext
	m.mu.Unlock()

	err := m.validateLicense(ctx, ValidationOptions{IsNewLicense: isNewLicense})
	if err == nil {
		return nil
	}

	m.mu.Lock()
	if m.license == license {
		m.license = prev.license
		m.unmodified = prev.unmodified
		m.valid = prev.valid
		m.locked = prev.locked
	}
	m.mu.Unlock()
	return err
}

func (m *Manager) clearLicenseDataLocked() {
	m.license = nil
	m.unmodified = nil
	m.valid = false
	m.locked = ""
	m.cache.clear()
	m.pending.clear()
}

func (m *Manager) envLocked() validationEnv {
	counters := make(map[LimitKind]LimitCounter, len(m.counters))
	for k, c := range m.counters {
		counters[k] = c
	}
	return validationEnv{
		workspaceURL: m.workspaceURL,
		now:          m.now(),
		counters:     counters,
	}
}

// validateLicense runs the validation pipeline on the current license and
// applies the result to the module and tag registries.
func (m *Manager) validateLicense(ctx context.Context, opts ValidationOptions) error {
	m.mu.Lock()
	license := m.license
	if license == nil {
		m.mu.Unlock()
		return ErrInvalidLicense
	}
	if !m.readyLocked() {
		m.mu.Unlock()
		return ErrNotReadyForValidation
	}
	env := m.envLocked()
	m.mu.Unlock()

	if len(opts.Behaviors) == 0 {
		opts.Behaviors = licenseBehaviors
	}
	results, err := runValidation(ctx, license, env, opts)
	if err == nil && isBehaviorsInResult(results, blockingBehaviors) {
		err = &ValidationError{Behaviors: filterBehaviorsResult(results, blockingBehaviors)}
	}
	m.metrics.recordValidation(ctx, err)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return err
		}
		return fmt.Errorf("validate license: %w", err)
	}

	m.mu.Lock()
	if m.license != license {
		m.mu.Unlock()
		return ErrLicenseSuperseded
	}
	shouldLogModules := !m.valid || opts.IsNewLicense
	m.valid = true
	m.tags.replace(license.Information.Tags)
	enabled := enabledModules(license, modulesToDisable(results))
	added, removed := m.modules.replace(enabled)
	m.mu.Unlock()

	modulesChanged := len(added) > 0 || len(removed) > 0
	if shouldLogModules || modulesChanged {
		m.logger.Info("license validated", zap.Any("modules", enabled))
	}

	events := moduleEvents(added, removed)
	if !opts.IsNewLicense {
		events = append(events, behaviorEvents(results)...)
	}
	events = append(events, Event{Name: EventValidate})

	changed := modulesChanged || (!opts.IsNewLicense && len(filterBehaviorsResult(results, syncBehaviors)) > 0)
	if changed && opts.TriggerSync {
		events = append(events, Event{Name: EventSync})
	}
	m.emit(ctx, events...)
	return nil
}

// invalidate marks the license invalid and revokes every module.
func (m *Manager) invalidate(ctx context.Context) {
	m.mu.Lock()
	m.valid = false
	m.cache.clear()
	removed := m.modules.invalidateAll()
	m.mu.Unlock()

	m.logger.Warn("license invalidated")
	events := moduleEvents(nil, removed)
	m.emit(ctx, append(events, Event{Name: EventInvalidate})...)
}

func (m *Manager) hasRealValidLicense() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid && m.license != nil
}

// RevalidateLicense re-runs validation on the active license and publishes
// sync when the outcome changed. A blocking result invalidates the license
// and is not returned as an error.
func (m *Manager) RevalidateLicense(ctx context.Context, opts ValidationOptions) error {
	if !m.hasRealValidLicense() {
		return nil
	}
	opts.IsNewLicense = false
	opts.TriggerSync = true

	err := m.validateLicense(ctx, opts)
	if errors.Is(err, ErrInvalidLicense) {
		m.invalidate(ctx)
		m.emit(ctx, Event{Name: EventSync})
		return nil
	}
	if errors.Is(err, ErrLicenseSuperseded) {
		// The newer license ran its own validation.
		return nil
	}
	return err
}

// Sync re-runs validation after another instance reported a change. It never
// publishes sync itself.
func (m *Manager) Sync(ctx context.Context, opts ValidationOptions) error {
	if !m.hasRealValidLicense() {
		return nil
	}
	opts.IsNewLicense = false
	opts.TriggerSync = false

	err := m.validateLicense(ctx, opts)
	if errors.Is(err, ErrInvalidLicense) {
		m.invalidate(ctx)
		return nil
	}
	if errors.Is(err, ErrLicenseSuperseded) {
		return nil
	}
	return err
}

// Remove clears the license state, revokes every module and deletes the
// stored token. It is a no-op when no license is set.
func (m *Manager) Remove(ctx context.Context) error {
	m.mu.Lock()
	if m.license == nil {
		m.mu.Unlock()
		return nil
	}
	m.clearLicenseDataLocked()
	m.tags.clear()
	removed := m.modules.invalidateAll()
	m.mu.Unlock()

	m.logger.Info("license removed")
	events := moduleEvents(nil, removed)
	m.emit(ctx, append(events, Event{Name: EventRemoved})...)

	if m.store != nil {
		if err := m.store.Delete(ctx, m.storeKey); err != nil {
			return fmt.Errorf("delete stored license: %w", err)
		}
	}
	return nil
}

// HasValidLicense reports whether an accepted license exists. It is always
// true under PolicyAlwaysGrant.
func (m *Manager) HasValidLicense() bool {
	if m.alwaysGrant() {
		return true
	}
	return m.hasRealValidLicense()
}

// GetLicense returns the active license if it is currently valid.
func (m *Manager) GetLicense() *License {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valid && m.license != nil {
		return m.license
	}
	return nil
}

// UnmodifiedLicense returns the license document as decoded, before any
// schema migration: a *License or a *LicenseV2.
func (m *Manager) UnmodifiedLicense() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unmodified
}

// EncryptedLicense returns the token of the active license when it is valid.
func (m *Manager) EncryptedLicense() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.valid || m.license == nil {
		return "", false
	}
	return m.locked, true
}

// Valid reports the outcome of the last validation, regardless of policy.
func (m *Manager) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// GetModules returns the granted modules. Under PolicyAlwaysGrant it is the
// full core catalog.
func (m *Manager) GetModules() []Module {
	if m.alwaysGrant() {
		return append([]Module(nil), CoreModules...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modules.list()
}

// HasModule reports whether module is granted.
func (m *Manager) HasModule(module Module) bool {
	if m.alwaysGrant() {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modules.has(module)
}

// IsEntitled is the predicate presentation layers use to gate a feature.
func (m *Manager) IsEntitled(module Module) bool {
	return m.HasModule(module)
}

// GetModuleDefinition returns the grant entry of module in the active license.
func (m *Manager) GetModuleDefinition(module Module) (GrantedModule, bool) {
	license := m.GetLicense()
	if license == nil {
		return GrantedModule{}, false
	}
	for _, gm := range license.GrantedModules {
		if gm.Module == module {
			gm.External = !IsCoreModule(gm.Module)
			return gm, true
		}
	}
	return GrantedModule{}, false
}

// GetExternalModules returns the granted modules outside the core catalog.
func (m *Manager) GetExternalModules() []GrantedModule {
	return externalModules(m.GetLicense())
}

// GetTags returns the tags of the last validated license.
func (m *Manager) GetTags() []Tag {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tags.list()
}

// SetLicenseLimitCounter registers the usage counter of a limit kind. Cached
// prevention results are discarded.
func (m *Manager) SetLicenseLimitCounter(kind LimitKind, counter LimitCounter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[kind] = counter
	m.cache.clear()
}

// GetCurrentValueForLicenseLimit returns the live usage of kind, or 0 when no
// counter is registered.
func (m *Manager) GetCurrentValueForLicenseLimit(ctx context.Context, kind LimitKind) (int, error) {
	m.mu.Lock()
	counters := m.envLocked().counters
	m.mu.Unlock()

	v, _, err := currentValue(ctx, counters, kind)
	return v, err
}

func (m *Manager) suppressLog(opts PreventOptions) bool {
	if opts.SuppressLog != nil {
		return *opts.SuppressLog
	}
	return m.cfg.SuppressValidationLog
}

// ShouldPreventAction reports whether an action gated by kind must be
// refused. extraCount is the number of units the action would add.
//
// Results for extraCount == 0 are cached until the license state changes.
// Under PolicyAlwaysGrant the check still runs but the answer is false.
func (m *Manager) ShouldPreventAction(ctx context.Context, kind LimitKind, extraCount int, lc LimitContext, opts PreventOptions) (bool, error) {
	prevented, err := m.evaluatePrevention(ctx, kind, extraCount, lc, m.suppressLog(opts))
	if m.alwaysGrant() {
		if err != nil {
			m.logger.Warn("limit evaluation failed", zap.String("limit", string(kind)), zap.Error(err))
		}
		return false, nil
	}
	return prevented, err
}

func (m *Manager) evaluatePrevention(ctx context.Context, kind LimitKind, extraCount int, lc LimitContext, suppressLog bool) (bool, error) {
	lc.ExtraCount = extraCount

	m.mu.Lock()
	if extraCount == 0 {
		if prevented, ok := m.cache.get(kind); ok {
			m.mu.Unlock()
			m.metrics.recordCache(ctx, kind, true)
			return prevented, nil
		}
	}
	license := m.activeLicenseLocked()
	env := m.envLocked()
	m.mu.Unlock()
	m.metrics.recordCache(ctx, kind, false)

	results, err := evaluateLimit(ctx, license, env, kind, lc)
	if err != nil {
		return false, err
	}
	prevented := isBehaviorsInResult(results, preventActionBehaviors)
	if !suppressLog {
		m.logger.Info("limit evaluated",
			zap.String("limit", string(kind)),
			zap.Int("extra_count", extraCount),
			zap.Bool("prevented", prevented),
		)
	}
	if extraCount > 0 {
		return prevented, nil
	}

	m.mu.Lock()
	previous, seen := m.cache.get(kind)
	m.cache.set(kind, prevented)
	m.mu.Unlock()

	if seen && previous == prevented {
		return prevented, nil
	}
	if prevented {
		m.emit(ctx, behaviorEvents(filterBehaviorsResult(results, preventActionBehaviors))...)
	} else {
		m.emit(ctx, behaviorEvents([]BehaviorResult{allowActionResult(kind)})...)
	}
	return prevented, nil
}

func (m *Manager) activeLicenseLocked() *License {
	if m.valid && m.license != nil {
		return m.license
	}
	return nil
}

// IsLimitReached reports whether a prevent_action rule of kind is currently
// triggered. It bypasses the cache and publishes nothing.
func (m *Manager) IsLimitReached(ctx context.Context, kind LimitKind, lc LimitContext) (bool, error) {
	if m.alwaysGrant() {
		return false, nil
	}
	m.mu.Lock()
	license := m.activeLicenseLocked()
	env := m.envLocked()
	m.mu.Unlock()

	results, err := evaluateLimit(ctx, license, env, kind, lc)
	if err != nil {
		return false, err
	}
	return isBehaviorsInResult(results, preventActionBehaviors), nil
}

// ShouldPreventActionResultsMap returns the prevention result of every limit
// kind, evaluating the ones missing from the cache concurrently. The result
// reflects validation regardless of policy, for broadcasting to other
// instances.
func (m *Manager) ShouldPreventActionResultsMap(ctx context.Context) (map[LimitKind]bool, error) {
	m.mu.Lock()
	license := m.activeLicenseLocked()
	env := m.envLocked()
	cached := make(map[LimitKind]bool, m.cache.len())
	for _, kind := range AllLimitKinds {
		if v, ok := m.cache.get(kind); ok {
			cached[kind] = v
		}
	}
	m.mu.Unlock()

	fresh := make([]bool, len(AllLimitKinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range AllLimitKinds {
		if _, ok := cached[kind]; ok {
			continue
		}
		g.Go(func() error {
			results, err := evaluateLimit(gctx, license, env, kind, LimitContext{})
			if err != nil {
				return err
			}
			fresh[i] = isBehaviorsInResult(results, preventActionBehaviors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[LimitKind]bool, len(AllLimitKinds))
	m.mu.Lock()
	for i, kind := range AllLimitKinds {
		if v, ok := cached[kind]; ok {
			out[kind] = v
			continue
		}
		out[kind] = fresh[i]
		m.cache.set(kind, fresh[i])
	}
	m.mu.Unlock()
	return out, nil
}

// SyncShouldPreventActionResults overwrites cached prevention results with
// the ones computed by another instance.
func (m *Manager) SyncShouldPreventActionResults(results map[LimitKind]bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.overwrite(results)
}

// Restore installs the license saved in the configured store. A missing
// record is not an error.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return ErrStoreNotConfigured
	}
	rec, err := m.store.Load(ctx, m.storeKey)
	if errors.Is(err, licensestore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load stored license: %w", err)
	}
	_, err = m.SetLicense(ctx, rec.Ciphertext, false)
	if errors.Is(err, ErrDuplicatedLicense) {
		return nil
	}
	return err
}

// PullFromCloud fetches the workspace license from the cloud and installs it.
// It reports whether a different license was installed.
func (m *Manager) PullFromCloud(ctx context.Context) (bool, error) {
	if m.cloud == nil {
		return false, ErrCloudNotConfigured
	}
	workspaceID := m.cfg.Cloud.WorkspaceID
	if workspaceID == "" {
		workspaceID = m.storeKey
	}
	token, err := m.cloud.FetchLicense(ctx, workspaceID)
	if err != nil {
		return false, fmt.Errorf("fetch license: %w", err)
	}
	ok, err := m.SetLicense(ctx, token, true)
	if errors.Is(err, ErrDuplicatedLicense) {
		return false, nil
	}
	return ok, err
}

// Bootstrap installs the initial license from Config.License, the store or
// the cloud, whichever is configured first. A license held pending until the
// workspace URL is known is not an error.
func (m *Manager) Bootstrap(ctx context.Context) error {
	var err error
	switch {
	case m.cfg.License != "":
		_, err = m.SetLicense(ctx, m.cfg.License, false)
	case m.store != nil:
		err = m.Restore(ctx)
	case m.cloud != nil:
		_, err = m.PullFromCloud(ctx)
	}
	if errors.Is(err, ErrNotReadyForValidation) {
		return nil
	}
	return err
}

func (m *Manager) persist(ctx context.Context, ciphertext string) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, m.storeKey, ciphertext); err != nil {
		m.logger.Warn("persist license failed", zap.Error(err))
	}
}

func (m *Manager) emit(ctx context.Context, events ...Event) {
	for _, ev := range events {
		m.metrics.recordEvent(ctx, ev.Name)
		m.events.Emit(ev)
	}
}
