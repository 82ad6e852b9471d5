package cnwentitlement

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CloudNativeWorks/cnw-entitlement-sdk/cnwentitlement/licensestore"
)

func TestNewManager_Defaults(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)
	assert.Equal(t, PolicyAlwaysGrant, m.Policy())
	assert.Empty(t, m.WorkspaceURL())
}

func TestNewManager_InvalidConfig(t *testing.T) {
	_, err := NewManager(WithConfig(Config{Policy: "sometimes"}))
	require.Error(t, err)
}

func TestNormalizeWorkspaceURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://chat.example.com/", "chat.example.com"},
		{"http://chat.example.com", "chat.example.com"},
		{"chat.example.com", "chat.example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeWorkspaceURL(tt.in), tt.in)
	}
}

func TestSetLicense_MalformedTokenLeavesState(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t)
	m := newReadyManager(t)

	token := signer.v3(t, testLicense("lic-a", "auditing"))
	_, err := m.SetLicense(ctx, token, true)
	require.NoError(t, err)

	for _, bad := range []string{"", V3Prefix, "not a token!", "abc$def", "V3_{json}"} {
		ok, err := m.SetLicense(ctx, bad, true)
		assert.False(t, ok, bad)
		assert.ErrorIs(t, err, ErrInvalidLicense, bad)

		require.NotNil(t, m.GetLicense())
		assert.Equal(t, "lic-a", m.GetLicense().Information.ID)
		current, _ := m.EncryptedLicense()
		assert.Equal(t, token, current)
	}
}

func TestSetLicense_MalformedTokenNotPending(t *testing.T) {
	ctx := context.Background()
	m := newEnforcedManager(t)

	_, err := m.SetLicense(ctx, "not a token!", true)
	assert.ErrorIs(t, err, ErrInvalidLicense)
	assert.NotErrorIs(t, err, ErrNotReadyForValidation)

	require.NoError(t, m.SetWorkspaceURL(ctx, testWorkspaceURL))
	assert.Nil(t, m.GetLicense())
}

func TestSetLicense_UndecryptableToken(t *testing.T) {
	m := newReadyManager(t)
	_, err := m.SetLicense(context.Background(), V3Prefix+"aGVsbG8=", true)
	assert.ErrorIs(t, err, ErrInvalidLicense)
	assert.ErrorIs(t, err, ErrDecryption)
	assert.False(t, m.HasValidLicense())
}

func TestSetLicense_EmptyDocumentRejected(t *testing.T) {
	ctx := context.Background()
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	m := newReadyManager(t, WithDecrypter(NewJWTDecrypter(pub)))

	token := signJWT(t, priv, licenseClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "ws-001"}})
	ok, err := m.SetLicense(ctx, V3Prefix+token, true)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrInvalidLicense)
	assert.False(t, m.Valid())
	assert.Nil(t, m.GetLicense())

	nullDoc := newReadyManager(t, WithDecrypter(DecrypterFunc(func(context.Context, string) ([]byte, error) {
		return []byte(" null "), nil
	})))
	for _, token := range []string{V3Prefix + "dG9rZW4=", "dG9rZW4="} {
		ok, err = nullDoc.SetLicense(ctx, token, true)
		assert.False(t, ok, token)
		assert.ErrorIs(t, err, ErrInvalidLicense, token)
		assert.ErrorIs(t, err, errEmptyLicense, token)
		assert.Nil(t, nullDoc.GetLicense(), token)
	}
}

func TestSetLicense_UndecryptableTokenNotPending(t *testing.T) {
	ctx := context.Background()
	m := newEnforcedManager(t)

	ok, err := m.SetLicense(ctx, "Zm9vYmFy", true)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrInvalidLicense)
	assert.NotErrorIs(t, err, ErrNotReadyForValidation)

	require.NoError(t, m.SetWorkspaceURL(ctx, testWorkspaceURL))
	assert.Nil(t, m.GetLicense())
}

func TestSetLicense_SupersededInstallNotPersisted(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t)
	store := licensestore.NewMemoryStore()
	m := newReadyManager(t, WithStore(store, "ws-001"))
	rec := recordEvents(m, EventInstalled)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	m.SetLicenseLimitCounter(LimitActiveUsers, func(context.Context, LimitContext) (int, error) {
		once.Do(func() {
			close(entered)
			<-release
		})
		return 0, nil
	})

	slow := testLicense("lic-slow", "auditing")
	slow.Limits[LimitActiveUsers] = []LimitRule{{Max: 100, Behavior: BehaviorStartFairPolicy}}
	slowToken := signer.v3(t, slow)
	fastToken := signer.v3(t, testLicense("lic-fast", "federation"))

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := m.SetLicense(ctx, slowToken, true)
		done <- result{ok: ok, err: err}
	}()
	<-entered

	ok, err := m.SetLicense(ctx, fastToken, true)
	require.NoError(t, err)
	require.True(t, ok)

	close(release)
	res := <-done
	assert.False(t, res.ok)
	assert.ErrorIs(t, res.err, ErrLicenseSuperseded)

	require.NotNil(t, m.GetLicense())
	assert.Equal(t, "lic-fast", m.GetLicense().Information.ID)
	assert.Equal(t, []Module{"federation"}, m.GetModules())
	assert.Equal(t, 1, rec.count(EventInstalled))

	stored, err := store.Load(ctx, "ws-001")
	require.NoError(t, err)
	assert.Equal(t, fastToken, stored.Ciphertext)
}

func TestSetLicense_Duplicate(t *testing.T) {
	ctx := context.Background()
	m := newReadyManager(t)
	token := newTestSigner(t).v3(t, testLicense("lic-a", "auditing"))

	ok, err := m.SetLicense(ctx, token, true)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.SetLicense(ctx, token, true)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrDuplicatedLicense)
}

func TestSetLicense_RevertDiscardsPending(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t)
	m := newReadyManager(t)

	tokenA := signer.v3(t, testLicense("lic-a", "auditing"))
	tokenB := signer.v3(t, testLicense("lic-b", "federation"))

	_, err := m.SetLicense(ctx, tokenA, true)
	require.NoError(t, err)

	// Losing the workspace identity makes the next license pending.
	require.NoError(t, m.SetWorkspaceURL(ctx, ""))
	_, err = m.SetLicense(ctx, tokenB, true)
	require.ErrorIs(t, err, ErrNotReadyForValidation)

	_, err = m.SetLicense(ctx, tokenA, true)
	assert.ErrorIs(t, err, ErrPendingLicenseDiscarded)
	assert.ErrorIs(t, err, ErrInvalidLicense)

	// The pending license is gone: restoring the URL does not apply it.
	require.NoError(t, m.SetWorkspaceURL(ctx, testWorkspaceURL))
	require.NotNil(t, m.GetLicense())
	assert.Equal(t, "lic-a", m.GetLicense().Information.ID)
	assert.False(t, m.HasModule("federation"))
}

func TestSetLicense_PendingAppliedOnWorkspaceURL(t *testing.T) {
	ctx := context.Background()
	m := newEnforcedManager(t)
	rec := recordEvents(m, EventInstalled, ValidModuleEvent("auditing"))

	token := newTestSigner(t).v3(t, testLicense("lic-a", "auditing"))
	ok, err := m.SetLicense(ctx, token, true)
	assert.False(t, ok)
	require.ErrorIs(t, err, ErrNotReadyForValidation)
	assert.False(t, m.HasValidLicense())
	assert.Equal(t, 0, rec.count(EventInstalled))

	require.NoError(t, m.SetWorkspaceURL(ctx, testWorkspaceURL))

	assert.True(t, m.HasValidLicense())
	assert.True(t, m.HasModule("auditing"))
	assert.Equal(t, 1, rec.count(EventInstalled))
	assert.Equal(t, 1, rec.count(ValidModuleEvent("auditing")))
}

func TestSetLicense_LatestPendingWins(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t)
	m := newEnforcedManager(t)

	_, err := m.SetLicense(ctx, signer.v3(t, testLicense("lic-a", "auditing")), true)
	require.ErrorIs(t, err, ErrNotReadyForValidation)
	_, err = m.SetLicense(ctx, signer.v3(t, testLicense("lic-b", "federation")), true)
	require.ErrorIs(t, err, ErrNotReadyForValidation)

	require.NoError(t, m.SetWorkspaceURL(ctx, testWorkspaceURL))
	require.NotNil(t, m.GetLicense())
	assert.Equal(t, "lic-b", m.GetLicense().Information.ID)
}

func TestSetLicense_ModulesAndNotifications(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t)
	m := newReadyManager(t)

	mods := map[Module]int{}
	var mu sync.Mutex
	m.OnModule(func(module Module, valid bool) {
		mu.Lock()
		defer mu.Unlock()
		if valid {
			mods[module]++
		} else {
			mods[module]--
		}
	})
	rec := recordEvents(m,
		ValidModuleEvent("outlook-calendar"),
		InvalidModuleEvent("custom-roles"),
		ValidModuleEvent("auditing"),
		InvalidModuleEvent("auditing"),
	)

	expired := testNow.Add(-24 * time.Hour)
	first := testLicense("lic-a", "auditing", "federation", "custom-roles")
	first.Validation.ValidPeriods = []ValidPeriod{{
		ValidUntil:      &expired,
		InvalidBehavior: BehaviorDisableModules,
		Modules:         []Module{"federation"},
	}}

	_, err := m.SetLicense(ctx, signer.v3(t, first), true)
	require.NoError(t, err)
	assert.Equal(t, []Module{"auditing", "custom-roles"}, m.GetModules())
	assert.Equal(t, map[Module]int{"auditing": 1, "custom-roles": 1}, mods)

	second := testLicense("lic-b", "auditing", "outlook-calendar")
	_, err = m.SetLicense(ctx, signer.v3(t, second), true)
	require.NoError(t, err)

	assert.Equal(t, []Module{"auditing", "outlook-calendar"}, m.GetModules())
	assert.Equal(t, 1, rec.count(ValidModuleEvent("outlook-calendar")))
	assert.Equal(t, 1, rec.count(InvalidModuleEvent("custom-roles")))
	assert.Equal(t, 1, rec.count(ValidModuleEvent("auditing")))
	assert.Equal(t, 0, rec.count(InvalidModuleEvent("auditing")))
}

func TestSetLicense_TagsReplaced(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t)
	m := newReadyManager(t)

	first := testLicense("lic-a")
	first.Information.Tags = []Tag{{Name: "Pro", Color: "#111"}, {Name: "Pro", Color: "#111"}}
	_, err := m.SetLicense(ctx, signer.v3(t, first), true)
	require.NoError(t, err)
	assert.Equal(t, []Tag{{Name: "Pro", Color: "#111"}}, m.GetTags())

	second := testLicense("lic-b")
	second.Information.Tags = []Tag{{Name: "Enterprise", Color: "#222"}}
	_, err = m.SetLicense(ctx, signer.v3(t, second), true)
	require.NoError(t, err)
	assert.Equal(t, []Tag{{Name: "Enterprise", Color: "#222"}}, m.GetTags())
}

func TestSetLicense_V2Migration(t *testing.T) {
	ctx := context.Background()
	m := newReadyManager(t)

	v2 := LicenseV2{
		URL:            `chat\.example\.com`,
		Expiry:         "2027-01-01",
		MaxActiveUsers: 50,
		Modules:        []string{"auditing", "custom-app"},
		Tag:            &Tag{Name: "Pro", Color: "#fff"},
	}
	ok, err := m.SetLicense(ctx, newTestSigner(t).v2(t, v2), true)
	require.NoError(t, err)
	require.True(t, ok)

	license := m.GetLicense()
	require.NotNil(t, license)
	assert.Equal(t, LicenseVersion, license.Version)
	assert.Equal(t, []ServerURL{{Value: `chat\.example\.com`, Type: ServerURLRegex}}, license.Validation.ServerURLs)
	require.Len(t, license.Validation.ValidPeriods, 1)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), *license.Validation.ValidPeriods[0].ValidUntil)
	assert.Equal(t, []LimitRule{{Max: 50, Behavior: BehaviorPreventAction}}, license.Limits[LimitActiveUsers])
	assert.Equal(t, []LimitRule{{Max: 3, Behavior: BehaviorPreventAction}}, license.Limits[LimitPrivateApps])
	assert.Equal(t, []LimitRule{{Max: 5, Behavior: BehaviorPreventAction}}, license.Limits[LimitMarketplaceApps])

	assert.Equal(t, []Module{"auditing", "custom-app", "hide-watermark"}, m.GetModules())
	assert.Equal(t, []GrantedModule{{Module: "custom-app", External: true}}, m.GetExternalModules())
	assert.Equal(t, []Tag{{Name: "Pro", Color: "#fff"}}, m.GetTags())

	original, ok := m.UnmodifiedLicense().(*LicenseV2)
	require.True(t, ok)
	assert.Equal(t, v2.URL, original.URL)
}

func TestSetLicense_InvalidFirstLicense(t *testing.T) {
	ctx := context.Background()
	m := newReadyManager(t)

	l := testLicense("lic-a", "auditing")
	l.Validation.ServerURLs = []ServerURL{{Value: "other.example.com", Type: ServerURLExact}}

	ok, err := m.SetLicense(ctx, newTestSigner(t).v3(t, l), true)
	assert.False(t, ok)
	require.ErrorIs(t, err, ErrInvalidLicense)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Behaviors, 1)
	assert.Equal(t, BehaviorInvalidateLicense, verr.Behaviors[0].Behavior)
	assert.Equal(t, ReasonURL, verr.Behaviors[0].Reason)

	assert.False(t, m.HasValidLicense())
	assert.Nil(t, m.GetLicense())
	assert.Nil(t, m.UnmodifiedLicense())
	assert.False(t, m.HasModule("auditing"))
}

func TestSetLicense_InvalidKeepsPriorLicense(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t)
	m := newReadyManager(t)

	tokenA := signer.v3(t, testLicense("lic-a", "auditing"))
	_, err := m.SetLicense(ctx, tokenA, true)
	require.NoError(t, err)

	expired := testNow.Add(-time.Hour)
	b := testLicense("lic-b", "federation")
	b.Validation.ValidPeriods = []ValidPeriod{{ValidUntil: &expired, InvalidBehavior: BehaviorInvalidateLicense}}

	_, err = m.SetLicense(ctx, signer.v3(t, b), true)
	require.ErrorIs(t, err, ErrInvalidLicense)

	assert.True(t, m.HasValidLicense())
	require.NotNil(t, m.GetLicense())
	assert.Equal(t, "lic-a", m.GetLicense().Information.ID)
	current, ok := m.EncryptedLicense()
	assert.True(t, ok)
	assert.Equal(t, tokenA, current)
	assert.Equal(t, []Module{"auditing"}, m.GetModules())
}

func TestSetLicense_NotYetValidCanBeRetried(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: testNow}
	m := newReadyManager(t, WithClock(clock.Now))

	from := testNow.Add(time.Hour)
	l := testLicense("lic-a", "auditing")
	l.Validation.ValidPeriods = []ValidPeriod{{ValidFrom: &from, InvalidBehavior: BehaviorInvalidateLicense}}
	token := newTestSigner(t).v3(t, l)

	_, err := m.SetLicense(ctx, token, true)
	require.ErrorIs(t, err, ErrInvalidLicense)

	clock.Advance(2 * time.Hour)
	ok, err := m.SetLicense(ctx, token, true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestShouldPreventAction_Memoized(t *testing.T) {
	ctx := context.Background()
	m := newReadyManager(t)

	l := testLicense("lic-a")
	l.Limits[LimitActiveUsers] = []LimitRule{{Max: 10, Behavior: BehaviorPreventAction}}
	_, err := m.SetLicense(ctx, newTestSigner(t).v3(t, l), true)
	require.NoError(t, err)

	counter := newCountingCounter(5)
	m.SetLicenseLimitCounter(LimitActiveUsers, counter.count)

	for range 2 {
		prevent, err := m.ShouldPreventAction(ctx, LimitActiveUsers, 0, LimitContext{}, PreventOptions{})
		require.NoError(t, err)
		assert.False(t, prevent)
	}
	assert.EqualValues(t, 1, counter.calls.Load())

	// A future count is evaluated fresh and is not cached.
	prevent, err := m.ShouldPreventAction(ctx, LimitActiveUsers, 6, LimitContext{}, PreventOptions{})
	require.NoError(t, err)
	assert.True(t, prevent)
	assert.EqualValues(t, 2, counter.calls.Load())

	prevent, err = m.ShouldPreventAction(ctx, LimitActiveUsers, 0, LimitContext{}, PreventOptions{})
	require.NoError(t, err)
	assert.False(t, prevent)
	assert.EqualValues(t, 2, counter.calls.Load())
}

func TestShouldPreventAction_AtMax(t *testing.T) {
	ctx := context.Background()
	m := newReadyManager(t)

	l := testLicense("lic-a")
	l.Limits[LimitGuestUsers] = []LimitRule{{Max: 10, Behavior: BehaviorPreventAction}}
	_, err := m.SetLicense(ctx, newTestSigner(t).v3(t, l), true)
	require.NoError(t, err)
	m.SetLicenseLimitCounter(LimitGuestUsers, newCountingCounter(10).count)

	prevent, err := m.ShouldPreventAction(ctx, LimitGuestUsers, 0, LimitContext{}, PreventOptions{})
	require.NoError(t, err)
	assert.True(t, prevent, "reaching the max prevents new actions")

	m.SetLicenseLimitCounter(LimitGuestUsers, newCountingCounter(9).count)
	prevent, err = m.ShouldPreventAction(ctx, LimitGuestUsers, 1, LimitContext{}, PreventOptions{})
	require.NoError(t, err)
	assert.False(t, prevent, "reaching the max with the action itself is allowed")

	prevent, err = m.ShouldPreventAction(ctx, LimitGuestUsers, 2, LimitContext{}, PreventOptions{})
	require.NoError(t, err)
	assert.True(t, prevent)
}

func TestShouldPreventAction_TransitionEvents(t *testing.T) {
	ctx := context.Background()
	m := newReadyManager(t)

	l := testLicense("lic-a")
	l.Limits[LimitActiveUsers] = []LimitRule{{Max: 10, Behavior: BehaviorPreventAction}}
	_, err := m.SetLicense(ctx, newTestSigner(t).v3(t, l), true)
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		reached []BehaviorResult
		allowed int
	)
	m.OnLimitReached(LimitActiveUsers, func(r BehaviorResult) {
		mu.Lock()
		reached = append(reached, r)
		mu.Unlock()
	})
	m.OnBehaviorTriggered(BehaviorAllowAction, func(BehaviorResult) {
		mu.Lock()
		allowed++
		mu.Unlock()
	})

	m.SetLicenseLimitCounter(LimitActiveUsers, newCountingCounter(10).count)
	for range 2 {
		_, err := m.ShouldPreventAction(ctx, LimitActiveUsers, 0, LimitContext{}, PreventOptions{})
		require.NoError(t, err)
	}
	require.Len(t, reached, 1)
	assert.Equal(t, BehaviorResult{Behavior: BehaviorPreventAction, Reason: ReasonLimit, Limit: LimitActiveUsers}, reached[0])
	assert.Equal(t, 0, allowed)

	m.SetLicenseLimitCounter(LimitActiveUsers, newCountingCounter(3).count)
	prevent, err := m.ShouldPreventAction(ctx, LimitActiveUsers, 0, LimitContext{}, PreventOptions{})
	require.NoError(t, err)
	assert.False(t, prevent)
	assert.Equal(t, 1, allowed)
	assert.Len(t, reached, 1)
}

func TestShouldPreventAction_CounterError(t *testing.T) {
	ctx := context.Background()
	failing := func(context.Context, LimitContext) (int, error) { return 0, errors.New("db down") }

	l := testLicense("lic-a")
	l.Limits[LimitActiveUsers] = []LimitRule{{Max: 10, Behavior: BehaviorPreventAction}}
	token := newTestSigner(t).v3(t, l)

	enforced := newReadyManager(t)
	_, err := enforced.SetLicense(ctx, token, true)
	require.NoError(t, err)
	enforced.SetLicenseLimitCounter(LimitActiveUsers, failing)
	_, err = enforced.ShouldPreventAction(ctx, LimitActiveUsers, 0, LimitContext{}, PreventOptions{})
	assert.ErrorContains(t, err, "db down")

	granted := newReadyManager(t, WithPolicy(PolicyAlwaysGrant))
	granted.SetLicenseLimitCounter(LimitActiveUsers, failing)
	prevent, err := granted.ShouldPreventAction(ctx, LimitActiveUsers, 0, LimitContext{}, PreventOptions{})
	assert.NoError(t, err)
	assert.False(t, prevent)
}

func TestShouldPreventAction_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := newReadyManager(t)

	l := testLicense("lic-a")
	l.Limits[LimitActiveUsers] = []LimitRule{{Max: 10, Behavior: BehaviorPreventAction}}
	_, err := m.SetLicense(ctx, newTestSigner(t).v3(t, l), true)
	require.NoError(t, err)
	m.SetLicenseLimitCounter(LimitActiveUsers, newCountingCounter(20).count)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prevent, err := m.ShouldPreventAction(ctx, LimitActiveUsers, 0, LimitContext{}, PreventOptions{})
			assert.NoError(t, err)
			assert.True(t, prevent)
		}()
	}
	wg.Wait()
}

func TestIsLimitReached_BypassesCache(t *testing.T) {
	ctx := context.Background()
	m := newReadyManager(t)

	l := testLicense("lic-a")
	l.Limits[LimitActiveUsers] = []LimitRule{{Max: 10, Behavior: BehaviorPreventAction}}
	_, err := m.SetLicense(ctx, newTestSigner(t).v3(t, l), true)
	require.NoError(t, err)

	counter := newCountingCounter(10)
	m.SetLicenseLimitCounter(LimitActiveUsers, counter.count)

	for range 2 {
		reached, err := m.IsLimitReached(ctx, LimitActiveUsers, LimitContext{})
		require.NoError(t, err)
		assert.True(t, reached)
	}
	assert.EqualValues(t, 2, counter.calls.Load())
	assert.Equal(t, 0, m.cache.len())
}

func TestShouldPreventActionResultsMap(t *testing.T) {
	ctx := context.Background()
	m := newReadyManager(t)

	l := testLicense("lic-a")
	l.Limits[LimitActiveUsers] = []LimitRule{{Max: 10, Behavior: BehaviorPreventAction}}
	l.Limits[LimitGuestUsers] = []LimitRule{{Max: 10, Behavior: BehaviorPreventAction}}
	_, err := m.SetLicense(ctx, newTestSigner(t).v3(t, l), true)
	require.NoError(t, err)

	m.SetLicenseLimitCounter(LimitActiveUsers, newCountingCounter(11).count)
	m.SetLicenseLimitCounter(LimitGuestUsers, newCountingCounter(1).count)

	results, err := m.ShouldPreventActionResultsMap(ctx)
	require.NoError(t, err)
	assert.Len(t, results, len(AllLimitKinds))
	assert.True(t, results[LimitActiveUsers])
	assert.False(t, results[LimitGuestUsers])
	assert.False(t, results[LimitPrivateApps])

	m.SyncShouldPreventActionResults(map[LimitKind]bool{LimitGuestUsers: true})
	prevent, err := m.ShouldPreventAction(ctx, LimitGuestUsers, 0, LimitContext{}, PreventOptions{})
	require.NoError(t, err)
	assert.True(t, prevent, "remote results overwrite the cache")
}

func TestRemove_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := licensestore.NewMemoryStore()
	m := newReadyManager(t, WithStore(store, "ws-001"))
	rec := recordEvents(m, EventRemoved, InvalidModuleEvent("auditing"))

	l := testLicense("lic-a", "auditing")
	l.Limits[LimitActiveUsers] = []LimitRule{{Max: 10, Behavior: BehaviorPreventAction}}
	_, err := m.SetLicense(ctx, newTestSigner(t).v3(t, l), true)
	require.NoError(t, err)

	m.SetLicenseLimitCounter(LimitActiveUsers, newCountingCounter(10).count)
	prevent, err := m.ShouldPreventAction(ctx, LimitActiveUsers, 0, LimitContext{}, PreventOptions{})
	require.NoError(t, err)
	require.True(t, prevent)

	require.NoError(t, m.Remove(ctx))

	assert.Nil(t, m.GetLicense())
	assert.False(t, m.HasValidLicense())
	assert.Empty(t, m.GetModules())
	assert.Empty(t, m.GetTags())
	assert.Equal(t, 0, m.cache.len())
	assert.Equal(t, 1, rec.count(EventRemoved))
	assert.Equal(t, 1, rec.count(InvalidModuleEvent("auditing")))

	// Recomputed against the unlicensed defaults, not the cached answer.
	prevent, err = m.ShouldPreventAction(ctx, LimitActiveUsers, 0, LimitContext{}, PreventOptions{})
	require.NoError(t, err)
	assert.False(t, prevent)

	_, err = store.Load(ctx, "ws-001")
	assert.ErrorIs(t, err, licensestore.ErrNotFound)

	// Removing again is a no-op.
	require.NoError(t, m.Remove(ctx))
	assert.Equal(t, 1, rec.count(EventRemoved))
}

func TestRevalidateLicense_BehaviorsAndSync(t *testing.T) {
	ctx := context.Background()
	m := newReadyManager(t)
	rec := recordEvents(m, EventSync, EventValidate, BehaviorEvent(BehaviorStartFairPolicy), LimitReachedEvent(LimitActiveUsers))

	l := testLicense("lic-a", "auditing")
	l.Limits[LimitActiveUsers] = []LimitRule{{Max: 5, Behavior: BehaviorStartFairPolicy}}
	m.SetLicenseLimitCounter(LimitActiveUsers, newCountingCounter(10).count)

	_, err := m.SetLicense(ctx, newTestSigner(t).v3(t, l), true)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count(EventValidate))
	assert.Equal(t, 0, rec.count(BehaviorEvent(BehaviorStartFairPolicy)), "a new license publishes no behaviors")
	assert.Equal(t, 0, rec.count(EventSync))

	require.NoError(t, m.RevalidateLicense(ctx, ValidationOptions{}))
	assert.Equal(t, 2, rec.count(EventValidate))
	assert.Equal(t, 1, rec.count(BehaviorEvent(BehaviorStartFairPolicy)))
	assert.Equal(t, 1, rec.count(LimitReachedEvent(LimitActiveUsers)))
	assert.Equal(t, 1, rec.count(EventSync))

	// Sync applies the same result without publishing sync.
	require.NoError(t, m.Sync(ctx, ValidationOptions{}))
	assert.Equal(t, 3, rec.count(EventValidate))
	assert.Equal(t, 1, rec.count(EventSync))
}

func TestRevalidateLicense_Expired(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: testNow}
	m := newReadyManager(t, WithClock(clock.Now))
	rec := recordEvents(m, EventSync, EventInvalidate, InvalidModuleEvent("auditing"))

	until := testNow.Add(time.Hour)
	l := testLicense("lic-a", "auditing")
	l.Validation.ValidPeriods = []ValidPeriod{{ValidUntil: &until, InvalidBehavior: BehaviorInvalidateLicense}}
	_, err := m.SetLicense(ctx, newTestSigner(t).v3(t, l), true)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	require.NoError(t, m.RevalidateLicense(ctx, ValidationOptions{}))

	assert.False(t, m.HasValidLicense())
	assert.False(t, m.Valid())
	assert.False(t, m.HasModule("auditing"))
	assert.Equal(t, 1, rec.count(EventInvalidate))
	assert.Equal(t, 1, rec.count(InvalidModuleEvent("auditing")))
	assert.Equal(t, 1, rec.count(EventSync))

	// Nothing left to revalidate.
	require.NoError(t, m.RevalidateLicense(ctx, ValidationOptions{}))
	require.NoError(t, m.Sync(ctx, ValidationOptions{}))
	assert.Equal(t, 1, rec.count(EventInvalidate))
}

func TestSync_ExpiredDoesNotPublishSync(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: testNow}
	m := newReadyManager(t, WithClock(clock.Now))
	rec := recordEvents(m, EventSync, EventInvalidate)

	until := testNow.Add(time.Hour)
	l := testLicense("lic-a", "auditing")
	l.Validation.ValidPeriods = []ValidPeriod{{ValidUntil: &until, InvalidBehavior: BehaviorInvalidateLicense}}
	_, err := m.SetLicense(ctx, newTestSigner(t).v3(t, l), true)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	require.NoError(t, m.Sync(ctx, ValidationOptions{}))
	assert.False(t, m.HasValidLicense())
	assert.Equal(t, 1, rec.count(EventInvalidate))
	assert.Equal(t, 0, rec.count(EventSync))
}

func TestAlwaysGrantPolicy(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	require.NoError(t, m.SetWorkspaceURL(ctx, testWorkspaceURL))

	assert.True(t, m.HasValidLicense())
	assert.True(t, m.HasModule("federation"))
	assert.True(t, m.IsEntitled("auditing"))
	assert.Equal(t, CoreModules, m.GetModules())
	assert.Nil(t, m.GetLicense())

	l := testLicense("lic-a", "auditing")
	l.Limits[LimitActiveUsers] = []LimitRule{{Max: 1, Behavior: BehaviorPreventAction}}
	_, err = m.SetLicense(ctx, newTestSigner(t).v3(t, l), true)
	require.NoError(t, err)
	m.SetLicenseLimitCounter(LimitActiveUsers, newCountingCounter(100).count)

	prevent, err := m.ShouldPreventAction(ctx, LimitActiveUsers, 0, LimitContext{}, PreventOptions{})
	require.NoError(t, err)
	assert.False(t, prevent)

	reached, err := m.IsLimitReached(ctx, LimitActiveUsers, LimitContext{})
	require.NoError(t, err)
	assert.False(t, reached)

	// The real outcome is still inspectable.
	results, err := m.ShouldPreventActionResultsMap(ctx)
	require.NoError(t, err)
	assert.True(t, results[LimitActiveUsers])
	assert.True(t, m.Valid())
	assert.True(t, m.HasModule("federation"))
}

func TestSubscriptions_FeatureHelpers(t *testing.T) {
	ctx := context.Background()
	m := newReadyManager(t)

	var valid, invalid, up, down int
	m.OnValidFeature("auditing", func() { valid++ })
	m.OnInvalidFeature("auditing", func() { invalid++ })
	m.OnToggledFeature("auditing", func() { up++ }, func() { down++ })

	assert.Equal(t, 0, valid)
	assert.Equal(t, 1, invalid, "called right away when not granted")

	_, err := m.SetLicense(ctx, newTestSigner(t).v3(t, testLicense("lic-a", "auditing")), true)
	require.NoError(t, err)
	assert.Equal(t, 1, valid)
	assert.Equal(t, 1, up)

	require.NoError(t, m.Remove(ctx))
	assert.Equal(t, 2, invalid)
	assert.Equal(t, 1, down)
}

func TestGetModuleDefinition(t *testing.T) {
	ctx := context.Background()
	m := newReadyManager(t)

	_, ok := m.GetModuleDefinition("auditing")
	assert.False(t, ok)

	_, err := m.SetLicense(ctx, newTestSigner(t).v3(t, testLicense("lic-a", "auditing", "acme-addon")), true)
	require.NoError(t, err)

	def, ok := m.GetModuleDefinition("acme-addon")
	require.True(t, ok)
	assert.Equal(t, GrantedModule{Module: "acme-addon", External: true}, def)

	def, ok = m.GetModuleDefinition("auditing")
	require.True(t, ok)
	assert.False(t, def.External)
}

func TestGetCurrentValueForLicenseLimit(t *testing.T) {
	m := newEnforcedManager(t)

	v, err := m.GetCurrentValueForLicenseLimit(context.Background(), LimitActiveUsers)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	m.SetLicenseLimitCounter(LimitActiveUsers, newCountingCounter(7).count)
	v, err = m.GetCurrentValueForLicenseLimit(context.Background(), LimitActiveUsers)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestRestoreAndPersist(t *testing.T) {
	ctx := context.Background()
	store := licensestore.NewMemoryStore()
	token := newTestSigner(t).v3(t, testLicense("lic-a", "auditing"))

	first := newReadyManager(t, WithStore(store, "ws-001"))
	_, err := first.SetLicense(ctx, token, true)
	require.NoError(t, err)

	rec, err := store.Load(ctx, "ws-001")
	require.NoError(t, err)
	assert.Equal(t, token, rec.Ciphertext)

	second := newReadyManager(t, WithStore(store, "ws-001"))
	require.NoError(t, second.Restore(ctx))
	require.NotNil(t, second.GetLicense())
	assert.Equal(t, "lic-a", second.GetLicense().Information.ID)

	// Restoring the installed license again is not an error.
	require.NoError(t, second.Restore(ctx))

	empty := newReadyManager(t, WithStore(licensestore.NewMemoryStore(), "ws-002"))
	require.NoError(t, empty.Restore(ctx))
	assert.Nil(t, empty.GetLicense())

	assert.ErrorIs(t, newReadyManager(t).Restore(ctx), ErrStoreNotConfigured)
}

func TestPullFromCloud(t *testing.T) {
	ctx := context.Background()
	token := newTestSigner(t).v3(t, testLicense("lic-cloud", "auditing"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"license":"` + token + `"}}`))
	}))
	defer server.Close()

	m := newReadyManager(t, WithCloudClient(NewCloudClient(server.URL, "test-key")))

	installed, err := m.PullFromCloud(ctx)
	require.NoError(t, err)
	assert.True(t, installed)
	assert.Equal(t, "lic-cloud", m.GetLicense().Information.ID)

	installed, err = m.PullFromCloud(ctx)
	require.NoError(t, err)
	assert.False(t, installed, "the same license is not reinstalled")

	_, err = newReadyManager(t).PullFromCloud(ctx)
	assert.ErrorIs(t, err, ErrCloudNotConfigured)
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	token := newTestSigner(t).v3(t, testLicense("lic-a", "auditing"))

	cfg := DefaultConfig()
	cfg.Policy = PolicyEnforce
	cfg.WorkspaceURL = testWorkspaceURL
	cfg.License = token

	m := newEnforcedManager(t, WithConfig(cfg))
	require.NoError(t, m.Bootstrap(ctx))
	assert.True(t, m.HasModule("auditing"))

	// Without a workspace URL the license waits as pending.
	cfg.WorkspaceURL = ""
	pending := newEnforcedManager(t, WithConfig(cfg))
	require.NoError(t, pending.Bootstrap(ctx))
	assert.False(t, pending.HasValidLicense())
	require.NoError(t, pending.SetWorkspaceURL(ctx, testWorkspaceURL))
	assert.True(t, pending.HasModule("auditing"))
}
