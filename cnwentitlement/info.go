package cnwentitlement

import (
	"context"
	"time"
)

// Synthetic license reported under PolicyAlwaysGrant when nothing is installed.
const (
	syntheticLicenseID   = "enterprise-default"
	syntheticActiveUsers = 200000
)

var enterpriseTag = Tag{Name: "Enterprise", Color: "#5154ec"}

// syntheticLicense builds the fully granted license. Only CreatedAt depends
// on now.
func syntheticLicense(workspaceURL string, now time.Time) *License {
	grantee := workspaceURL
	if grantee == "" {
		grantee = "Enterprise Workspace"
	}

	modules := make([]GrantedModule, 0, len(CoreModules))
	for _, m := range CoreModules {
		modules = append(modules, GrantedModule{Module: m})
	}

	limits := make(map[LimitKind][]LimitRule, len(AllLimitKinds))
	for _, kind := range AllLimitKinds {
		limits[kind] = []LimitRule{{Max: -1, Behavior: BehaviorPreventAction}}
	}
	limits[LimitActiveUsers] = []LimitRule{{Max: syntheticActiveUsers, Behavior: BehaviorPreventAction}}

	return &License{
		Version: LicenseVersion,
		Information: Information{
			ID:               syntheticLicenseID,
			VisualExpiration: "never",
			CreatedAt:        now.UTC(),
			GrantedBy:        GrantedBy{Method: "manual"},
			GrantedTo:        GrantedTo{Name: grantee},
			Notes:            "Enterprise features enabled by default",
			Tags:             []Tag{enterpriseTag},
		},
		Validation: Validation{
			ServerURLs:         []ServerURL{{Value: "*", Type: ServerURLRegex}},
			ServerVersions:     []ServerVersion{{Value: "*"}},
			ServerUniqueID:     "*",
			CloudWorkspaceID:   "*",
			ValidPeriods:       []ValidPeriod{},
			LegalTextAgreement: &LegalTextAgreement{Type: "accepted", AcceptedVia: "cloud"},
		},
		GrantedModules: modules,
		Limits:         limits,
	}
}

// GetInfo assembles the caller-facing license snapshot.
//
// Under PolicyAlwaysGrant every core module is active, no action is
// prevented, every limit is unbounded and a synthetic license stands in when
// no valid license is installed.
func (m *Manager) GetInfo(ctx context.Context, opts InfoOptions) (*LicenseInfo, error) {
	if m.alwaysGrant() {
		return m.grantedInfo(ctx, opts)
	}

	license := m.GetLicense()
	prevented, err := m.ShouldPreventActionResultsMap(ctx)
	if err != nil {
		return nil, err
	}

	info := &LicenseInfo{
		ActiveModules:    m.GetModules(),
		ExternalModules:  externalModules(license),
		PreventedActions: prevented,
		Limits:           map[LimitKind]LimitInfo{},
		Tags:             m.GetTags(),
	}
	if license != nil {
		info.Trial = license.Information.Trial
		if opts.License {
			info.License = license
		}
	}
	if opts.Limits {
		for _, kind := range globalLimitKinds {
			li, err := m.limitInfo(ctx, kind, limitMax(license, kind), opts.CurrentValues)
			if err != nil {
				return nil, err
			}
			info.Limits[kind] = li
		}
	}
	return info, nil
}

func (m *Manager) grantedInfo(ctx context.Context, opts InfoOptions) (*LicenseInfo, error) {
	license := m.GetLicense()

	info := &LicenseInfo{
		ActiveModules:    append([]Module(nil), CoreModules...),
		ExternalModules:  externalModules(license),
		PreventedActions: make(map[LimitKind]bool, len(AllLimitKinds)),
		Limits:           map[LimitKind]LimitInfo{},
		Tags:             []Tag{enterpriseTag},
	}
	for _, kind := range AllLimitKinds {
		info.PreventedActions[kind] = false
	}
	if opts.Limits {
		for _, kind := range globalLimitKinds {
			li, err := m.limitInfo(ctx, kind, -1, opts.CurrentValues)
			if err != nil {
				return nil, err
			}
			info.Limits[kind] = li
		}
	}
	if opts.License {
		if license == nil {
			license = syntheticLicense(m.WorkspaceURL(), m.now())
		}
		info.License = license
	}
	return info, nil
}

func (m *Manager) limitInfo(ctx context.Context, kind LimitKind, maxValue int, withValue bool) (LimitInfo, error) {
	li := LimitInfo{Max: maxValue}
	if !withValue {
		return li, nil
	}
	v, err := m.GetCurrentValueForLicenseLimit(ctx, kind)
	if err != nil {
		return LimitInfo{}, err
	}
	li.Value = &v
	return li, nil
}
