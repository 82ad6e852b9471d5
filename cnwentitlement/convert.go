package cnwentitlement

import (
	"fmt"
	"strings"
	"time"
)

// LicenseVersion is the schema version of converted and synthetic licenses.
const LicenseVersion = "3.0"

const (
	bundlePrefix = "bundle:"
	bundleColor  = "#ed1d29"

	defaultV2PrivateApps     = 3
	defaultV2MarketplaceApps = 5
)

// bundles maps a V2 bundle name to the modules it grants.
var bundles = map[string][]Module{
	"enterprise": CoreModules,
	"pro": {
		"auditing",
		"canned-responses",
		"ldap-enterprise",
		"livechat-enterprise",
		"voip-enterprise",
		"omnichannel-mobile-enterprise",
		"engagement-dashboard",
		"push-privacy",
		"scalability",
		"saml-enterprise",
		"oauth-enterprise",
		"device-management",
		"federation",
		"videoconference-enterprise",
		"message-read-receipt",
		"outlook-calendar",
	},
}

// ConvertToV3 migrates a V2 license to the V3 schema.
func ConvertToV3(v2 *LicenseV2) (*License, error) {
	validUntil, err := parseV2Date(v2.Expiry)
	if err != nil {
		return nil, fmt.Errorf("parse expiry: %w", err)
	}

	license := &License{
		Version: LicenseVersion,
		Information: Information{
			VisualExpiration: v2.Expiry,
			GrantedBy:        GrantedBy{Method: "manual", Seller: "V2"},
			Tags:             v2Tags(v2),
		},
		Validation: Validation{
			ServerURLs: []ServerURL{{Value: v2.URL, Type: ServerURLRegex}},
		},
		GrantedModules: v2Modules(v2.Modules),
		Limits:         v2Limits(v2),
		CloudMeta:      v2.Meta,
	}
	if validUntil != nil {
		license.Validation.ValidPeriods = []ValidPeriod{{
			ValidUntil:      validUntil,
			InvalidBehavior: BehaviorInvalidateLicense,
		}}
	}
	if v2.Meta != nil {
		license.Information.Trial = v2.Meta.Trial
		if v2.Meta.TrialEnd != "" {
			license.Information.VisualExpiration = v2.Meta.TrialEnd
		}
	}
	return license, nil
}

func parseV2Date(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unsupported date %q", s)
}

func v2Modules(names []string) []GrantedModule {
	var modules []Module
	add := func(m Module) {
		if !containsModule(modules, m) {
			modules = append(modules, m)
		}
	}

	add("hide-watermark")
	for _, name := range names {
		if bundle, ok := strings.CutPrefix(name, bundlePrefix); ok {
			for _, m := range bundles[bundle] {
				add(m)
			}
			continue
		}
		add(Module(name))
	}

	out := make([]GrantedModule, 0, len(modules))
	for _, m := range modules {
		out = append(out, GrantedModule{Module: m, External: !IsCoreModule(m)})
	}
	return out
}

func v2Tags(v2 *LicenseV2) []Tag {
	if v2.Tag != nil {
		return []Tag{*v2.Tag}
	}
	var tags []Tag
	for _, name := range v2.Modules {
		bundle, ok := strings.CutPrefix(name, bundlePrefix)
		if !ok || bundle == "" {
			continue
		}
		tags = append(tags, Tag{Name: strings.ToUpper(bundle[:1]) + bundle[1:], Color: bundleColor})
	}
	return tags
}

func v2Limits(v2 *LicenseV2) map[LimitKind][]LimitRule {
	limits := make(map[LimitKind][]LimitRule)
	rule := func(kind LimitKind, maxValue int) {
		limits[kind] = []LimitRule{{Max: maxValue, Behavior: BehaviorPreventAction}}
	}

	if v2.MaxActiveUsers != 0 {
		rule(LimitActiveUsers, v2.MaxActiveUsers)
	}
	if v2.MaxGuestUsers != 0 {
		rule(LimitGuestUsers, v2.MaxGuestUsers)
	}
	if v2.MaxRoomsPerGuest != 0 {
		rule(LimitRoomsPerGuest, v2.MaxRoomsPerGuest)
	}

	privateApps, marketplaceApps := defaultV2PrivateApps, defaultV2MarketplaceApps
	if v2.Apps != nil {
		if v2.Apps.MaxPrivateApps != nil {
			privateApps = *v2.Apps.MaxPrivateApps
		}
		if v2.Apps.MaxMarketplaceApps != nil {
			marketplaceApps = *v2.Apps.MaxMarketplaceApps
		}
	}
	rule(LimitPrivateApps, privateApps)
	rule(LimitMarketplaceApps, marketplaceApps)

	return limits
}
