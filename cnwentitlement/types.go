package cnwentitlement

import (
	"time"
)

// Module is the name of an entitlement module granted by a license.
type Module string

// CoreModules is the catalog of internal modules. Any granted module outside
// this list is treated as an external module.
var CoreModules = []Module{
	"auditing",
	"canned-responses",
	"ldap-enterprise",
	"livechat-enterprise",
	"voip-enterprise",
	"omnichannel-mobile-enterprise",
	"engagement-dashboard",
	"push-privacy",
	"scalability",
	"teams-mention",
	"saml-enterprise",
	"oauth-enterprise",
	"device-management",
	"federation",
	"videoconference-enterprise",
	"message-read-receipt",
	"outlook-calendar",
	"hide-watermark",
	"custom-roles",
	"accessibility-certification",
	"unlimited-presence",
	"contact-id-verification",
	"teams-voip",
	"outbound-messaging",
}

// IsCoreModule reports whether m belongs to the internal module catalog.
func IsCoreModule(m Module) bool {
	for _, core := range CoreModules {
		if core == m {
			return true
		}
	}
	return false
}

// LimitKind identifies a usage limit declared by a license.
type LimitKind string

const (
	LimitActiveUsers           LimitKind = "activeUsers"
	LimitGuestUsers            LimitKind = "guestUsers"
	LimitRoomsPerGuest         LimitKind = "roomsPerGuest"
	LimitPrivateApps           LimitKind = "privateApps"
	LimitMarketplaceApps       LimitKind = "marketplaceApps"
	LimitMonthlyActiveContacts LimitKind = "monthlyActiveContacts"
)

// AllLimitKinds lists every limit kind in a stable order.
var AllLimitKinds = []LimitKind{
	LimitActiveUsers,
	LimitGuestUsers,
	LimitRoomsPerGuest,
	LimitPrivateApps,
	LimitMarketplaceApps,
	LimitMonthlyActiveContacts,
}

// globalLimitKinds are the kinds reported by GetInfo. roomsPerGuest only has
// meaning for a specific guest and is left out.
var globalLimitKinds = []LimitKind{
	LimitActiveUsers,
	LimitGuestUsers,
	LimitPrivateApps,
	LimitMarketplaceApps,
	LimitMonthlyActiveContacts,
}

// Behavior describes what happens when a limit or validation check fails.
type Behavior string

const (
	BehaviorInvalidateLicense   Behavior = "invalidate_license"
	BehaviorStartFairPolicy     Behavior = "start_fair_policy"
	BehaviorPreventInstallation Behavior = "prevent_installation"
	BehaviorDisableModules      Behavior = "disable_modules"
	BehaviorPreventAction       Behavior = "prevent_action"
	BehaviorAllowAction         Behavior = "allow_action"
)

// Reason tells which check produced a BehaviorResult.
type Reason string

const (
	ReasonLimit  Reason = "limit"
	ReasonPeriod Reason = "period"
	ReasonURL    Reason = "url"
)

// BehaviorResult is a behavior triggered by validation, with its context.
type BehaviorResult struct {
	Behavior Behavior  `json:"behavior"`
	Reason   Reason    `json:"reason"`
	Limit    LimitKind `json:"limit,omitempty"`
	Modules  []Module  `json:"modules,omitempty"`
}

// Tag is descriptive license metadata used for display.
type Tag struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// GrantedModule is a module entry of a license.
type GrantedModule struct {
	Module   Module `json:"module"`
	External bool   `json:"external,omitempty"`
}

// LimitRule is a single {max, behavior} rule for a limit kind.
// A negative Max means unbounded.
type LimitRule struct {
	Max      int      `json:"max"`
	Behavior Behavior `json:"behavior"`
	Modules  []Module `json:"modules,omitempty"`
}

// ServerURLType selects how a ServerURL is matched against the workspace URL.
type ServerURLType string

const (
	ServerURLExact ServerURLType = "url"
	ServerURLRegex ServerURLType = "regex"
	ServerURLHash  ServerURLType = "hash"
)

// ServerURL is an allowed workspace URL.
type ServerURL struct {
	Value string        `json:"value"`
	Type  ServerURLType `json:"type"`
}

// ServerVersion is an allowed server version expression.
type ServerVersion struct {
	Value string `json:"value"`
}

// ValidPeriod is a time window in which the license is valid. Outside the
// window InvalidBehavior is triggered.
type ValidPeriod struct {
	ValidFrom       *time.Time `json:"validFrom,omitempty"`
	ValidUntil      *time.Time `json:"validUntil,omitempty"`
	InvalidBehavior Behavior   `json:"invalidBehavior"`
	Modules         []Module   `json:"modules,omitempty"`
}

// LegalTextAgreement records the state of the legal agreement.
type LegalTextAgreement struct {
	Type        string `json:"type"`
	AcceptedVia string `json:"acceptedVia,omitempty"`
}

// StatisticsReport controls whether usage statistics must be reported.
type StatisticsReport struct {
	Required bool `json:"required"`
}

// GrantedBy identifies the issuer of a license.
type GrantedBy struct {
	Method string `json:"method"`
	Seller string `json:"seller,omitempty"`
}

// GrantedTo identifies the recipient of a license.
type GrantedTo struct {
	Name    string `json:"name,omitempty"`
	Company string `json:"company,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Information is the grant metadata of a license.
type Information struct {
	ID               string     `json:"id,omitempty"`
	AutoRenew        bool       `json:"autoRenew"`
	VisualExpiration string     `json:"visualExpiration"`
	NotifyAdminsAt   *time.Time `json:"notifyAdminsAt,omitempty"`
	NotifyUsersAt    *time.Time `json:"notifyUsersAt,omitempty"`
	Trial            bool       `json:"trial"`
	Offline          bool       `json:"offline"`
	CreatedAt        time.Time  `json:"createdAt"`
	GrantedBy        GrantedBy  `json:"grantedBy"`
	GrantedTo        GrantedTo  `json:"grantedTo"`
	LegalText        string     `json:"legalText,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	Tags             []Tag      `json:"tags,omitempty"`
}

// Validation holds the constraints checked by the validation engine.
type Validation struct {
	ServerURLs         []ServerURL         `json:"serverUrls"`
	ServerVersions     []ServerVersion     `json:"serverVersions,omitempty"`
	ServerUniqueID     string              `json:"serverUniqueId,omitempty"`
	CloudWorkspaceID   string              `json:"cloudWorkspaceId,omitempty"`
	ValidPeriods       []ValidPeriod       `json:"validPeriods"`
	LegalTextAgreement *LegalTextAgreement `json:"legalTextAgreement,omitempty"`
	StatisticsReport   StatisticsReport    `json:"statisticsReport"`
}

// CloudMeta is optional metadata attached by the cloud.
type CloudMeta struct {
	Trial       bool   `json:"trial"`
	TrialEnd    string `json:"trialEnd,omitempty"`
	WorkspaceID string `json:"workspaceId,omitempty"`
}

// License is the validated entitlement document (V3 schema).
type License struct {
	Version        string                    `json:"version"`
	Information    Information               `json:"information"`
	Validation     Validation                `json:"validation"`
	GrantedModules []GrantedModule           `json:"grantedModules"`
	Limits         map[LimitKind][]LimitRule `json:"limits"`
	CloudMeta      *CloudMeta                `json:"cloudMeta,omitempty"`
}

// LicenseV2 is the older license schema. It is converted with ConvertToV3
// before use.
type LicenseV2 struct {
	URL              string      `json:"url"`
	Expiry           string      `json:"expiry"`
	MaxActiveUsers   int         `json:"maxActiveUsers"`
	Modules          []string    `json:"modules"`
	MaxGuestUsers    int         `json:"maxGuestUsers"`
	MaxRoomsPerGuest int         `json:"maxRoomsPerGuest"`
	Tag              *Tag        `json:"tag,omitempty"`
	Meta             *CloudMeta  `json:"meta,omitempty"`
	Apps             *AppsLimits `json:"apps,omitempty"`
}

// AppsLimits are the app limits of a V2 license. Nil fields fall back to the
// V2 defaults.
type AppsLimits struct {
	MaxPrivateApps     *int `json:"maxPrivateApps,omitempty"`
	MaxMarketplaceApps *int `json:"maxMarketplaceApps,omitempty"`
}

// LimitInfo is a limit as reported by GetInfo.
type LimitInfo struct {
	Max   int  `json:"max"`
	Value *int `json:"value,omitempty"`
}

// LicenseInfo is the caller-facing snapshot returned by GetInfo.
type LicenseInfo struct {
	License          *License                `json:"license,omitempty"`
	ActiveModules    []Module                `json:"activeModules"`
	ExternalModules  []GrantedModule         `json:"externalModules"`
	PreventedActions map[LimitKind]bool      `json:"preventedActions"`
	Limits           map[LimitKind]LimitInfo `json:"limits"`
	Tags             []Tag                   `json:"tags"`
	Trial            bool                    `json:"trial"`
}

// InfoOptions selects what GetInfo includes.
type InfoOptions struct {
	Limits        bool
	CurrentValues bool
	License       bool
}

// LimitContext narrows a limit evaluation, e.g. to a specific guest for
// roomsPerGuest.
type LimitContext struct {
	ExtraCount int
	UserID     string
}

// ValidationOptions tunes a validation run.
type ValidationOptions struct {
	// Behaviors restricts which behaviors are evaluated. Empty means the
	// default set used on license validation.
	Behaviors []Behavior
	// Limits restricts which limit kinds are evaluated. Empty means all.
	Limits []LimitKind
	// Context carries per-kind evaluation context.
	Context map[LimitKind]LimitContext

	IsNewLicense bool
	TriggerSync  bool
	SuppressLog  bool
}

// PreventOptions tunes ShouldPreventAction.
type PreventOptions struct {
	// SuppressLog overrides Config.SuppressValidationLog when non-nil.
	SuppressLog *bool
}
