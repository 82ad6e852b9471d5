// Package cnwentitlement provides the license and entitlement engine of a CNW
// workspace.
//
// Install with:
//
//	go get github.com/CloudNativeWorks/cnw-entitlement-sdk/cnwentitlement
//
// A Manager decrypts license tokens, validates them against the workspace
// URL, valid periods and usage limits, and tracks the granted modules and
// tags. Changes are published as events.
//
// # Quick Start
//
//	m, err := cnwentitlement.NewManager(
//	    cnwentitlement.WithPolicy(cnwentitlement.PolicyEnforce),
//	    cnwentitlement.WithLogger(logger),
//	)
//	if err := m.SetWorkspaceURL(ctx, "https://chat.example.com"); err != nil { ... }
//	if _, err := m.SetLicense(ctx, token, true); err != nil { ... }
//
//	if m.HasModule("auditing") { ... }
//
// # Limits
//
// Register a counter for every limit kind the workspace tracks, then ask
// before performing an action that consumes the limit:
//
//	m.SetLicenseLimitCounter(cnwentitlement.LimitActiveUsers, countActiveUsers)
//	prevent, err := m.ShouldPreventAction(ctx, cnwentitlement.LimitActiveUsers, 1,
//	    cnwentitlement.LimitContext{}, cnwentitlement.PreventOptions{})
//
// # Policies
//
// PolicyAlwaysGrant, the default, reports every core module as granted and
// never prevents an action. Validation still runs so events and metrics
// reflect the installed license. PolicyEnforce applies the license.
//
// Subpackages provide license persistence (licensestore), usage counters
// backed by databases (usagecount), cross-instance sync over Redis or Kafka
// (syncbus) and entitlement-gated feature toggles (featurehook).
package cnwentitlement
