// Package usagecount provides limit counters backed by database queries, for
// use with Manager.SetLicenseLimitCounter.
package usagecount

import (
	"context"

	"github.com/CloudNativeWorks/cnw-entitlement-sdk/cnwentitlement"
)

// Counter counts the current usage of a limit kind.
type Counter interface {
	Count(ctx context.Context, lc cnwentitlement.LimitContext) (int, error)
}

// Registry accepts limit counters. *cnwentitlement.Manager satisfies it.
type Registry interface {
	SetLicenseLimitCounter(kind cnwentitlement.LimitKind, counter cnwentitlement.LimitCounter)
}

// Register installs c as the counter of kind on m.
func Register(m Registry, kind cnwentitlement.LimitKind, c Counter) {
	m.SetLicenseLimitCounter(kind, c.Count)
}

// Static is a Counter returning a fixed value. It is useful for limits that
// are counted elsewhere and pushed periodically.
type Static int

func (s Static) Count(context.Context, cnwentitlement.LimitContext) (int, error) {
	return int(s), nil
}
