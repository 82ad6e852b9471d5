package cnwentitlement

import (
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/CloudNativeWorks/cnw-entitlement-sdk/cnwentitlement/licensestore"
)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithConfig sets the manager configuration. Default is DefaultConfig().
func WithConfig(cfg Config) ManagerOption {
	return func(m *Manager) {
		m.cfg = cfg
	}
}

// WithPolicy overrides the configured entitlement policy.
// Option ordering does not matter: the override is applied after all options.
func WithPolicy(p Policy) ManagerOption {
	return func(m *Manager) {
		m.policyOverride = p
	}
}

// WithDecrypter sets the license token decrypter. Default is a
// SignedDecrypter using Config.TrustedPublicKey when set.
func WithDecrypter(d Decrypter) ManagerOption {
	return func(m *Manager) {
		m.decrypter = d
	}
}

// WithMeter sets the OpenTelemetry meter. Default is a no-op meter.
func WithMeter(meter metric.Meter) ManagerOption {
	return func(m *Manager) {
		m.meter = meter
	}
}

// WithClock sets the time source used by period checks.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithStore persists installed licenses in s under workspaceID.
func WithStore(s licensestore.Store, workspaceID string) ManagerOption {
	return func(m *Manager) {
		m.store = s
		m.storeKey = workspaceID
	}
}

// WithCloudClient sets the client used by PullFromCloud. Default is built
// from Config.Cloud when a URL is configured.
func WithCloudClient(c *CloudClient) ManagerOption {
	return func(m *Manager) {
		m.cloud = c
	}
}
