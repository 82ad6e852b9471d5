package syncbus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/CloudNativeWorks/cnw-entitlement-sdk/cnwentitlement"
)

const outboxSize = 16

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithLogger sets the bridge logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = l
	}
}

// WithInstanceID sets the identity used to ignore our own messages.
// Default is a random UUID.
func WithInstanceID(id string) BridgeOption {
	return func(b *Bridge) {
		b.instanceID = id
	}
}

// Syncer is the part of a Manager a Bridge drives.
type Syncer interface {
	OnSync(fn func()) func()
	Sync(ctx context.Context, opts cnwentitlement.ValidationOptions) error
	ShouldPreventActionResultsMap(ctx context.Context) (map[cnwentitlement.LimitKind]bool, error)
	SyncShouldPreventActionResults(results map[cnwentitlement.LimitKind]bool)
}

var _ Syncer = (*cnwentitlement.Manager)(nil)

// Bridge connects a Manager to a Bus: local sync events are published, and
// messages from other instances trigger Manager.Sync and a cache overwrite.
type Bridge struct {
	manager    Syncer
	bus        Bus
	logger     *zap.Logger
	instanceID string
	outbox     chan struct{}
}

// NewBridge creates a bridge between m and bus.
func NewBridge(m Syncer, bus Bus, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		manager:    m,
		bus:        bus,
		logger:     zap.NewNop(),
		instanceID: uuid.NewString(),
		outbox:     make(chan struct{}, outboxSize),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// InstanceID returns the identity stamped on published messages.
func (b *Bridge) InstanceID() string {
	return b.instanceID
}

// Run publishes local sync events and consumes remote ones until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	unsub := b.manager.OnSync(b.enqueue)
	defer unsub()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.bus.Subscribe(gctx, b.handle)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-b.outbox:
				if err := b.Announce(gctx); err != nil {
					b.logger.Warn("publish sync failed", zap.Error(err))
				}
			}
		}
	})
	return g.Wait()
}

// enqueue runs inside the Manager's event dispatch, so it must not block.
func (b *Bridge) enqueue() {
	select {
	case b.outbox <- struct{}{}:
	default:
		b.logger.Debug("sync already queued")
	}
}

// Announce publishes the local prevention results to the other instances.
func (b *Bridge) Announce(ctx context.Context) error {
	results, err := b.manager.ShouldPreventActionResultsMap(ctx)
	if err != nil {
		return fmt.Errorf("compute prevention results: %w", err)
	}
	return b.bus.Publish(ctx, Message{
		ID:      uuid.NewString(),
		Origin:  b.instanceID,
		Results: results,
		SentAt:  time.Now().UTC(),
	})
}

func (b *Bridge) handle(ctx context.Context, msg Message) {
	if msg.Origin == b.instanceID {
		return
	}
	if err := b.manager.Sync(ctx, cnwentitlement.ValidationOptions{}); err != nil {
		b.logger.Warn("sync from remote failed", zap.String("origin", msg.Origin), zap.Error(err))
	}
	if len(msg.Results) > 0 {
		b.manager.SyncShouldPreventActionResults(msg.Results)
	}
	b.logger.Debug("applied remote sync", zap.String("id", msg.ID), zap.String("origin", msg.Origin))
}
