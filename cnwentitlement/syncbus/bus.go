// Package syncbus broadcasts license changes between Manager instances that
// share one logical license. Receivers re-validate locally; the bus carries
// no authoritative state beyond the cached prevention results.
package syncbus

import (
	"context"
	"time"

	"github.com/CloudNativeWorks/cnw-entitlement-sdk/cnwentitlement"
)

// Message is a sync notification published by one instance.
type Message struct {
	ID     string `json:"id"`
	Origin string `json:"origin"`
	// Results are the sender's prevention results, applied to the receiver's
	// cache after it re-validates.
	Results map[cnwentitlement.LimitKind]bool `json:"results,omitempty"`
	SentAt  time.Time                         `json:"sent_at"`
}

// Handler receives messages delivered by a Bus.
type Handler func(ctx context.Context, msg Message)

// Bus is a broadcast transport.
type Bus interface {
	// Publish sends msg to every subscriber, including the sender.
	Publish(ctx context.Context, msg Message) error

	// Subscribe delivers messages to h until ctx is done.
	Subscribe(ctx context.Context, h Handler) error

	// Close releases any resources held by the bus.
	Close() error
}
