// Package licensestore provides durable storage for the encrypted license
// token installed on a workspace.
package licensestore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Load when no license is stored for a workspace.
var ErrNotFound = errors.New("license record not found")

// Record is a stored license token.
type Record struct {
	WorkspaceID string    `json:"workspace_id" bson:"workspace_id"`
	Ciphertext  string    `json:"ciphertext" bson:"ciphertext"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// Store persists the installed license token per workspace.
type Store interface {
	// Save creates or replaces the record of a workspace (upsert by workspace ID).
	Save(ctx context.Context, workspaceID, ciphertext string) error

	// Load returns the record of a workspace or ErrNotFound.
	Load(ctx context.Context, workspaceID string) (*Record, error)

	// Delete removes the record of a workspace. Deleting a missing record is not an error.
	Delete(ctx context.Context, workspaceID string) error

	// Close releases any resources held by the store.
	Close(ctx context.Context) error
}
