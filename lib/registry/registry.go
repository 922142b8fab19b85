// Package registry records which logical volume names the plugin manages.
package registry

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no entry exists for a name.
var ErrNotFound = errors.New("registry entry not found")

// Entry maps a logical volume name to the cloud volume backing it.
type Entry struct {
	Name          string    `json:"name"`
	CloudName     string    `json:"cloud_name"`
	Region        string    `json:"region"`
	SizeGigabytes int       `json:"size_gb"`
	CreatedAt     time.Time `json:"created_at"`
}

// Registry stores entries keyed by logical name. Implementations are safe
// for concurrent use.
type Registry interface {
	Get(ctx context.Context, name string) (*Entry, error)
	Put(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, name string) error
	// List returns all entries ordered by name.
	List(ctx context.Context) ([]Entry, error)
	Close() error
}
