package metadata

import (
	"context"
)

// Well-known keys. The metadata table is the kiosk's durable key-value
// storage for small bits of state that are not rows of the domain tables.
const (
	KeyLastSync   = "last_sync"
	KeyAPIBaseURL = "api_base_url"
)

type Repository interface {
	// Get returns the stored value, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
