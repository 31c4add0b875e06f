package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned when a key is not found in the key/value store
var ErrKeyNotFound = errors.New("key not found")

// KeyValuePair is one stored setting. API keys seeded from .env files and
// operator-set values share this shape.
type KeyValuePair struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// KeyValueStorage is the settings store: case-insensitive keys, full-pair
// reads for metadata, bulk reads for diagnostics.
type KeyValueStorage interface {
	// Get returns the value for key, or ErrKeyNotFound
	Get(ctx context.Context, key string) (string, error)

	// GetPair returns the pair with its timestamps, or ErrKeyNotFound
	GetPair(ctx context.Context, key string) (*KeyValuePair, error)

	// Set upserts a pair; CreatedAt survives updates
	Set(ctx context.Context, key string, value string, description string) error

	// Delete removes a pair, ErrKeyNotFound when absent
	Delete(ctx context.Context, key string) error

	// List returns all pairs, most recently updated first
	List(ctx context.Context) ([]KeyValuePair, error)

	// GetAll returns all pairs as a key-to-value map
	GetAll(ctx context.Context) (map[string]string, error)
}
